package mqtt

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// Encode encodes the header into the argument writer. It will encode up to a maximum
// of 5 bytes, which is the max length of a fixed header.
func (hdr Header) Encode(w io.Writer) (n int, err error) {
	if hdr.RemainingLength > maxRemainingLengthValue {
		return 0, errMalformedRemLen
	}
	var headerBuf [5]byte
	n = hdr.Put(headerBuf[:])
	return writeFull(w, headerBuf[:n])
}

// Put writes the header into buf, which must be at least 5 bytes long, and
// returns the amount of bytes written.
func (hdr Header) Put(buf []byte) int {
	_ = buf[4]
	buf[0] = hdr.firstByte
	return encodeRemainingLength(hdr.RemainingLength, buf[1:]) + 1
}

func encodeMQTTString(w io.Writer, s []byte) (int, error) {
	length := len(s)
	if length == 0 {
		return 0, errors.New("cannot encode MQTT string of length 0")
	}
	if length > math.MaxUint16 {
		return 0, errors.New("MQTT string too long")
	}
	n, err := encodeUint16(w, uint16(len(s)))
	if err != nil {
		return n, err
	}
	n2, err := writeFull(w, s)
	n += n2
	if err != nil {
		return n, err
	}
	return n, nil
}

// encodeRemainingLength encodes between 1 to 4 bytes. The same variable byte
// integer encoding is used for MQTT v5 property lengths.
func encodeRemainingLength(remlen uint32, b []byte) (n int) {
	if remlen > maxRemainingLengthValue {
		panic("remaining length too large")
	}
	if remlen < 128 {
		// Fast path for small remaining lengths. Also the implementation below is not correct for remaining length = 0.
		b[0] = byte(remlen)
		return 1
	}

	for n = 0; remlen > 0; n++ {
		encoded := byte(remlen % 128)
		remlen /= 128
		if remlen > 0 {
			encoded |= 128
		}
		b[n] = encoded
	}
	return n
}

func encodeVarInt(w io.Writer, v uint32) (int, error) {
	var vbuf [4]byte
	n := encodeRemainingLength(v, vbuf[:])
	return writeFull(w, vbuf[:n])
}

// All encode{PacketType} functions encode only their variable header and payload.

// encodeConnect encodes a CONNECT packet variable header and payload over w given varConn.
// Does not encode the fixed header.
func encodeConnect(w io.Writer, varConn *VariablesConnect) (n int, err error) {
	protocol := varConn.Protocol
	if len(protocol) == 0 {
		protocol = []byte(defaultProtocol)
	}
	n, err = encodeMQTTString(w, protocol)
	if err != nil {
		return n, err
	}
	var varHeaderBuf [4]byte
	varHeaderBuf[0] = varConn.ProtocolLevel
	varHeaderBuf[1] = varConn.Flags()
	binary.BigEndian.PutUint16(varHeaderBuf[2:], varConn.KeepAlive)
	ngot, err := writeFull(w, varHeaderBuf[:])
	n += ngot
	if err != nil {
		return n, err
	}

	// Property block.
	ngot, err = encodeVarInt(w, uint32(varConn.propertiesSize()))
	n += ngot
	if err != nil {
		return n, err
	}
	if varConn.SessionExpiryInterval != 0 {
		ngot, err = encodeUint32Property(w, propSessionExpiry, varConn.SessionExpiryInterval)
		n += ngot
		if err != nil {
			return n, err
		}
	}
	if varConn.ReceiveMaximum != 0 {
		ngot, err = encodeUint16Property(w, propReceiveMaximum, varConn.ReceiveMaximum)
		n += ngot
		if err != nil {
			return n, err
		}
	}
	if varConn.MaximumPacketSize != 0 {
		ngot, err = encodeUint32Property(w, propMaximumPacketSize, varConn.MaximumPacketSize)
		n += ngot
		if err != nil {
			return n, err
		}
	}

	// Begin Encoding payload contents. First field is ClientID.
	ngot, err = encodeMQTTString(w, varConn.ClientID)
	n += ngot
	if err != nil {
		return n, err
	}

	if varConn.WillFlag() {
		ngot, err = encodeByte(w, 0) // Empty will properties.
		n += ngot
		if err != nil {
			return n, err
		}
		ngot, err = encodeMQTTString(w, varConn.WillTopic)
		n += ngot
		if err != nil {
			return n, err
		}
		ngot, err = encodeMQTTString(w, varConn.WillMessage)
		n += ngot
		if err != nil {
			return n, err
		}
	}

	if len(varConn.Username) != 0 {
		// Username and password.
		ngot, err = encodeMQTTString(w, varConn.Username)
		n += ngot
		if err != nil {
			return n, err
		}
		if len(varConn.Password) != 0 {
			ngot, err = encodeMQTTString(w, varConn.Password)
			n += ngot
			if err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// encodePublish encodes PUBLISH packet variable header. Does not encode fixed header or user payload.
func encodePublish(w io.Writer, qos QoSLevel, varPub VariablesPublish) (n int, err error) {
	n, err = encodeMQTTString(w, varPub.TopicName)
	if err != nil {
		return n, err
	}
	if qos != QoS0 {
		ngot, err := encodeUint16(w, varPub.PacketIdentifier)
		n += ngot
		if err != nil {
			return n, err
		}
	}
	ngot, err := encodeByte(w, 0) // Empty property block.
	n += ngot
	return n, err
}

func encodeByte(w io.Writer, value byte) (n int, err error) {
	var vbuf [1]byte
	vbuf[0] = value
	return writeFull(w, vbuf[:])
}

func encodeUint16(w io.Writer, value uint16) (n int, err error) {
	var vbuf [2]byte
	binary.BigEndian.PutUint16(vbuf[:], value)
	return writeFull(w, vbuf[:])
}

func encodeUint16Property(w io.Writer, id propertyID, value uint16) (n int, err error) {
	var vbuf [3]byte
	vbuf[0] = byte(id)
	binary.BigEndian.PutUint16(vbuf[1:], value)
	return writeFull(w, vbuf[:])
}

func encodeUint32Property(w io.Writer, id propertyID, value uint32) (n int, err error) {
	var vbuf [5]byte
	vbuf[0] = byte(id)
	binary.BigEndian.PutUint32(vbuf[1:], value)
	return writeFull(w, vbuf[:])
}

// writeFull writes all of src to dst. Short writes without error are retried
// until all bytes are written or dst returns an error.
func writeFull(dst io.Writer, src []byte) (int, error) {
	n := 0
	for n < len(src) {
		ngot, err := dst.Write(src[n:])
		n += ngot
		if err != nil {
			return n, err
		}
		if ngot == 0 {
			return n, io.ErrShortWrite
		}
	}
	return n, nil
}

// bool to uint8
//
//go:inline
func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
