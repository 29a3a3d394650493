package mqtt

import (
	"encoding/binary"
	"errors"
	"io"
)

// Packet bodies are read in full into the user's receive buffer before being
// decoded by the functions in this file. Decoding never allocates: any byte
// slice returned aliases the receive buffer and is only valid until the next
// packet is read. Needless to say, none of this is safe for concurrent use.

var errMalformedProperties = errors.New("malformed properties")

// decodeRemainingLength decodes the Remaining Length variable length integer
// in MQTT fixed headers. This value can range from 1 to 4 bytes in length.
func decodeRemainingLength(r io.Reader) (value uint32, n int, err error) {
	multiplier := uint32(1)
	for i := 0; i < maxRemainingLengthSize; i++ {
		encodedByte, err := decodeByte(r)
		if err != nil {
			return value, n, err
		}
		n++
		value += uint32(encodedByte&127) * multiplier
		if encodedByte&128 == 0 {
			return value, n, nil
		}
		multiplier *= 128
	}
	return 0, n, errMalformedRemLen
}

// decodeVarInt decodes a variable byte integer at the start of b and returns
// it with the amount of bytes it occupied.
func decodeVarInt(b []byte) (value uint32, n int, err error) {
	multiplier := uint32(1)
	for n < maxRemainingLengthSize {
		if n >= len(b) {
			return 0, n, errMalformedPacket
		}
		encodedByte := b[n]
		n++
		value += uint32(encodedByte&127) * multiplier
		if encodedByte&128 == 0 {
			return value, n, nil
		}
		multiplier *= 128
	}
	return 0, n, errMalformedRemLen
}

func decodeByte(r io.Reader) (value byte, err error) {
	var vbuf [1]byte
	n, err := io.ReadFull(r, vbuf[:])
	if err != nil && errors.Is(err, io.EOF) && n == 1 {
		err = nil // Byte was read succesfully albeit with an EOF.
	}
	return vbuf[0], err
}

// readFull reads exactly len(dst) bytes from src. An io.EOF returned alongside
// the last byte is not considered an error.
func readFull(src io.Reader, dst []byte) (int, error) {
	n, err := io.ReadFull(src, dst)
	if err != nil && errors.Is(err, io.EOF) && n == len(dst) {
		err = nil
	}
	return n, err
}

// decodeConnack decodes the CONNACK variable header in body.
func decodeConnack(body []byte) (VariablesConnack, error) {
	if len(body) < 2 {
		return VariablesConnack{}, errMalformedPacket
	}
	varConnack := VariablesConnack{AckFlags: body[0], ReasonCode: ReasonCode(body[1])}
	if err := varConnack.validate(); err != nil {
		return VariablesConnack{}, err
	}
	if len(body) == 2 {
		// Property length omitted. Tolerated, behaves as empty property block.
		return varConnack, nil
	}
	props, err := propertyBlock(body[2:])
	if err != nil {
		return VariablesConnack{}, err
	}
	for len(props) > 0 {
		var (
			id    propertyID
			value []byte
		)
		id, value, props, err = nextProperty(props)
		if err != nil {
			return VariablesConnack{}, err
		}
		switch id {
		case propMaximumPacketSize:
			varConnack.MaximumPacketSize = binary.BigEndian.Uint32(value)
			if varConnack.MaximumPacketSize == 0 {
				return VariablesConnack{}, errMalformedProperties
			}
		case propMaximumQoS:
			varConnack.MaximumQoS = QoSLevel(value[0])
			varConnack.HasMaximumQoS = true
			if varConnack.MaximumQoS > QoS1 {
				return VariablesConnack{}, errMalformedProperties
			}
		case propRetainAvailable:
			varConnack.RetainUnavailable = value[0] == 0
		}
	}
	return varConnack, nil
}

// decodeDisconnect decodes the reason code of a DISCONNECT packet body. An empty
// body means normal disconnection.
func decodeDisconnect(body []byte) (ReasonCode, error) {
	if len(body) == 0 {
		return ReasonSuccess, nil
	}
	rc := ReasonCode(body[0])
	if len(body) == 1 {
		return rc, nil
	}
	props, err := propertyBlock(body[1:])
	if err != nil {
		return rc, err
	}
	for len(props) > 0 {
		_, _, props, err = nextProperty(props)
		if err != nil {
			return rc, err
		}
	}
	return rc, nil
}

// propertyBlock returns the properties of a property block that starts at b
// with its variable byte integer length. The block must end exactly at the end of b.
func propertyBlock(b []byte) ([]byte, error) {
	plen, n, err := decodeVarInt(b)
	if err != nil {
		return nil, err
	}
	if uint32(len(b)-n) != plen {
		return nil, errMalformedProperties
	}
	return b[n:], nil
}

// nextProperty splits the first property off b. value holds the raw encoded value
// of the property, including length prefixes for string and binary data types.
func nextProperty(b []byte) (id propertyID, value, rest []byte, err error) {
	if len(b) == 0 {
		return 0, nil, nil, errMalformedProperties
	}
	id = propertyID(b[0])
	b = b[1:]
	var size int
	switch id {
	case propPayloadFormat, propRequestProblemInfo, propRequestResponseInfo, propMaximumQoS,
		propRetainAvailable, propWildcardSubAvailable, propSubIDAvailable, propSharedSubAvailable:
		size = 1
	case propServerKeepAlive, propReceiveMaximum, propTopicAliasMaximum, propTopicAlias:
		size = 2
	case propMessageExpiry, propSessionExpiry, propWillDelay, propMaximumPacketSize:
		size = 4
	case propSubscriptionID:
		_, size, err = decodeVarInt(b)
		if err != nil {
			return 0, nil, nil, errMalformedProperties
		}
	case propContentType, propResponseTopic, propAssignedClientID, propAuthMethod,
		propResponseInfo, propServerReference, propReasonString, propCorrelationData, propAuthData:
		size, err = prefixedSize(b)
		if err != nil {
			return 0, nil, nil, err
		}
	case propUserProperty:
		key, err := prefixedSize(b)
		if err != nil {
			return 0, nil, nil, err
		}
		val, err := prefixedSize(b[key:])
		if err != nil {
			return 0, nil, nil, err
		}
		size = key + val
	default:
		return 0, nil, nil, errMalformedProperties
	}
	if size > len(b) {
		return 0, nil, nil, errMalformedProperties
	}
	return id, b[:size], b[size:], nil
}

// prefixedSize returns the size on wire of the 2 byte length prefixed string or
// binary data at the start of b.
func prefixedSize(b []byte) (int, error) {
	if len(b) < 2 {
		return 0, errMalformedProperties
	}
	size := 2 + int(binary.BigEndian.Uint16(b))
	if size > len(b) {
		return 0, errMalformedProperties
	}
	return size, nil
}
