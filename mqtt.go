package mqtt

import (
	"errors"
	"io"
	"strconv"
)

var (
	errQoS0NoDup       = errors.New("DUP must be 0 for QoS0")
	errEmptyTopic      = errors.New("empty topic")
	errGotZeroPI       = errors.New("zero packet identifier")
	errInvalidQoS      = errors.New("invalid QoS")
	errMalformedRemLen = errors.New("malformed remaining length")
	errMalformedPacket = errors.New("malformed packet")
	errBadPacketType   = errors.New("invalid packet type")

	// A Session depends on user provided buffers for all packet encoding and decoding.
	// If a buffer is too small for an outgoing or incoming packet the implementation
	// returns this error.
	ErrUserBufferFull = errors.New("mqtt: user buffer full")
)

// Header represents the bytes preceding the payload in an MQTT packet.
// This commonly called the Fixed Header.
type Header struct {
	// firstByte contains packet type in MSB bits 7-4 and flags in LSB bits 3-0.
	firstByte       byte
	RemainingLength uint32
}

// Size returns the size of the header as encoded over the wire. If the remaining
// length is invalid Size returns 0.
func (hd Header) Size() (sz int) {
	rl := hd.RemainingLength
	switch {
	case rl <= 127:
		sz = 2
	case rl <= 16_383:
		sz = 3
	case rl <= 2_097_151:
		sz = 4
	case rl <= maxRemainingLengthValue:
		sz = 5
	default:
		sz = 0
	}
	return sz
}

// PacketFlags represents the LSB 4 bits in the first byte in an MQTT fixed header.
// PacketFlags takes on select values in range 1..15. PacketType and PacketFlags are present in all MQTT packets.
type PacketFlags uint8

// QoS returns the PUBLISH QoSLevel in pf which varies between 0..2.
// PUBREL, UNSUBSCRIBE and SUBSCRIBE packets MUST have QoS1 set by standard.
func (pf PacketFlags) QoS() QoSLevel { return QoSLevel((pf >> 1) & 0b11) }

// Retain returns true if the PUBLISH Retain bit is set. This typically is set by the client
// to indicate the packet must be preserved by the server after delivery.
func (pf PacketFlags) Retain() bool { return pf&1 != 0 }

// Dup returns true if the DUP flag bit is set.
// If the DUP flag is set to 0, it indicates that this is the first occasion that the Client or Server has attempted to send this MQTT PUBLISH Packet.
func (pf PacketFlags) Dup() bool { return pf&(1<<3) != 0 }

// String returns a pretty string representation of pf. Allocates memory.
func (pf PacketFlags) String() string {
	if pf > 15 {
		return "invalid packet flags"
	}
	s := pf.QoS().String()
	if pf.Dup() {
		s += "/DUP"
	}
	if pf.Retain() {
		s += "/RET"
	}
	return s
}

// NewPublishFlags returns PUBLISH packet flags and an error if the flags were
// to create a malformed packet according to MQTT specification.
func NewPublishFlags(qos QoSLevel, dup, retain bool) (PacketFlags, error) {
	if !qos.IsValid() {
		return 0, errInvalidQoS
	}
	if dup && qos == QoS0 {
		return 0, errQoS0NoDup
	}
	return PacketFlags(b2u8(retain) | (b2u8(dup) << 3) | uint8(qos<<1)), nil
}

// NewHeader creates a new Header for a packetType and returns an error if invalid
// arguments are passed in. It will set expected reserved flags for non-PUBLISH packets.
func NewHeader(packetType PacketType, packetFlags PacketFlags, remainingLen uint32) (Header, error) {
	if packetType != PacketPublish {
		// Set reserved flag for non-publish packets.
		packetFlags = 0
		if packetType == PacketPubrel || packetType == PacketSubscribe || packetType == PacketUnsubscribe {
			packetFlags = flagsPubrelSubUnsub
		}
	}
	if packetFlags > 15 {
		return Header{}, errors.New("packet flags exceeds 4 bit range 0..15")
	}
	if packetType > 15 || packetType == 0 {
		return Header{}, errBadPacketType
	}
	if remainingLen > maxRemainingLengthValue {
		return Header{}, errMalformedRemLen
	}
	h := newHeader(packetType, packetFlags, remainingLen)
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

func newHeader(pt PacketType, pf PacketFlags, rlen uint32) Header {
	return Header{ // Creates a header with no error checking. For internal use.
		firstByte:       byte(pt)<<4 | byte(pf),
		RemainingLength: rlen,
	}
}

// Validate returns an error if the Header contains malformed data. This usually means
// the header has bits set that contradict "MUST" statements in MQTT's protocol specification.
func (h Header) Validate() error {
	pflags := h.Flags()
	ptype := h.Type()
	err := ptype.validateFlags(pflags)
	if err != nil {
		return err
	}
	if ptype == PacketPublish {
		dup := pflags.Dup()
		qos := pflags.QoS()
		if !qos.IsValid() {
			return errInvalidQoS
		}
		if dup && qos == QoS0 {
			return errQoS0NoDup
		}
	}
	return nil
}

// Flags returns the MQTT packet flags in the fixed header. Important mainly for PUBLISH packets.
func (h Header) Flags() PacketFlags { return PacketFlags(h.firstByte & 0b1111) }

// Type returns the packet type with no validation.
func (h Header) Type() PacketType { return PacketType(h.firstByte >> 4) }

// String returns a pretty-string representation of h. Allocates memory.
func (h Header) String() string {
	return h.Type().String() + " " + h.Flags().String() + " remlen: 0x" + strconv.FormatUint(uint64(h.RemainingLength), 16)
}

func (p PacketType) validateFlags(flag4bits PacketFlags) error {
	onlyBit1Set := flag4bits&^(1<<1) == 0
	isControlPacket := p == PacketPubrel || p == PacketSubscribe || p == PacketUnsubscribe
	if p == PacketPublish || (onlyBit1Set && isControlPacket) || (!isControlPacket && flag4bits == 0) {
		return nil
	}
	if isControlPacket {
		return errors.New("control packet bit not set (0b0010)")
	}
	return errors.New("expected 0b0000 flag for packet type")
}

// String returns a string representation of the packet type, stylized with all caps
// i.e: "PUBREL", "CONNECT". Does not allocate memory.
func (p PacketType) String() string {
	if p > 15 {
		return "impossible packet type value" // Exceeds 4 bit value.
	}
	var s string
	switch p {
	case PacketConnect:
		s = "CONNECT"
	case PacketConnack:
		s = "CONNACK"
	case PacketPuback:
		s = "PUBACK"
	case PacketPubcomp:
		s = "PUBCOMP"
	case PacketPublish:
		s = "PUBLISH"
	case PacketPubrec:
		s = "PUBREC"
	case PacketPubrel:
		s = "PUBREL"
	case PacketSubscribe:
		s = "SUBSCRIBE"
	case PacketUnsubscribe:
		s = "UNSUBSCRIBE"
	case PacketUnsuback:
		s = "UNSUBACK"
	case PacketSuback:
		s = "SUBACK"
	case PacketPingresp:
		s = "PINGRESP"
	case PacketPingreq:
		s = "PINGREQ"
	case PacketDisconnect:
		s = "DISCONNECT"
	case PacketAuth:
		s = "AUTH"
	default:
		s = "forbidden/reserved packet type"
	}
	return s
}

// IsValid returns true if qos is a valid Quality of Service.
func (qos QoSLevel) IsValid() bool { return qos <= QoS2 }

// String returns a pretty-string representation of qos i.e: "QoS0". Does not allocate memory.
func (qos QoSLevel) String() (s string) {
	switch qos {
	case QoS0:
		s = "QoS0"
	case QoS1:
		s = "QoS1"
	case QoS2:
		s = "QoS2"
	case QoSSubfail:
		s = "QoS subscribe failure"
	case reservedQoS3:
		s = "invalid: use of reserved QoS3"
	default:
		s = "undefined QoS"
	}
	return s
}

// IsError returns true if rc signals a failure, which is any value of 0x80 or above.
func (rc ReasonCode) IsError() bool { return rc >= 0x80 }

// String returns a human readable name for rc. Every name fits in a 32 byte
// error description. Does not allocate memory.
func (rc ReasonCode) String() (s string) {
	switch rc {
	case ReasonSuccess:
		s = "success"
	case ReasonDisconnectWithWill:
		s = "disconnect with will message"
	case ReasonUnspecifiedError:
		s = "unspecified error"
	case ReasonMalformedPacket:
		s = "malformed packet"
	case ReasonProtocolError:
		s = "protocol error"
	case ReasonImplementationSpecificError:
		s = "implementation specific error"
	case ReasonUnsupportedProtocolVersion:
		s = "unsupported protocol version"
	case ReasonClientIdentifierNotValid:
		s = "client identifier not valid"
	case ReasonBadUserNameOrPassword:
		s = "bad user name or password"
	case ReasonNotAuthorized:
		s = "not authorized"
	case ReasonServerUnavailable:
		s = "server unavailable"
	case ReasonServerBusy:
		s = "server busy"
	case ReasonBanned:
		s = "banned"
	case ReasonServerShuttingDown:
		s = "server shutting down"
	case ReasonBadAuthenticationMethod:
		s = "bad authentication method"
	case ReasonKeepAliveTimeout:
		s = "keep alive timeout"
	case ReasonSessionTakenOver:
		s = "session taken over"
	case ReasonTopicFilterInvalid:
		s = "topic filter invalid"
	case ReasonTopicNameInvalid:
		s = "topic name invalid"
	case ReasonReceiveMaximumExceeded:
		s = "receive maximum exceeded"
	case ReasonTopicAliasInvalid:
		s = "topic alias invalid"
	case ReasonPacketTooLarge:
		s = "packet too large"
	case ReasonMessageRateTooHigh:
		s = "message rate too high"
	case ReasonQuotaExceeded:
		s = "quota exceeded"
	case ReasonAdministrativeAction:
		s = "administrative action"
	case ReasonPayloadFormatInvalid:
		s = "payload format invalid"
	case ReasonRetainNotSupported:
		s = "retain not supported"
	case ReasonQoSNotSupported:
		s = "QoS not supported"
	case ReasonUseAnotherServer:
		s = "use another server"
	case ReasonServerMoved:
		s = "server moved"
	case ReasonSharedSubsNotSupported:
		s = "shared subs not supported"
	case ReasonConnectionRateExceeded:
		s = "connection rate exceeded"
	case ReasonMaximumConnectTime:
		s = "maximum connect time"
	case ReasonSubIDsNotSupported:
		s = "subscription ids not supported"
	case ReasonWildcardSubsNotSupported:
		s = "wildcard subs not supported"
	default:
		s = "unknown reason code"
	}
	return s
}

// Packet specific functions

// VariablesConnect all strings in the variable header must be UTF-8 encoded
// except password which may be binary data.
type VariablesConnect struct {
	// Must be present and unique to the server. UTF-8 encoded string
	// between 1 and 23 bytes in length although some servers may allow larger ClientIDs.
	ClientID []byte
	// By default will be set to 'MQTT' protocol if nil.
	Protocol []byte
	// Protocol level 5 for MQTT v5.
	ProtocolLevel byte
	Username      []byte
	// For password to be used username must also be set.
	Password    []byte
	WillTopic   []byte
	WillMessage []byte
	// This bit specifies if the Will Message is to be Retained when it is published.
	WillRetain bool
	// CleanStart requests the server to discard any existing session for ClientID.
	CleanStart bool
	// These two bits specify the QoS level to be used when publishing the Will Message.
	WillQoS QoSLevel
	// KeepAlive is a interval measured in seconds. it is the maximum time interval that is
	// permitted to elapse between the point at which the Client finishes transmitting one
	// Control Packet and the point it starts sending the next.
	KeepAlive uint16

	// Properties. Zero values are omitted from the encoded property block.

	// SessionExpiryInterval is the time in seconds the session is kept after the Network Connection closes.
	SessionExpiryInterval uint32
	// ReceiveMaximum limits the number of QoS 1 and QoS 2 publications the client is willing to process concurrently.
	ReceiveMaximum uint16
	// MaximumPacketSize is the largest packet the client is willing to accept.
	MaximumPacketSize uint32
}

// propertiesSize returns the length of the CONNECT property block, not including
// the variable byte integer that prefixes it.
func (vc *VariablesConnect) propertiesSize() (sz int) {
	if vc.SessionExpiryInterval != 0 {
		sz += 5
	}
	if vc.ReceiveMaximum != 0 {
		sz += 3
	}
	if vc.MaximumPacketSize != 0 {
		sz += 5
	}
	return sz
}

// Size returns size-on-wire of the CONNECT variable header and payload generated by vc.
func (vc *VariablesConnect) Size() (sz int) {
	sz += mqttStringSize(vc.Username)
	if len(vc.Username) != 0 {
		sz += mqttStringSize(vc.Password) // Make sure password is only added when username is enabled.
	}
	if vc.WillFlag() {
		// If will flag set then these two strings are obligatory but may be zero lengthed.
		// Will properties are always encoded empty (1 byte).
		sz += len(vc.WillTopic) + len(vc.WillMessage) + 4 + 1
	}
	psz := vc.propertiesSize()
	sz += psz + varIntSize(uint32(psz))
	sz += len(vc.ClientID) + len(vc.Protocol) + 4
	return sz + 1 + 2 + 1 // Add Connect flags (1), Protocol level (1) and keepalive (2).
}

// Flags returns the CONNECT flags byte that follows the protocol level.
func (vc *VariablesConnect) Flags() byte {
	willFlag := vc.WillFlag()
	hasUsername := len(vc.Username) != 0
	return b2u8(hasUsername)<<7 | b2u8(hasUsername && len(vc.Password) != 0)<<6 |
		b2u8(vc.WillRetain)<<5 | byte(vc.WillQoS&0b11)<<3 |
		b2u8(willFlag)<<2 | b2u8(vc.CleanStart)<<1
}

// WillFlag returns true if CONNECT packet will have a will topic and a will message, which means setting Will Flag bit to 1.
func (vc *VariablesConnect) WillFlag() bool {
	return len(vc.WillTopic) != 0 && len(vc.WillMessage) != 0
}

// SetDefaultMQTT sets required fields, like the ClientID, Protocol and Protocol level fields.
// If KeepAlive is zero, is set to 60 (one minute).
func (vc *VariablesConnect) SetDefaultMQTT(clientID []byte) {
	vc.ClientID = clientID
	if string(vc.Protocol) != defaultProtocol {
		vc.Protocol = []byte(defaultProtocol)
	}
	vc.ProtocolLevel = defaultProtocolLevel
	if vc.KeepAlive == 0 {
		vc.KeepAlive = defaultKeepAlive
	}
}

// VariablesPublish represents the variable header of a PUBLISH packet. It does not
// include the payload with the topic data. Publish properties are always encoded empty.
type VariablesPublish struct {
	// Must be present as utf-8 encoded string with NO wildcard characters.
	TopicName []byte
	// Only present (non-zero) in QoS level 1 or 2.
	PacketIdentifier uint16
}

// Validate checks vp for a PUBLISH packet of the given QoS.
func (vp VariablesPublish) Validate(qos QoSLevel) error {
	if len(vp.TopicName) == 0 {
		return errEmptyTopic
	} else if qos != QoS0 && vp.PacketIdentifier == 0 {
		return errGotZeroPI
	}
	return nil
}

// Size returns size-on-wire of the PUBLISH variable header generated by vp,
// including the empty property block.
func (vp VariablesPublish) Size(qos QoSLevel) int {
	sz := len(vp.TopicName) + 2 + 1
	if qos != QoS0 {
		sz += 2
	}
	return sz
}

// VariablesConnack represents the variable header of a CONNACK packet.
type VariablesConnack struct {
	// Octet with SP (Session Present) on LSB bit0.
	AckFlags uint8
	// Octet.
	ReasonCode ReasonCode

	// Properties of interest to a publisher. Others are validated and skipped.

	// MaximumPacketSize the server is willing to accept. Zero means no limit was given.
	MaximumPacketSize uint32
	// MaximumQoS the server supports. Only meaningful if HasMaximumQoS is set.
	MaximumQoS    QoSLevel
	HasMaximumQoS bool
	// RetainUnavailable is set if the server signalled it does not support retained messages.
	RetainUnavailable bool
}

// SessionPresent returns true if the SP bit is set in the CONNACK Ack flags. This bit indicates whether
// the ClientID already has a session on the server.
func (vc VariablesConnack) SessionPresent() bool { return vc.AckFlags&1 != 0 }

// validate provides early validation of CONNACK variables.
func (vc VariablesConnack) validate() error {
	if vc.AckFlags&^1 != 0 {
		return errMalformedPacket
	}
	return nil
}

// DecodeHeader receives transp, an io.Reader that reads from an underlying arbitrary
// transport protocol. transp should start returning the first byte of the MQTT packet.
// Decode header returns the decoded header and any error that prevented it from
// reading the entire header as specified by the MQTT protocol.
// It performs the minimal validating to ensure it does not over-read the header's contents.
// Header.Validate() should be called after DecodeHeader for a complete validation.
func DecodeHeader(transp io.Reader) (Header, int, error) {
	// Start parsing fixed header.
	firstByte, err := decodeByte(transp)
	if err != nil {
		return Header{}, 0, err
	}
	n := 1
	rlen, ngot, err := decodeRemainingLength(transp)
	n += ngot
	if err != nil {
		return Header{}, n, err
	}
	packetType := PacketType(firstByte >> 4)
	if packetType == 0 {
		return Header{}, n, errBadPacketType
	}
	packetFlags := PacketFlags(firstByte & 0b1111)
	if err := packetType.validateFlags(packetFlags); err != nil {
		// Early validation to prevent reading more than necessary from buffer.
		return Header{}, n, errMalformedPacket
	}
	hdr := Header{
		firstByte:       firstByte,
		RemainingLength: rlen,
	}
	return hdr, n, nil
}

// mqttStringSize returns the size on wire occupied
// by an *OPTIONAL* MQTT encoded string. If string is zero length returns 0.
func mqttStringSize(b []byte) int {
	lb := len(b)
	if lb > 0 {
		return lb + 2
	}
	return 0
}

// varIntSize returns the number of bytes needed to encode v as a variable byte integer.
func varIntSize(v uint32) int {
	switch {
	case v <= 127:
		return 1
	case v <= 16_383:
		return 2
	case v <= 2_097_151:
		return 3
	default:
		return 4
	}
}
