package mqtt

import (
	"errors"
	"strconv"
)

// MaxDescriptionLen is the capacity of the description carried by an [Error].
const MaxDescriptionLen = 32

// ErrNetwork matches every network [Error] when used with errors.Is.
var ErrNetwork = errors.New("mqtt: network error")

var (
	errNotConnected     = errors.New("not connected")
	errAlreadyConnected = errors.New("already connected")
	errUnusable         = errors.New("session unusable")
	errUnexpectedPacket = errors.New("unexpected packet type")
	errContentTooLong   = errors.New("content too long")
	errInvalidTopic     = errors.New("invalid topic name")
	errPacketTooLarge   = errors.New("packet exceeds server maximum")
	errRxBufferFull     = errors.New("receive buffer full")
)

// ErrorKind classifies a Session failure.
type ErrorKind uint8

const (
	// KindOther is any protocol level failure: broker rejections, malformed or
	// unexpected packets and local misuse of the Session.
	KindOther ErrorKind = iota
	// KindNetwork is a transport failure or disconnect. The only recovery is to
	// build a new Session over a fresh transport.
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindOther:
		return "other"
	case KindNetwork:
		return "network"
	}
	return "unknown error kind"
}

// Error is the error type returned by Session methods. Its description is held
// in a fixed size array so that reporting a failure does not allocate a string.
type Error struct {
	Kind ErrorKind
	// Reason is the reason code sent by the broker, if the failure was caused by one.
	// It is zero for all other failures.
	Reason ReasonCode
	desc   [MaxDescriptionLen]byte
	ndesc  uint8
	cause  error
}

func newNetworkError(cause error) *Error {
	return &Error{Kind: KindNetwork, cause: cause}
}

// newOtherError classifies a local or protocol failure. cause must be one of this
// package's short sentinel errors; anything else is described as a protocol error.
func newOtherError(cause error) *Error {
	e := &Error{Kind: KindOther, cause: cause}
	switch cause {
	case ErrUserBufferFull:
		e.setDescription("write buffer full")
	case errNotConnected, errAlreadyConnected, errUnusable, errUnexpectedPacket, errContentTooLong,
		errInvalidTopic, errPacketTooLarge, errRxBufferFull, errEmptyTopic,
		errMalformedPacket, errMalformedRemLen, errMalformedProperties, errBadPacketType, errInvalidQoS:
		e.setDescription(cause.Error())
	default:
		e.setDescription("protocol error")
	}
	return e
}

// newReasonError classifies a failure reported by the broker through a reason code.
func newReasonError(rc ReasonCode) *Error {
	e := &Error{Kind: KindOther, Reason: rc}
	if rc.String() != "unknown reason code" {
		e.setDescription(rc.String())
		return e
	}
	var buf [MaxDescriptionLen]byte
	b := append(buf[:0], "unknown reason code 0x"...)
	if rc < 0x10 {
		b = append(b, '0')
	}
	b = strconv.AppendUint(b, uint64(rc), 16)
	e.setDescription(string(b))
	return e
}

// setDescription panics if s does not fit the description buffer. All descriptions
// come from closed sets sized to fit, so overflowing is a bug in this package.
func (e *Error) setDescription(s string) {
	if len(s) > len(e.desc) {
		panic("mqtt: error description overflow: " + s)
	}
	e.ndesc = uint8(copy(e.desc[:], s))
}

// Description returns the bounded human readable description of a KindOther error.
// Network errors have an empty description.
func (e *Error) Description() string { return string(e.desc[:e.ndesc]) }

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Kind == KindNetwork {
		if e.cause != nil {
			return ErrNetwork.Error() + ": " + e.cause.Error()
		}
		return ErrNetwork.Error()
	}
	return "mqtt: " + e.Description()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is ErrNetwork and e is a network error.
func (e *Error) Is(target error) bool {
	return target == ErrNetwork && e.Kind == KindNetwork
}
