package mqtt

import (
	"context"
	"errors"
	"io"
)

// Session is a minimal MQTT v5 publisher bound to a single transport and two
// caller owned buffers. It performs the CONNECT handshake and publishes QoS0
// messages. It never retries, reconnects or logs: every failure is classified
// into an *Error and returned to the caller, who owns all recovery decisions.
//
// A Session is not safe for concurrent use.
type Session struct {
	cfg   sessionConfig
	rxtx  *RxTx
	state clientState
}

// NewSession builds a Session over transport. writeBuf and recvBuf are owned by the
// Session until it is discarded and their declared capacities writeLen and recvLen
// must match their lengths. The write buffer must fit the CONNECT packet.
// NewSession performs no I/O.
func NewSession(clientID string, transport io.ReadWriter, writeBuf []byte, writeLen int, recvBuf []byte, recvLen int) (*Session, error) {
	cfg, err := newSessionConfig(clientID)
	if err != nil {
		return nil, err
	}
	connectLen := uint32(cfg.connect.Size())
	minWriteLen := newHeader(PacketConnect, 0, connectLen).Size() + int(connectLen)
	if err := validateBuffer("write buffer", writeBuf, writeLen, minWriteLen); err != nil {
		return nil, err
	}
	if err := validateBuffer("receive buffer", recvBuf, recvLen, minRecvBufferLen); err != nil {
		return nil, err
	}
	rxtx, err := NewRxTx(transport, writeBuf, recvBuf)
	if err != nil {
		return nil, err
	}
	return &Session{cfg: cfg, rxtx: rxtx}, nil
}

// Connect performs the CONNECT/CONNACK handshake. It blocks until the broker
// replies, the transport fails or ctx is done. One call is one attempt.
//
// A non-nil returned error is always an *Error. Connect on a connected
// Session fails without I/O; after any handshake failure the Session is unusable.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.state.checkConnect(); err != nil {
		return newOtherError(err)
	}
	if err := s.connect(ctx); err != nil {
		s.state.onFailure()
		return classify(ctx, err)
	}
	return nil
}

func (s *Session) connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &transportError{err: err}
	}
	release := s.rxtx.bindContext(ctx)
	defer release()
	if err := s.rxtx.WriteConnect(&s.cfg.connect); err != nil {
		return err
	}
	hdr, body, err := s.rxtx.ReadNextPacket()
	if err != nil {
		return err
	}
	switch hdr.Type() {
	case PacketConnack:
		vc, err := decodeConnack(body)
		if err != nil {
			return err
		}
		if vc.ReasonCode.IsError() {
			return newReasonError(vc.ReasonCode)
		}
		s.state.onConnack(vc)
		return nil
	case PacketDisconnect:
		rc, err := decodeDisconnect(body)
		if err != nil {
			return err
		}
		if rc.IsError() {
			return newReasonError(rc)
		}
	}
	return errUnexpectedPacket
}

// Send publishes content on topic with QoS0 and the retain flag unset. It blocks
// until the whole PUBLISH packet is written to the transport or the write fails.
// QoS0 has no broker acknowledgement so success means the bytes were handed to
// the transport.
//
// Send before a successful Connect fails with a "not connected" error and performs
// no I/O. Any other failure leaves the Session unusable.
func (s *Session) Send(ctx context.Context, topic string, content []byte) error {
	if err := s.state.checkSend(); err != nil {
		return newOtherError(err)
	}
	if err := s.send(ctx, topic, content); err != nil {
		s.state.onFailure()
		return classify(ctx, err)
	}
	return nil
}

func (s *Session) send(ctx context.Context, topic string, content []byte) error {
	if len(content) > MaxContentLen {
		return errContentTooLong
	}
	if err := ValidateTopicName(topic); err != nil {
		return err
	}
	if limit := s.state.serverMaxPacket; limit != 0 && uint32(PublishSize(topic, len(content))) > limit {
		return errPacketTooLarge
	}
	if err := ctx.Err(); err != nil {
		return &transportError{err: err}
	}
	release := s.rxtx.bindContext(ctx)
	defer release()
	flags, err := NewPublishFlags(QoS0, false, false)
	if err != nil {
		return err
	}
	varPub := VariablesPublish{TopicName: bytesFromString(topic)}
	return s.rxtx.WritePublishPayload(flags, varPub, content)
}

// State returns the lifecycle state of the Session.
func (s *Session) State() SessionState { return s.state.state }

// ClientID returns the client identifier sent on CONNECT.
func (s *Session) ClientID() string { return string(s.cfg.clientID) }

// MaxSubscribeQoS returns the highest QoS this client accepts for subscriptions.
func (s *Session) MaxSubscribeQoS() QoSLevel { return maxSubscribeQoS }

// SessionPresent returns the Session Present flag of the last successful CONNACK.
func (s *Session) SessionPresent() bool { return s.state.sessionPresent }

// classify turns err into a network or other *Error. When ctx is done, the
// context error is reported as the cause of transport failures.
func classify(ctx context.Context, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var te *transportError
	if errors.As(err, &te) {
		cause := te.err
		if ctxErr := ctx.Err(); ctxErr != nil {
			cause = ctxErr
		}
		return newNetworkError(cause)
	}
	return newOtherError(err)
}
