package mqtt

// SessionState is the lifecycle state of a Session.
//
//	StateUninitialized --Connect ok--> StateReady
//	StateUninitialized --Connect fail--> StateUnusable
//	StateReady --Send fail--> StateUnusable
//
// There is no transition out of StateUnusable. Recovery is the caller's job:
// build a new Session over a new transport.
type SessionState uint8

const (
	StateUninitialized SessionState = iota
	StateReady
	StateUnusable
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateUnusable:
		return "unusable"
	}
	return "invalid session state"
}

// clientState tracks the Session lifecycle and what the server told us on CONNACK.
type clientState struct {
	state SessionState
	// serverMaxPacket is the maximum packet size the server accepts, 0 if unlimited.
	serverMaxPacket uint32
	sessionPresent  bool
}

// onConnack is called on receiving a successful CONNACK.
func (cs *clientState) onConnack(vc VariablesConnack) {
	cs.state = StateReady
	cs.serverMaxPacket = vc.MaximumPacketSize
	cs.sessionPresent = vc.SessionPresent()
}

// onFailure is called on any failure that may have left the transport or
// buffers in a partial state.
func (cs *clientState) onFailure() {
	cs.state = StateUnusable
}

// checkConnect returns an error if a CONNECT may not be attempted in the current state.
func (cs *clientState) checkConnect() error {
	switch cs.state {
	case StateUninitialized:
		return nil
	case StateReady:
		return errAlreadyConnected
	}
	return errUnusable
}

// checkSend returns an error if a PUBLISH may not be attempted in the current state.
func (cs *clientState) checkSend() error {
	switch cs.state {
	case StateReady:
		return nil
	case StateUninitialized:
		return errNotConnected
	}
	return errUnusable
}
