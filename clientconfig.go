package mqtt

import (
	"errors"
	"strconv"
	"unicode/utf8"
)

const (
	// MaxPacketSize is the maximum packet size advertised to the broker on CONNECT.
	MaxPacketSize = 100
	// MaxContentLen is the largest content accepted by Session.Send.
	MaxContentLen = 32
	// maxSubscribeQoS is the highest QoS this client accepts on subscriptions.
	maxSubscribeQoS = QoS1
	// minRecvBufferLen fits a CONNACK with no properties, the smallest reply to CONNECT.
	minRecvBufferLen = 3
)

// sessionConfig is fixed policy plus the caller's client identifier. It is not
// modifiable after construction.
type sessionConfig struct {
	clientID []byte
	connect  VariablesConnect
}

func newSessionConfig(clientID string) (sessionConfig, error) {
	if clientID == "" {
		return sessionConfig{}, errors.New("mqtt: empty client identifier")
	}
	if len(clientID) > 0xffff || !utf8.ValidString(clientID) {
		return sessionConfig{}, errors.New("mqtt: client identifier must be a valid UTF-8 MQTT string")
	}
	cfg := sessionConfig{clientID: []byte(clientID)}
	cfg.connect.SetDefaultMQTT(cfg.clientID)
	cfg.connect.CleanStart = true
	cfg.connect.MaximumPacketSize = MaxPacketSize
	return cfg, nil
}

// validateBuffer checks a caller supplied buffer against its declared capacity.
func validateBuffer(name string, buf []byte, declared, minLen int) error {
	if declared != len(buf) {
		return errors.New("mqtt: " + name + " declared capacity " + strconv.Itoa(declared) +
			" does not match buffer length " + strconv.Itoa(len(buf)))
	}
	if len(buf) < minLen {
		return errors.New("mqtt: " + name + " too small, need at least " + strconv.Itoa(minLen) + " bytes")
	}
	return nil
}
