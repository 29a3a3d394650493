package mqtt_test

import (
	"bytes"
	"testing"

	mqtt "github.com/soypat/sensor-mqtt"
)

func TestHeaderLoopback(t *testing.T) {
	pubQoS0flag, err := mqtt.NewPublishFlags(mqtt.QoS0, false, true)
	if err != nil {
		t.Fatal(err)
	}
	for _, header := range []struct {
		tp     mqtt.PacketType
		flags  mqtt.PacketFlags
		remlen uint32
	}{
		{tp: mqtt.PacketPubrel, remlen: 2},
		{tp: mqtt.PacketPingreq},
		{tp: mqtt.PacketPublish, flags: pubQoS0flag, remlen: 300},
		{tp: mqtt.PacketConnect, remlen: 21},
		{tp: mqtt.PacketDisconnect, remlen: 1},
	} {
		h, err := mqtt.NewHeader(header.tp, header.flags, header.remlen)
		if err != nil {
			t.Fatal(err)
		}
		if h.RemainingLength != header.remlen {
			t.Error("remaining length mismatch")
		}
		flagsGot := h.Flags()
		if header.tp == mqtt.PacketPublish && flagsGot != header.flags {
			t.Error("publish flag mismatch", flagsGot, header.flags)
		}
		typeGot := h.Type()
		if typeGot != header.tp {
			t.Error("type mismatch")
		}
		var buf bytes.Buffer
		n, err := h.Encode(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if n != h.Size() {
			t.Errorf("%s: encoded %d bytes, Size reports %d", h.String(), n, h.Size())
		}
		got, _, err := mqtt.DecodeHeader(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if got != h {
			t.Errorf("loopback mismatch: %s != %s", got.String(), h.String())
		}
	}
}

func TestNewHeaderRejects(t *testing.T) {
	_, err := mqtt.NewHeader(0, 0, 0)
	if err == nil {
		t.Error("expected error for reserved packet type 0")
	}
	_, err = mqtt.NewHeader(mqtt.PacketPublish, 16, 0)
	if err == nil {
		t.Error("expected error for flags out of range")
	}
	_, err = mqtt.NewHeader(mqtt.PacketPublish, 0, 268_435_456)
	if err == nil {
		t.Error("expected error for remaining length out of range")
	}
}

func TestNewPublishFlags(t *testing.T) {
	_, err := mqtt.NewPublishFlags(mqtt.QoS0, true, false)
	if err == nil {
		t.Error("QoS0 with DUP set must be rejected")
	}
	_, err = mqtt.NewPublishFlags(mqtt.QoSLevel(3), false, false)
	if err == nil {
		t.Error("reserved QoS must be rejected")
	}
	flags, err := mqtt.NewPublishFlags(mqtt.QoS1, true, true)
	if err != nil {
		t.Fatal(err)
	}
	if flags.QoS() != mqtt.QoS1 || !flags.Dup() || !flags.Retain() {
		t.Error("flag accessors mismatch", flags)
	}
}

func TestValidateTopicName(t *testing.T) {
	for _, topic := range []string{"t", "sensor/adc", "sensor/adc/", "/leading", "ñandú/🌡"} {
		if err := mqtt.ValidateTopicName(topic); err != nil {
			t.Errorf("%q: unexpected error %v", topic, err)
		}
	}
	for _, topic := range []string{"", "sensor/+", "sensor/#", "+", "a\x00b", "\xff\xfe"} {
		if mqtt.ValidateTopicName(topic) == nil {
			t.Errorf("%q: expected error", topic)
		}
	}
}
