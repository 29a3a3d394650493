package mqtt_test

import (
	"context"
	"errors"
	"log"
	"net"
	"time"

	mqtt "github.com/soypat/sensor-mqtt"
)

func ExampleSession() {
	// Get a transport for MQTT packets.
	const defaultMQTTPort = ":1883"
	conn, err := net.Dial("tcp", "127.0.0.1"+defaultMQTTPort)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	// Buffers are owned by the session for its whole life.
	var wbuf, rbuf [mqtt.MaxPacketSize]byte
	session, err := mqtt.NewSession("salamanca", conn, wbuf[:], len(wbuf), rbuf[:], len(rbuf))
	if err != nil {
		log.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = session.Connect(ctx)
	if err != nil {
		var e *mqtt.Error
		if errors.As(err, &e) && e.Kind == mqtt.KindOther {
			log.Fatalf("broker rejected CONNECT: %s", e.Description())
		}
		log.Fatal(err) // Network failure: dial again and build a new session.
	}
	// Publish forever until error.
	for {
		err = session.Send(context.Background(), "sensor/adc", []byte("adc=1234"))
		if err != nil {
			log.Fatal(err)
		}
		time.Sleep(time.Second)
	}
}
