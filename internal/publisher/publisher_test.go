package publisher

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	mqtt "github.com/soypat/sensor-mqtt"
	"github.com/soypat/sensor-mqtt/internal/sensor"
)

const waitTimeout = 5 * time.Second

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Broker = "broker.test:1883"
	cfg.Interval = 5 * time.Millisecond
	cfg.Timeout = time.Second
	cfg.RetryDelay = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

// pipeDialer hands out in-memory connections served by a fake broker.
type pipeDialer struct {
	mu    sync.Mutex
	dials int
	// serve is run on the broker side of the nth connection, starting at 1.
	serve func(n int, conn net.Conn)
}

func (d *pipeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	d.mu.Unlock()
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		d.serve(n, server)
	}()
	return client, nil
}

func (d *pipeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// acceptConnect reads a CONNECT and replies with a CONNACK carrying rc.
func acceptConnect(conn net.Conn, rc byte) (*packets.Connect, error) {
	cp, err := packets.ReadPacket(conn)
	if err != nil {
		return nil, err
	}
	c, ok := cp.Content.(*packets.Connect)
	if !ok {
		return nil, errors.New("expected CONNECT")
	}
	ack := packets.NewControlPacket(packets.CONNACK)
	ack.Content.(*packets.Connack).ReasonCode = rc
	_, err = ack.WriteTo(conn)
	return c, err
}

// forwardPublishes sends every PUBLISH read from conn to out.
// If limit is positive it returns after that many messages.
func forwardPublishes(conn net.Conn, out chan<- *packets.Publish, limit int) {
	for i := 0; limit <= 0 || i < limit; i++ {
		cp, err := packets.ReadPacket(conn)
		if err != nil {
			return
		}
		p, ok := cp.Content.(*packets.Publish)
		if !ok {
			return
		}
		select {
		case out <- p:
		default:
		}
	}
}

func runPublisher(t *testing.T, p *Publisher) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	return func() error {
		stop()
		select {
		case err := <-done:
			return err
		case <-time.After(waitTimeout):
			t.Fatal("publisher did not stop")
			return nil
		}
	}
}

func receive(t *testing.T, ch <-chan *packets.Publish) *packets.Publish {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(waitTimeout):
		t.Fatal("no PUBLISH received")
		return nil
	}
}

func TestPublishReadings(t *testing.T) {
	published := make(chan *packets.Publish, 64)
	connects := make(chan *packets.Connect, 1)
	dialer := &pipeDialer{serve: func(n int, conn net.Conn) {
		c, err := acceptConnect(conn, 0)
		if err != nil {
			return
		}
		connects <- c
		forwardPublishes(conn, published, 0)
	}}
	cfg := testConfig()
	p, err := New(cfg, sensor.NewSimulatedADC(1, 10), WithDialer(dialer), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	stop := runPublisher(t, p)

	for i := 0; i < 3; i++ {
		pub := receive(t, published)
		assert.Equal(t, cfg.Topic, pub.Topic)
		assert.Equal(t, byte(0), pub.QoS)
		assert.False(t, pub.Retain)
		assert.True(t, strings.HasPrefix(string(pub.Payload), "adc="), "payload %q", pub.Payload)
		assert.LessOrEqual(t, len(pub.Payload), mqtt.MaxContentLen)
	}
	require.NoError(t, stop())

	c := <-connects
	assert.Equal(t, cfg.ClientID, c.ClientID)
	assert.Equal(t, byte(5), c.ProtocolVersion)
	assert.True(t, c.CleanStart)
	assert.Equal(t, 1, dialer.count())
}

func TestReconnectAfterNetworkFailure(t *testing.T) {
	published := make(chan *packets.Publish, 64)
	dialer := &pipeDialer{serve: func(n int, conn net.Conn) {
		if _, err := acceptConnect(conn, 0); err != nil {
			return
		}
		if n == 1 {
			// Drop the connection after the first message.
			forwardPublishes(conn, published, 1)
			return
		}
		forwardPublishes(conn, published, 0)
	}}
	core, logs := observer.New(zapcore.WarnLevel)
	p, err := New(testConfig(), sensor.NewSimulatedADC(2, 10), WithDialer(dialer), WithLogger(zap.New(core)))
	require.NoError(t, err)
	stop := runPublisher(t, p)

	receive(t, published)
	receive(t, published)
	require.NoError(t, stop())

	assert.GreaterOrEqual(t, dialer.count(), 2)
	failures := logs.FilterMessage("Session failed, reconnecting").All()
	require.NotEmpty(t, failures)
	assert.Equal(t, "network", failures[0].ContextMap()["kind"])
}

func TestReconnectAfterRejection(t *testing.T) {
	published := make(chan *packets.Publish, 64)
	dialer := &pipeDialer{serve: func(n int, conn net.Conn) {
		if n == 1 {
			acceptConnect(conn, byte(mqtt.ReasonNotAuthorized))
			return
		}
		if _, err := acceptConnect(conn, 0); err != nil {
			return
		}
		forwardPublishes(conn, published, 0)
	}}
	core, logs := observer.New(zapcore.WarnLevel)
	p, err := New(testConfig(), sensor.NewSimulatedADC(3, 10), WithDialer(dialer), WithLogger(zap.New(core)))
	require.NoError(t, err)
	stop := runPublisher(t, p)

	receive(t, published)
	require.NoError(t, stop())

	failures := logs.FilterMessage("Session failed, reconnecting").All()
	require.NotEmpty(t, failures)
	fields := failures[0].ContextMap()
	assert.Equal(t, "other", fields["kind"])
	assert.Equal(t, "not authorized", fields["description"])
	assert.Equal(t, 2, dialer.count())
}

func TestRunStopsOnPermanentFailure(t *testing.T) {
	dialer := &pipeDialer{serve: func(n int, conn net.Conn) {}}
	cfg := testConfig()
	cfg.ClientID = strings.Repeat("s", 90) // CONNECT exceeds BufferSize.
	p, err := New(cfg, sensor.NewSimulatedADC(4, 10), WithDialer(dialer), WithLogger(zap.NewNop()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	err = p.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "new session")
	assert.Equal(t, 1, dialer.count())
}

func TestRunReturnsNilOnCancel(t *testing.T) {
	dialer := &pipeDialer{serve: func(n int, conn net.Conn) {
		// Never reply to CONNECT.
		io.Copy(io.Discard, conn)
	}}
	p, err := New(testConfig(), sensor.NewSimulatedADC(5, 10), WithDialer(dialer), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	stop := runPublisher(t, p)
	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, stop())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	adc := sensor.NewSimulatedADC(6, 1)
	for _, mutate := range []func(*Config){
		func(c *Config) { c.Broker = "" },
		func(c *Config) { c.ClientID = "" },
		func(c *Config) { c.Topic = "" },
		func(c *Config) { c.Topic = "sensor/+" },
		func(c *Config) { c.Topic = "sensor/#" },
		func(c *Config) { c.Topic = "sensor\x00adc" },
		func(c *Config) { c.Topic = strings.Repeat("t", 70) }, // PUBLISH exceeds BufferSize.
		func(c *Config) { c.BufferSize = 80 },
		func(c *Config) { c.Interval = 0 },
		func(c *Config) { c.BufferSize = -1 },
		func(c *Config) { c.Timeout = 0 },
		func(c *Config) { c.MaxBackoff = c.RetryDelay / 2 },
	} {
		cfg := DefaultConfig()
		mutate(&cfg)
		_, err := New(cfg, adc)
		assert.Error(t, err, "%+v", cfg)
	}
	_, err := New(DefaultConfig(), nil)
	assert.Error(t, err)
	_, err = New(DefaultConfig(), adc, WithDialer(nil))
	assert.Error(t, err)
	assert.NoError(t, DefaultConfig().Validate())
}

// countingReader returns the same raw value on every Read.
type countingReader struct {
	raw   uint16
	reads int32
}

func (cr *countingReader) Read(ctx context.Context) (sensor.Reading, error) {
	atomic.AddInt32(&cr.reads, 1)
	return sensor.Reading{Raw: cr.raw, At: time.Now()}, nil
}

func TestReadingKeptAfterSendFailure(t *testing.T) {
	published := make(chan *packets.Publish, 64)
	dialer := &pipeDialer{serve: func(n int, conn net.Conn) {
		if _, err := acceptConnect(conn, 0); err != nil {
			return
		}
		if n == 1 {
			return // Close before the first PUBLISH.
		}
		forwardPublishes(conn, published, 0)
	}}
	cfg := testConfig()
	cfg.Interval = time.Hour // A single reading for the whole test.
	reader := &countingReader{raw: 1234}
	p, err := New(cfg, reader, WithDialer(dialer), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	stop := runPublisher(t, p)

	pub := receive(t, published)
	require.NoError(t, stop())
	assert.Equal(t, "adc=1234", string(pub.Payload))
	assert.Equal(t, int32(1), atomic.LoadInt32(&reader.reads))
	assert.Equal(t, 2, dialer.count())
}
