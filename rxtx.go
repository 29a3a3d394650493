package mqtt

import (
	"context"
	"errors"
	"io"
	"time"
)

// RxTx implements a bare minimum MQTT protocol transport layer handler over
// two user provided buffers. Every outgoing packet is encoded in full into the
// write buffer and handed to the transport in a single write. Every incoming
// packet body is read in full into the receive buffer before being decoded.
type RxTx struct {
	trp   io.ReadWriter
	txBuf []byte
	rxBuf []byte
}

// transportError marks failures reported by the transport itself, as opposed
// to failures encoding or decoding packets.
type transportError struct{ err error }

func (te *transportError) Error() string { return te.err.Error() }
func (te *transportError) Unwrap() error { return te.err }

// deadliner is implemented by transports that support I/O deadlines such as net.Conn.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// aLongTimeAgo is a non-zero time far in the past used to interrupt pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

// NewRxTx creates a new RxTx. txBuf and rxBuf are used for the entire life of
// the RxTx and must not be accessed by anyone else during it.
func NewRxTx(transport io.ReadWriter, txBuf, rxBuf []byte) (*RxTx, error) {
	if transport == nil {
		return nil, errors.New("got nil transport")
	}
	if len(txBuf) == 0 || len(rxBuf) == 0 {
		return nil, ErrUserBufferFull
	}
	return &RxTx{trp: transport, txBuf: txBuf, rxBuf: rxBuf}, nil
}

// bindContext ties ctx to the transport for the duration of a single operation.
// If the transport supports deadlines the ctx deadline is applied and ctx
// cancellation interrupts blocked reads and writes. The returned function must
// be called once the operation is done. A ctx that can neither expire nor be
// cancelled leaves the transport deadline set by the caller untouched.
func (rxtx *RxTx) bindContext(ctx context.Context) (release func()) {
	d, ok := rxtx.trp.(deadliner)
	_, hasDeadline := ctx.Deadline()
	if !ok || (!hasDeadline && ctx.Done() == nil) {
		return func() {}
	}
	if dl, ok := ctx.Deadline(); ok {
		d.SetDeadline(dl)
	}
	if ctx.Done() == nil {
		return func() { d.SetDeadline(time.Time{}) }
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-ctx.Done():
			d.SetDeadline(aLongTimeAgo)
		case <-stop:
		}
	}()
	return func() {
		close(stop)
		<-done
		d.SetDeadline(time.Time{})
	}
}

// WriteConnect encodes a CONNECT packet over the wire.
func (rxtx *RxTx) WriteConnect(varConn *VariablesConnect) error {
	w := fixedBuffer{buf: rxtx.txBuf}
	h := newHeader(PacketConnect, 0, uint32(varConn.Size()))
	_, err := h.Encode(&w)
	if err != nil {
		return err
	}
	_, err = encodeConnect(&w, varConn)
	if err != nil {
		return err
	}
	return rxtx.flush(w.Bytes())
}

// WritePublishPayload encodes a PUBLISH packet with the given flags over the wire.
// The RemainingLength is calculated from varPub and payload.
func (rxtx *RxTx) WritePublishPayload(flags PacketFlags, varPub VariablesPublish, payload []byte) error {
	qos := flags.QoS()
	if err := varPub.Validate(qos); err != nil {
		return err
	}
	h, err := NewHeader(PacketPublish, flags, uint32(varPub.Size(qos)+len(payload)))
	if err != nil {
		return err
	}
	w := fixedBuffer{buf: rxtx.txBuf}
	_, err = h.Encode(&w)
	if err != nil {
		return err
	}
	_, err = encodePublish(&w, qos, varPub)
	if err != nil {
		return err
	}
	_, err = writeFull(&w, payload)
	if err != nil {
		return err
	}
	return rxtx.flush(w.Bytes())
}

func (rxtx *RxTx) flush(packet []byte) error {
	_, err := writeFull(rxtx.trp, packet)
	if err != nil {
		return &transportError{err: err}
	}
	return nil
}

// ReadNextPacket reads the next packet's fixed header from the transport and its
// body into the receive buffer. The returned body aliases the receive buffer.
func (rxtx *RxTx) ReadNextPacket() (Header, []byte, error) {
	hdr, _, err := DecodeHeader(rxtx.trp)
	if err != nil {
		if errors.Is(err, errMalformedRemLen) || errors.Is(err, errMalformedPacket) || errors.Is(err, errBadPacketType) {
			return Header{}, nil, err
		}
		return Header{}, nil, &transportError{err: err}
	}
	if hdr.RemainingLength > uint32(len(rxtx.rxBuf)) {
		return hdr, nil, errRxBufferFull
	}
	body := rxtx.rxBuf[:hdr.RemainingLength]
	_, err = readFull(rxtx.trp, body)
	if err != nil {
		return hdr, nil, &transportError{err: err}
	}
	return hdr, body, nil
}

// fixedBuffer is an io.Writer over a fixed capacity byte slice. Writes that do
// not fit fail with ErrUserBufferFull and write nothing.
type fixedBuffer struct {
	buf []byte
	off int
}

func (fb *fixedBuffer) Write(b []byte) (int, error) {
	if len(b) > len(fb.buf)-fb.off {
		return 0, ErrUserBufferFull
	}
	n := copy(fb.buf[fb.off:], b)
	fb.off += n
	return n, nil
}

// Bytes returns the bytes written so far.
func (fb *fixedBuffer) Bytes() []byte { return fb.buf[:fb.off] }
