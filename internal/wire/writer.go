package wire

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/zlib"
)

// CompressionThreshold is the minimum payload size, in bytes, above which
// the writer will prefer a ZPipe0 zlib-wrapped frame over a plain one.
// Chosen to keep small control frames (Lock, MyINFO deltas) uncompressed,
// where zlib framing overhead would dominate.
const CompressionThreshold = 1400

// Sink is the minimal write surface a Writer flushes onto — satisfied by
// net.Conn and by test doubles.
type Sink interface {
	Write([]byte) (int, error)
}

// Stats accumulates writer-side observability counters. All fields are
// read/written only while the owning Writer's mutex is held.
type Stats struct {
	BytesWritten      uint64
	BytesSaved        uint64 // estimated bytes saved by compression
	FramesCompressed  uint64
	FramesUncompressed uint64
	LastAttempt       time.Time
}

// Writer buffers and flushes outbound frames for one connection, with
// optional zlib (ZPipe0) compression above CompressionThreshold. All
// outbound sends funnel through Write, which appends the "|" terminator if
// missing and either flushes immediately or buffers for the next Flush
// call, depending on the "delay" parameter.
type Writer struct {
	mu              sync.Mutex
	sink            Sink
	pending         bytes.Buffer
	zpipeNegotiated bool
	stats           Stats
}

// NewWriter returns a Writer that flushes onto sink.
func NewWriter(sink Sink) *Writer {
	return &Writer{sink: sink}
}

// SetZPipeNegotiated records whether the peer announced ZPipe0/ZPipe
// support in its $Supports frame. Compression is only attempted when true.
func (w *Writer) SetZPipeNegotiated(v bool) {
	w.mu.Lock()
	w.zpipeNegotiated = v
	w.mu.Unlock()
}

// Write appends frame (adding the "|" terminator if absent) to the
// connection's outbound stream. When delay is true the bytes are buffered
// until the next Flush; otherwise they are written to the sink immediately
// (after any already-buffered bytes).
func (w *Writer) Write(frame []byte, delay bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(frame) == 0 || frame[len(frame)-1] != '|' {
		frame = append(append([]byte{}, frame...), '|')
	}

	out := frame
	compressed := false
	if w.zpipeNegotiated && len(frame) >= CompressionThreshold {
		if z, ok := zpipeCompress(frame); ok {
			out = z
			compressed = true
		}
	}

	w.pending.Write(out)
	w.stats.LastAttempt = time.Now()
	if compressed {
		w.stats.FramesCompressed++
		if len(frame) > len(out) {
			w.stats.BytesSaved += uint64(len(frame) - len(out))
		}
	} else {
		w.stats.FramesUncompressed++
	}

	if !delay {
		return w.flushLocked()
	}
	return nil
}

// Flush writes any buffered bytes to the sink now.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	if w.pending.Len() == 0 {
		return nil
	}
	n, err := w.sink.Write(w.pending.Bytes())
	w.stats.BytesWritten += uint64(n)
	w.pending.Reset()
	return err
}

// Stats returns a snapshot of the writer's observability counters.
func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// zpipeCompress wraps data in a zlib stream. The NMDC ZPipe0 extension
// expects a bare zlib stream (not gzip), which is exactly what
// klauspost/compress/zlib produces — a drop-in, faster replacement for
// compress/zlib.
func zpipeCompress(data []byte) ([]byte, bool) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, false
	}
	if err := zw.Close(); err != nil {
		return nil, false
	}
	if buf.Len() >= len(data) {
		return nil, false // compression didn't help; send plain
	}
	return buf.Bytes(), true
}

// ZPipeDecompress reverses zpipeCompress for inbound frames sent by clients
// that also negotiated ZPipe0.
func ZPipeDecompress(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
