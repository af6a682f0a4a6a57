package wire

import (
	"bytes"
	"fmt"
)

// DefaultMaxFrameBytes bounds how large the growable input buffer may get
// before a connection is considered abusive and closed. Individual frame
// kinds may enforce tighter caps in internal/message.
const DefaultMaxFrameBytes = 1 << 20 // 1 MiB

// ErrBufferOverflow is returned by Reader.Feed when the accumulated,
// still-unterminated input exceeds MaxBytes.
type ErrBufferOverflow struct{ Size int }

func (e ErrBufferOverflow) Error() string {
	return fmt.Sprintf("wire: input buffer exceeded %d bytes without a frame terminator", e.Size)
}

// ErrEmbeddedNUL is returned when a non-Lock frame contains a NUL byte that
// is not a trailing pad — the connection must be closed with a syntax
// error.
type ErrEmbeddedNUL struct{ Frame []byte }

func (e ErrEmbeddedNUL) Error() string { return "wire: embedded NUL in frame" }

// Reader extracts pipe-terminated frames from a growable per-connection
// input buffer, the way the original Verlihub accumulates partial TCP reads
// until a full "|"-terminated message is available.
type Reader struct {
	buf      []byte
	MaxBytes int
}

// NewReader returns a Reader with the default maximum buffered size.
func NewReader() *Reader {
	return &Reader{MaxBytes: DefaultMaxFrameBytes}
}

// Feed appends newly-read bytes and returns every complete frame (with the
// trailing "|" stripped) now extractable from the buffer, in wire order.
// A frame containing only the empty string is a heartbeat (§4.1) and is
// still returned — callers decide how to count/ignore it.
func (r *Reader) Feed(data []byte) ([][]byte, error) {
	r.buf = append(r.buf, data...)

	var frames [][]byte
	for {
		idx := bytes.IndexByte(r.buf, '|')
		if idx < 0 {
			break
		}
		frame := r.buf[:idx]
		r.buf = r.buf[idx+1:]
		frames = append(frames, cloneBytes(frame))
	}

	if len(r.buf) > r.MaxBytes {
		return frames, ErrBufferOverflow{Size: len(r.buf)}
	}
	return frames, nil
}

// SanitizeLockFrame strips any embedded NUL bytes from a Lock frame —
// legacy clients sometimes emit them inside the referer portion of the
// Lock echo. Returns the cleaned frame.
func SanitizeLockFrame(frame []byte) []byte {
	if bytes.IndexByte(frame, 0) < 0 {
		return frame
	}
	out := make([]byte, 0, len(frame))
	for _, c := range frame {
		if c != 0 {
			out = append(out, c)
		}
	}
	return out
}

// SanitizeFrame trims trailing NUL bytes from a non-Lock frame. If a NUL
// remains embedded (not trailing), it returns ErrEmbeddedNUL — the caller
// must close the connection with a syntax-error reason.
func SanitizeFrame(frame []byte) ([]byte, error) {
	end := len(frame)
	for end > 0 && frame[end-1] == 0 {
		end--
	}
	trimmed := frame[:end]
	if bytes.IndexByte(trimmed, 0) >= 0 {
		return nil, ErrEmbeddedNUL{Frame: frame}
	}
	return trimmed, nil
}

// IsHeartbeat reports whether a (post-strip) frame is the pipe-only
// heartbeat probe — an empty frame body.
func IsHeartbeat(frame []byte) bool { return len(frame) == 0 }

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
