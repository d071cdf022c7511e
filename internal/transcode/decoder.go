// ABOUTME: Pull-based decoder from upstream event-stream frames to relay events
// ABOUTME: One frame in, one RelayEvent out; stops at the [DONE] sentinel

package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DoneSentinel is the data payload that marks the end of generation.
const DoneSentinel = "[DONE]"

// ErrTranscode matches every *Error with errors.Is.
var ErrTranscode = errors.New("transcode error")

// ErrPrematureEnd reports an upstream body that ended before DoneSentinel.
var ErrPrematureEnd = errors.New("upstream stream ended before terminal marker")

// Error describes a frame that could not be decoded. It aborts the stream.
type Error struct {
	Frame int    // 1-based index of the offending frame, 0 if none was read
	Data  string // payload excerpt, truncated
	Err   error
}

func (e *Error) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("transcode frame %d (%q): %v", e.Frame, e.Data, e.Err)
	}
	return fmt.Sprintf("transcode frame %d: %v", e.Frame, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTranscode) true for any *Error.
func (e *Error) Is(target error) bool { return target == ErrTranscode }

// RelayEvent is one normalized event. Concatenating TextDelta over a stream
// reconstitutes the full reply. The single Terminal event is last and
// carries no text.
type RelayEvent struct {
	TextDelta string
	Terminal  bool
}

// Decoder turns an upstream event stream into RelayEvents on demand.
// It is finite and not restartable.
type Decoder struct {
	frames  *FrameReader
	dialect Dialect
	count   int
	done    bool
}

// NewDecoder creates a decoder over r using dialect to extract text.
func NewDecoder(r io.Reader, dialect Dialect) *Decoder {
	if dialect.Extract == nil {
		dialect = WorkersAI
	}
	return &Decoder{
		frames:  NewFrameReader(r),
		dialect: dialect,
	}
}

// Next returns the next RelayEvent. After the terminal event it returns
// io.EOF. A cancelled ctx is reported as ctx.Err() before and after the read.
func (d *Decoder) Next(ctx context.Context) (RelayEvent, error) {
	if d.done {
		return RelayEvent{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return RelayEvent{}, err
	}

	frame, err := d.frames.Next()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return RelayEvent{}, ctxErr
		}
		d.done = true
		if errors.Is(err, io.EOF) {
			return RelayEvent{}, &Error{Frame: d.count, Err: ErrPrematureEnd}
		}
		return RelayEvent{}, &Error{Frame: d.count + 1, Err: err}
	}
	d.count++

	if frame.Data == DoneSentinel {
		d.done = true
		return RelayEvent{Terminal: true}, nil
	}

	fragment, err := d.dialect.Extract([]byte(frame.Data))
	if err != nil {
		d.done = true
		return RelayEvent{}, &Error{Frame: d.count, Data: excerpt(frame.Data), Err: err}
	}
	return RelayEvent{TextDelta: fragment}, nil
}

// Frames returns how many frames have been consumed.
func (d *Decoder) Frames() int { return d.count }

func excerpt(s string) string {
	const limit = 64
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
