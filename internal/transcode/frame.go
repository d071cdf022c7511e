// ABOUTME: Incremental reader for the text/event-stream wire format
// ABOUTME: Splits a byte stream into frames one at a time without buffering the whole body

package transcode

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
)

// MaxFrameBytes bounds the data carried by a single frame.
const MaxFrameBytes = 1 << 20

// ErrFrameTooLarge is returned when a line or frame exceeds MaxFrameBytes.
var ErrFrameTooLarge = errors.New("event-stream frame exceeds size limit")

// Frame is one dispatched event-stream frame.
type Frame struct {
	Event string
	ID    string
	Data  string
	Retry int // milliseconds, 0 when not sent
}

// FrameReader parses frames from an event stream.
//
// Lines may end in LF, CRLF or a lone CR. Lines beginning with ':' are
// comments. Multiple data lines in one frame are joined with '\n'. A blank
// line dispatches the frame; frames that carried no data line are skipped.
type FrameReader struct {
	r    *bufio.Reader
	line []byte
	// pendingCR is set after a line ended in '\r'; a '\n' that follows
	// belongs to the same terminator.
	pendingCR bool
}

// NewFrameReader wraps r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// Next returns the next frame that carries data. It returns io.EOF when the
// input ends cleanly between frames. A final frame that is not followed by a
// blank line is still dispatched.
func (fr *FrameReader) Next() (Frame, error) {
	var (
		frame   Frame
		data    strings.Builder
		hasData bool
	)

	for {
		line, err := fr.readLine()
		if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
			if errors.Is(err, io.EOF) && hasData {
				frame.Data = data.String()
				return frame, nil
			}
			return Frame{}, err
		}

		if len(line) == 0 {
			if hasData {
				frame.Data = data.String()
				return frame, nil
			}
			frame = Frame{}
			continue
		}

		if line[0] == ':' {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			if data.Len()+len(value) > MaxFrameBytes {
				return Frame{}, ErrFrameTooLarge
			}
			data.Write(value)
			hasData = true
		case "event":
			frame.Event = string(value)
		case "id":
			frame.ID = string(value)
		case "retry":
			if n, convErr := strconv.Atoi(string(value)); convErr == nil {
				frame.Retry = n
			}
		}
	}
}

// splitField splits "field: value" per the event-stream rules: the first
// colon separates, and a single leading space in the value is dropped.
func splitField(line []byte) (string, []byte) {
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return string(line), nil
	}
	value := line[i+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return string(line[:i]), value
}

// readLine returns the next line without its terminator. The returned slice
// is only valid until the next call. At end of input it returns the
// trailing partial line (possibly empty) together with io.EOF.
func (fr *FrameReader) readLine() ([]byte, error) {
	fr.line = fr.line[:0]
	for {
		b, err := fr.r.ReadByte()
		if err != nil {
			return fr.line, err
		}
		if fr.pendingCR {
			fr.pendingCR = false
			if b == '\n' {
				continue
			}
		}
		switch b {
		case '\n':
			return fr.line, nil
		case '\r':
			fr.pendingCR = true
			return fr.line, nil
		}
		if len(fr.line) >= MaxFrameBytes {
			return nil, ErrFrameTooLarge
		}
		fr.line = append(fr.line, b)
	}
}
