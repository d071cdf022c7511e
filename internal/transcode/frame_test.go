// ABOUTME: Tests for the event-stream frame reader
// ABOUTME: Covers line endings, comments, multi-line data, field parsing and size limits

package transcode

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAllFrames(t *testing.T, input string) []Frame {
	t.Helper()
	fr := NewFrameReader(strings.NewReader(input))
	var frames []Frame
	for {
		f, err := fr.Next()
		if errors.Is(err, io.EOF) {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}
}

func TestFrameReader_LineEndings(t *testing.T) {
	for name, input := range map[string]string{
		"lf":   "data: a\n\ndata: b\n\n",
		"crlf": "data: a\r\n\r\ndata: b\r\n\r\n",
		"cr":   "data: a\r\rdata: b\r\r",
	} {
		t.Run(name, func(t *testing.T) {
			frames := readAllFrames(t, input)
			require.Len(t, frames, 2)
			assert.Equal(t, "a", frames[0].Data)
			assert.Equal(t, "b", frames[1].Data)
		})
	}
}

func TestFrameReader_CommentsAndEmptyFramesSkipped(t *testing.T) {
	frames := readAllFrames(t, ": keepalive\n\nevent: ping\n\ndata: x\n\n")
	require.Len(t, frames, 1)
	assert.Equal(t, "x", frames[0].Data)
}

func TestFrameReader_MultiLineData(t *testing.T) {
	frames := readAllFrames(t, "data: first\ndata: second\ndata\n\n")
	require.Len(t, frames, 1)
	assert.Equal(t, "first\nsecond\n", frames[0].Data)
}

func TestFrameReader_Fields(t *testing.T) {
	frames := readAllFrames(t, "event: message\nid: 42\nretry: 1500\ndata:no-space\n\n")
	require.Len(t, frames, 1)
	assert.Equal(t, Frame{Event: "message", ID: "42", Retry: 1500, Data: "no-space"}, frames[0])
}

func TestFrameReader_OnlyFirstSpaceStripped(t *testing.T) {
	frames := readAllFrames(t, "data:  two spaces\n\n")
	require.Len(t, frames, 1)
	assert.Equal(t, " two spaces", frames[0].Data)
}

func TestFrameReader_FinalFrameWithoutBlankLine(t *testing.T) {
	frames := readAllFrames(t, "data: a\n\ndata: [DONE]")
	require.Len(t, frames, 2)
	assert.Equal(t, "[DONE]", frames[1].Data)
}

func TestFrameReader_OversizedLine(t *testing.T) {
	input := "data: " + strings.Repeat("x", MaxFrameBytes+1) + "\n\n"
	fr := NewFrameReader(strings.NewReader(input))
	_, err := fr.Next()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestFrameReader_ReadsIncrementally(t *testing.T) {
	pr, pw := io.Pipe()
	fr := NewFrameReader(pr)

	go func() {
		_, _ = pw.Write([]byte("data: one\n\n"))
	}()

	f, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, "one", f.Data)

	go func() {
		_, _ = pw.Write([]byte("data: two\n\n"))
		_ = pw.Close()
	}()

	f, err = fr.Next()
	require.NoError(t, err)
	assert.Equal(t, "two", f.Data)

	_, err = fr.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameReader_DeliversWithoutFollowingByte(t *testing.T) {
	for name, input := range map[string]string{
		"lf":   "data: {\"response\":\"a\"}\n\n",
		"cr":   "data: {\"response\":\"a\"}\r\r",
		"crlf": "data: {\"response\":\"a\"}\r\n\r\n",
	} {
		t.Run(name, func(t *testing.T) {
			pr, pw := io.Pipe()
			defer pw.Close()
			fr := NewFrameReader(pr)

			go func() {
				_, _ = pw.Write([]byte(input))
			}()

			type result struct {
				f   Frame
				err error
			}
			done := make(chan result, 1)
			go func() {
				f, err := fr.Next()
				done <- result{f, err}
			}()

			select {
			case r := <-done:
				require.NoError(t, r.err)
				assert.Equal(t, `{"response":"a"}`, r.f.Data)
			case <-time.After(2 * time.Second):
				t.Fatal("frame not delivered while the stream stayed open")
			}
		})
	}
}

func TestFrameReader_CRLFSplitAcrossWrites(t *testing.T) {
	pr, pw := io.Pipe()
	fr := NewFrameReader(pr)

	go func() {
		_, _ = pw.Write([]byte("data: one\r"))
		_, _ = pw.Write([]byte("\n\r"))
		_, _ = pw.Write([]byte("\ndata: two\r\n\r\n"))
		_ = pw.Close()
	}()

	f, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, "one", f.Data)

	f, err = fr.Next()
	require.NoError(t, err)
	assert.Equal(t, "two", f.Data)

	_, err = fr.Next()
	assert.ErrorIs(t, err, io.EOF)
}
