// ABOUTME: Upstream inference client contract and the streaming/not-streaming result type
// ABOUTME: Callers get a raw token stream or a description of why none was opened

package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/2389/chat-relay/internal/store"
	"github.com/2389/chat-relay/internal/transcode"
)

// ErrUpstreamRejected is returned when the upstream did not open a stream.
var ErrUpstreamRejected = errors.New("upstream rejected request")

// RawTokenStream is the undecoded upstream event stream. The holder must
// close it; closing early cancels the upstream read.
type RawTokenStream = io.ReadCloser

// Opened is the outcome of asking the upstream for a completion. It is
// either *StreamOpened or *NotStreaming.
type Opened interface {
	opened()
}

// StreamOpened carries a live stream and the dialect needed to decode it.
type StreamOpened struct {
	Stream  RawTokenStream
	Dialect transcode.Dialect
}

// NotStreaming describes an upstream response that did not carry a stream.
type NotStreaming struct {
	Status      int
	ContentType string
	Detail      string
}

func (*StreamOpened) opened() {}
func (*NotStreaming) opened() {}

// Require converts an Opened into a live stream or ErrUpstreamRejected.
func Require(o Opened) (*StreamOpened, error) {
	switch v := o.(type) {
	case *StreamOpened:
		return v, nil
	case *NotStreaming:
		msg := fmt.Sprintf("status %d, content-type %q", v.Status, v.ContentType)
		if v.Detail != "" {
			msg += ": " + v.Detail
		}
		return nil, fmt.Errorf("%w: %s", ErrUpstreamRejected, msg)
	default:
		return nil, fmt.Errorf("%w: no response", ErrUpstreamRejected)
	}
}

// Client submits a full conversation and requests incremental output.
type Client interface {
	Open(ctx context.Context, history store.History) (Opened, error)
}

// isEventStream reports whether a Content-Type header names text/event-stream,
// ignoring parameters such as charset.
func isEventStream(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.EqualFold(strings.TrimSpace(mediaType), "text/event-stream")
}

// readDetail returns a short excerpt of a rejected response body.
func readDetail(body io.Reader) string {
	const limit = 512
	b, _ := io.ReadAll(io.LimitReader(body, limit))
	return strings.TrimSpace(string(b))
}
