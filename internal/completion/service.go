// ABOUTME: Completion service: load history, stream the upstream reply to the client, commit once
// ABOUTME: History is only written after the terminal event; aborted or failed turns leave the store untouched

package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/chat-relay/internal/metrics"
	"github.com/2389/chat-relay/internal/store"
	"github.com/2389/chat-relay/internal/transcode"
	"github.com/2389/chat-relay/internal/upstream"
)

// DefaultSystemPrompt seeds every new conversation.
const DefaultSystemPrompt = "You are a helpful assistant."

var (
	// ErrClientAborted is returned when the client cancelled or went away.
	// Nothing was committed.
	ErrClientAborted = errors.New("client aborted")

	// ErrInvalidRequest is returned for an empty session key or message.
	ErrInvalidRequest = errors.New("invalid completion request")
)

// Request is one chat turn from a client.
type Request struct {
	SessionKey string
	Message    string
}

// Result describes how a completion ended.
type Result struct {
	RequestID string
	State     State
	// History is the committed conversation; nil unless State is StateDone.
	History store.History
	// Text is the assistant text accumulated so far.
	Text   string
	Frames int
}

// Options configures a Service.
type Options struct {
	// SystemPrompt seeds empty conversations. Empty selects DefaultSystemPrompt.
	SystemPrompt string
	// SerializeSessions holds a per-session lock from load through commit so
	// concurrent turns on one session cannot overwrite each other.
	SerializeSessions bool
	Metrics           *metrics.Metrics
}

// Service relays completions and owns the commit to the conversation cache.
type Service struct {
	store        store.Store
	upstream     upstream.Client
	metrics      *metrics.Metrics
	locks        *sessionLocks
	systemPrompt string
	logger       *slog.Logger
}

// New creates a Service.
func New(st store.Store, up upstream.Client, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	prompt := opts.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	s := &Service{
		store:        st,
		upstream:     up,
		metrics:      opts.Metrics,
		systemPrompt: prompt,
		logger:       logger.With("component", "completion"),
	}
	if opts.SerializeSessions {
		s.locks = newSessionLocks()
	}
	return s
}

// turn tracks one in-flight request.
type turn struct {
	res    *Result
	logger *slog.Logger
	text   strings.Builder
}

func (t *turn) to(state State) {
	t.logger.Debug("state transition", "from", t.res.State.String(), "to", state.String())
	t.res.State = state
}

// Complete runs one chat turn. Events are delivered through emit in order;
// the final event has Done set and is only sent after the turn is committed.
// Committing first means a client that drops right at the end still has its
// turn saved, and no client sees done for a turn that failed to persist.
//
// On client cancellation (ctx done, or emit failing) it returns
// ErrClientAborted. Store, upstream and decode failures are returned wrapped;
// the stored history is unchanged in both cases.
func (s *Service) Complete(ctx context.Context, req Request, emit Emitter) (*Result, error) {
	start := time.Now()
	t := &turn{res: &Result{RequestID: uuid.New().String(), State: StateIdle}}
	t.logger = s.logger.With("request_id", t.res.RequestID, "session", req.SessionKey)

	err := s.run(ctx, t, req, emit)
	t.res.Text = t.text.String()
	if err != nil && !t.res.State.Terminal() {
		// Anything that did not already settle the state is a failure.
		t.to(StateFailed)
	}

	s.metrics.ObserveCompletion(t.res.State.String(), time.Since(start))

	switch t.res.State {
	case StateDone:
		t.logger.Info("completion committed",
			"frames", t.res.Frames,
			"chars", len(t.res.Text),
			"messages", len(t.res.History),
			"duration", time.Since(start))
	case StateAborted:
		t.logger.Info("completion aborted by client", "frames", t.res.Frames, "cause", err)
	default:
		t.logger.Warn("completion failed", "frames", t.res.Frames, "error", err)
	}
	return t.res, err
}

func (s *Service) run(ctx context.Context, t *turn, req Request, emit Emitter) error {
	if req.SessionKey == "" {
		return fmt.Errorf("%w: session key is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	if emit == nil {
		emit = func(Event) error { return nil }
	}

	release, err := s.locks.acquire(ctx, req.SessionKey)
	if err != nil {
		return t.abort(err)
	}
	defer release()

	key := store.MessagesKey(req.SessionKey)

	// Idle -> HistoryLoaded
	history, err := s.store.Load(ctx, key)
	s.metrics.StoreOp("load", err)
	if err != nil {
		if ctx.Err() != nil {
			return t.abort(ctx.Err())
		}
		return fmt.Errorf("loading history: %w", err)
	}
	if len(history) == 0 {
		history = store.History{{Role: store.RoleSystem, Content: s.systemPrompt}}
	} else if err := history.Validate(); err != nil {
		return fmt.Errorf("%w: stored history for %s: %w", store.ErrStoreUnavailable, key, err)
	}
	t.to(StateHistoryLoaded)

	// HistoryLoaded -> Streaming
	user := store.Message{Role: store.RoleUser, Content: req.Message}
	pending := append(history.Clone(), user)

	opened, err := s.upstream.Open(ctx, pending)
	if err != nil {
		if ctx.Err() != nil {
			return t.abort(ctx.Err())
		}
		return fmt.Errorf("opening upstream: %w", err)
	}
	stream, err := upstream.Require(opened)
	if err != nil {
		return err
	}
	defer stream.Stream.Close()

	t.to(StateStreaming)
	defer s.metrics.StreamStarted()()

	dec := transcode.NewDecoder(stream.Stream, stream.Dialect)
	for {
		ev, err := dec.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return t.abort(ctx.Err())
			}
			return fmt.Errorf("decoding upstream: %w", err)
		}
		t.res.Frames++

		if ev.Terminal {
			break
		}

		if err := emit(Event{Response: ev.TextDelta}); err != nil {
			return t.abort(err)
		}
		s.metrics.FrameRelayed()
		t.text.WriteString(ev.TextDelta)
	}

	// Streaming -> Committing
	t.to(StateCommitting)
	if err := ctx.Err(); err != nil {
		return t.abort(err)
	}

	committed := append(pending, store.Message{Role: store.RoleAssistant, Content: t.text.String()})
	err = s.store.Save(ctx, key, committed)
	s.metrics.StoreOp("save", err)
	if err != nil {
		if ctx.Err() != nil {
			return t.abort(ctx.Err())
		}
		return fmt.Errorf("committing history: %w", err)
	}

	t.res.History = committed
	t.to(StateDone)

	if err := emit(Event{Done: true}); err != nil {
		// Already committed; the client just missed the terminal frame.
		t.logger.Debug("client gone before terminal event", "error", err)
	} else {
		s.metrics.FrameRelayed()
	}
	return nil
}

func (t *turn) abort(cause error) error {
	t.to(StateAborted)
	return fmt.Errorf("%w: %w", ErrClientAborted, cause)
}

// History returns the stored conversation without the leading system message.
func (s *Service) History(ctx context.Context, sessionKey string) (store.History, error) {
	history, err := s.store.Load(ctx, store.MessagesKey(sessionKey))
	s.metrics.StoreOp("load", err)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 && history[0].Role == store.RoleSystem {
		history = history[1:]
	}
	return history.Clone(), nil
}

// Reset drops the stored conversation for sessionKey.
func (s *Service) Reset(ctx context.Context, sessionKey string) error {
	err := s.store.Clear(ctx, store.MessagesKey(sessionKey))
	s.metrics.StoreOp("clear", err)
	if err != nil {
		return err
	}
	s.logger.Debug("history cleared", "session", sessionKey)
	return nil
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
