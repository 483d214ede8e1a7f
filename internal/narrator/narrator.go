// ABOUTME: Narrator speaks text on a single background worker with cooperative cancellation.
// ABOUTME: A new narration waits for the previous one to finish; Stop halts the running engine at once.
package narrator

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultRate is the speaking rate used when none is configured.
const DefaultRate = 150

// State is the narrator's playback state.
type State int32

const (
	Idle State = iota
	Speaking
)

func (s State) String() string {
	if s == Speaking {
		return "speaking"
	}
	return "idle"
}

// Engine speaks text. Each narration task gets its own engine from an
// EngineFactory. Stop may be called from another goroutine while Say is
// running; after Stop, Say must return without producing audio.
type Engine interface {
	Say(text string, rate int) error
	Stop() error
}

// EngineFactory initializes a speech engine.
type EngineFactory func() (Engine, error)

// Narrator owns the narration state: the running task, its engine, and its
// cancellation signal. At most one task runs at a time.
type Narrator struct {
	newEngine EngineFactory
	rate      int
	log       zerolog.Logger

	// callMu serializes Speak callers. Stop never takes it.
	callMu sync.Mutex

	mu     sync.Mutex // guards cancel, engine, done, stops
	cancel context.CancelFunc
	engine Engine
	done   chan struct{}
	stops  uint64

	state atomic.Int32
}

// Option configures a Narrator.
type Option func(*Narrator)

// WithRate sets the speaking rate passed to the engine.
func WithRate(rate int) Option {
	return func(n *Narrator) {
		if rate > 0 {
			n.rate = rate
		}
	}
}

// WithLogger sets the narrator logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(n *Narrator) {
		n.log = logger
	}
}

// New creates an idle narrator that builds engines with factory.
func New(factory EngineFactory, opts ...Option) *Narrator {
	n := &Narrator{
		newEngine: factory,
		rate:      DefaultRate,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// State reports whether a narration is running.
func (n *Narrator) State() State {
	return State(n.state.Load())
}

// Speak narrates text in the background. A running narration is signalled to
// stop at its next utterance boundary and awaited before the new one starts.
// If Stop is called while Speak is waiting, the new narration is dropped.
// Blank text is ignored.
func (n *Narrator) Speak(text string) {
	utterances := SplitUtterances(text)
	if len(utterances) == 0 {
		return
	}

	n.mu.Lock()
	gen := n.stops
	n.mu.Unlock()

	n.callMu.Lock()
	defer n.callMu.Unlock()

	n.interrupt(false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	n.mu.Lock()
	if n.stops != gen {
		n.mu.Unlock()
		cancel()
		n.log.Debug().Msg("narration dropped by stop")
		return
	}
	n.cancel = cancel
	n.done = done
	n.state.Store(int32(Speaking))
	n.mu.Unlock()

	go n.run(ctx, cancel, done, uuid.NewString(), utterances)
}

// Stop signals the running narration and halts its engine, then waits for the
// task to end. Narrations still waiting to start are dropped. The narrator is
// Idle when Stop returns.
func (n *Narrator) Stop() {
	n.interrupt(true)
}

// Wait blocks until the current narration, if any, has finished.
func (n *Narrator) Wait() {
	n.mu.Lock()
	done := n.done
	n.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Close stops any narration.
func (n *Narrator) Close() {
	n.Stop()
}

// interrupt cancels the running task, optionally hard-stops its engine, and
// joins it. A hard interrupt also invalidates pending Speak calls.
func (n *Narrator) interrupt(hard bool) {
	n.mu.Lock()
	if hard {
		n.stops++
	}
	cancel, engine, done := n.cancel, n.engine, n.done
	if cancel != nil {
		cancel()
	}
	n.mu.Unlock()

	if hard && engine != nil {
		if err := engine.Stop(); err != nil {
			n.log.Debug().Err(err).Msg("engine stop failed")
		}
	}
	if done != nil {
		<-done
	}
}

func (n *Narrator) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}, id string, utterances []string) {
	log := n.log.With().Str("narration", id).Logger()
	defer func() {
		cancel()
		n.state.Store(int32(Idle))
		n.mu.Lock()
		n.engine = nil
		if n.done == done {
			n.cancel = nil
			n.done = nil
		}
		n.mu.Unlock()
		close(done)
	}()

	engine, err := n.newEngine()
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize speech engine")
		return
	}

	// Publishing the engine under mu after checking ctx means a concurrent
	// Stop either sees the engine or has already cancelled ctx.
	n.mu.Lock()
	if ctx.Err() != nil {
		n.mu.Unlock()
		return
	}
	n.engine = engine
	n.mu.Unlock()

	log.Debug().Int("utterances", len(utterances)).Int("rate", n.rate).Msg("narration started")
	for i, u := range utterances {
		if ctx.Err() != nil {
			log.Debug().Int("spoken", i).Msg("narration cancelled")
			return
		}
		if err := engine.Say(u, n.rate); err != nil {
			// playback errors, including those caused by Stop, are not surfaced
			log.Debug().Err(err).Msg("playback interrupted")
			return
		}
	}
	log.Debug().Msg("narration finished")
}

// SplitUtterances breaks text into utterances at line breaks and sentence
// terminators, dropping blank pieces. Cancellation is honoured between them.
func SplitUtterances(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		var b strings.Builder
		runes := []rune(line)
		for i, r := range runes {
			b.WriteRune(r)
			if (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
				out = appendTrimmed(out, b.String())
				b.Reset()
			}
		}
		out = appendTrimmed(out, b.String())
	}
	return out
}

func appendTrimmed(out []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || strings.Trim(s, ".!?") == "" {
		return out
	}
	return append(out, s)
}
