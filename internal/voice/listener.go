// ABOUTME: Voice input adapter: records until a pause, then transcribes to text.
// ABOUTME: Failures degrade to an empty transcript with a user-visible notice.
package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single capture.
const DefaultTimeout = 15 * time.Second

// DefaultTranscribeTimeout bounds the transcription request that follows a capture.
const DefaultTranscribeTimeout = 10 * time.Second

// wavHeaderSize is the size of a canonical RIFF/WAVE header; captures no
// longer than this carry no audio.
const wavHeaderSize = 44

var (
	// ErrNotUnderstood means audio was captured but no speech could be recognized.
	ErrNotUnderstood = errors.New("could not understand audio")
	// ErrServiceUnavailable means capture or transcription backends could not be reached.
	ErrServiceUnavailable = errors.New("speech service unavailable")
)

// Recorder captures audio from the microphone until the speaker pauses.
type Recorder interface {
	Record(ctx context.Context) ([]byte, error)
}

// Transcriber converts captured audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Listener pairs a Recorder with a Transcriber.
type Listener struct {
	recorder    Recorder
	transcriber Transcriber
	timeout     time.Duration
	transcribe  time.Duration
	log         zerolog.Logger
}

// Option configures a Listener.
type Option func(*Listener)

// WithTimeout bounds how long a capture may run.
func WithTimeout(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithTranscribeTimeout bounds how long transcription may run once capture ends.
// Listen returns within the capture timeout plus this.
func WithTranscribeTimeout(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.transcribe = d
		}
	}
}

// WithLogger sets the listener logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Listener) {
		l.log = logger
	}
}

// NewListener creates a listener.
func NewListener(recorder Recorder, transcriber Transcriber, opts ...Option) *Listener {
	l := &Listener{
		recorder:    recorder,
		transcriber: transcriber,
		timeout:     DefaultTimeout,
		transcribe:  DefaultTranscribeTimeout,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Listen records one utterance and returns its transcript. On failure it
// returns "" and an error matching ErrNotUnderstood or ErrServiceUnavailable;
// neither is fatal to the caller.
func (l *Listener) Listen(ctx context.Context) (string, error) {
	captureCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	audio, err := l.recorder.Record(captureCtx)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return "", ctx.Err()
		case errors.Is(err, context.DeadlineExceeded) && len(audio) > wavHeaderSize:
			// ran into the timeout mid-speech; transcribe what was heard
			l.log.Debug().Dur("timeout", l.timeout).Msg("capture timed out, using partial audio")
		case errors.Is(err, context.DeadlineExceeded):
			return "", fmt.Errorf("%w: nothing heard within %s", ErrNotUnderstood, l.timeout)
		case errors.Is(err, ErrNotUnderstood), errors.Is(err, ErrServiceUnavailable):
			return "", err
		default:
			return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
	}
	if len(audio) <= wavHeaderSize {
		return "", ErrNotUnderstood
	}
	l.log.Debug().Int("bytes", len(audio)).Dur("elapsed", time.Since(start)).Msg("captured audio")

	transcribeCtx, cancelTranscribe := context.WithTimeout(ctx, l.transcribe)
	defer cancelTranscribe()

	text, err := l.transcriber.Transcribe(transcribeCtx, audio)
	if err != nil {
		if errors.Is(err, ErrNotUnderstood) || errors.Is(err, ErrServiceUnavailable) || ctx.Err() != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNotUnderstood
	}
	l.log.Info().Str("transcript", text).Msg("transcribed")
	return text, nil
}

// Notice returns the user-visible message for a Listen error.
func Notice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotUnderstood):
		return "Could not understand."
	case errors.Is(err, ErrServiceUnavailable):
		return "Speech service unavailable."
	case errors.Is(err, context.Canceled):
		return "Listening cancelled."
	default:
		return err.Error()
	}
}
