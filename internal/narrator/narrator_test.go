// ABOUTME: Tests for the narrator state machine and speech engines.
// ABOUTME: Uses a fake engine that records utterances and detects overlapping playback.
package narrator

import (
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// playback records what every fake engine said and how many played at once.
type playback struct {
	mu        sync.Mutex
	events    []string
	said      []string
	active    int
	maxActive int
}

func (p *playback) start(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	p.events = append(p.events, "start:"+text)
	p.said = append(p.said, text)
}

func (p *playback) end(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active--
	p.events = append(p.events, "end:"+text)
}

func (p *playback) snapshot() (said []string, events []string, active, maxActive int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.said...), append([]string(nil), p.events...), p.active, p.maxActive
}

type fakeEngine struct {
	pb       *playback
	duration time.Duration
	failWith error

	mu       sync.Mutex
	stopped  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	rates    []int
}

func (e *fakeEngine) Say(text string, rate int) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrStopped
	}
	e.rates = append(e.rates, rate)
	e.mu.Unlock()

	if e.failWith != nil {
		return e.failWith
	}

	e.pb.start(text)
	defer e.pb.end(text)
	select {
	case <-time.After(e.duration):
	case <-e.stopCh:
		return ErrStopped
	}
	return nil
}

func (e *fakeEngine) Stop() error {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	e.stopOnce.Do(func() { close(e.stopCh) })
	return nil
}

func (e *fakeEngine) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

type fakeFactory struct {
	pb       *playback
	duration time.Duration
	failWith error
	initErr  error

	mu      sync.Mutex
	engines []*fakeEngine
}

func (f *fakeFactory) New() (Engine, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	e := &fakeEngine{pb: f.pb, duration: f.duration, failWith: f.failWith, stopCh: make(chan struct{})}
	f.mu.Lock()
	f.engines = append(f.engines, e)
	f.mu.Unlock()
	return e, nil
}

func (f *fakeFactory) all() []*fakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeEngine(nil), f.engines...)
}

func newFake(duration time.Duration) (*fakeFactory, *playback) {
	pb := &playback{}
	return &fakeFactory{pb: pb, duration: duration}, pb
}

func TestSpeakCompletesAndReturnsToIdle(t *testing.T) {
	factory, pb := newFake(5 * time.Millisecond)
	n := New(factory.New)

	assert.Equal(t, Idle, n.State())
	n.Speak("Match found: villa. Match found: loft.")
	assert.Equal(t, Speaking, n.State())
	n.Wait()

	assert.Equal(t, Idle, n.State())
	said, _, _, _ := pb.snapshot()
	assert.Equal(t, []string{"Match found: villa.", "Match found: loft."}, said)
	require.Len(t, factory.all(), 1)
	assert.Equal(t, []int{DefaultRate, DefaultRate}, factory.all()[0].rates)
}

func TestSpeakUsesConfiguredRate(t *testing.T) {
	factory, _ := newFake(time.Millisecond)
	n := New(factory.New, WithRate(200))

	n.Speak("hello")
	n.Wait()

	require.Len(t, factory.all(), 1)
	assert.Equal(t, []int{200}, factory.all()[0].rates)
}

func TestSpeakBlankIsNoop(t *testing.T) {
	factory, _ := newFake(time.Millisecond)
	n := New(factory.New)

	n.Speak("   \n ")
	assert.Equal(t, Idle, n.State())
	assert.Empty(t, factory.all())
}

func TestSpeakSerializesNarrations(t *testing.T) {
	factory, pb := newFake(30 * time.Millisecond)
	n := New(factory.New)

	n.Speak("A one. A two. A three.")
	n.Speak("B one.")
	n.Wait()

	said, events, active, maxActive := pb.snapshot()
	assert.Equal(t, 0, active)
	assert.Equal(t, 1, maxActive, "narrations must never overlap")
	assert.NotContains(t, said, "A two.")
	assert.NotContains(t, said, "A three.")
	require.NotEmpty(t, said)
	assert.Equal(t, "B one.", said[len(said)-1])

	startB := -1
	lastEndA := -1
	for i, ev := range events {
		switch ev {
		case "start:B one.":
			startB = i
		case "end:A one.":
			lastEndA = i
		}
	}
	assert.Greater(t, startB, lastEndA)
	assert.Equal(t, Idle, n.State())
}

func TestStopWithinTenMillisecondsSilencesNarrator(t *testing.T) {
	factory, pb := newFake(200 * time.Millisecond)
	n := New(factory.New)

	n.Speak("hello. and more. and more again.")
	time.Sleep(5 * time.Millisecond)
	n.Stop()

	assert.Equal(t, Idle, n.State())
	saidAtStop, _, active, _ := pb.snapshot()
	assert.Equal(t, 0, active)

	time.Sleep(50 * time.Millisecond)
	saidLater, _, _, _ := pb.snapshot()
	assert.Equal(t, saidAtStop, saidLater, "no audio after stop")
	assert.LessOrEqual(t, len(saidLater), 1)

	for _, e := range factory.all() {
		assert.True(t, e.isStopped(), "stop must reach the running engine instance")
	}
}

func TestStopDuringPendingSpeakHaltsPlayback(t *testing.T) {
	factory, pb := newFake(2 * time.Second)
	n := New(factory.New)

	n.Speak("A one.")
	require.Eventually(t, func() bool {
		said, _, _, _ := pb.snapshot()
		return len(said) == 1
	}, time.Second, time.Millisecond)

	pending := make(chan struct{})
	go func() {
		defer close(pending)
		n.Speak("B one.")
	}()
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	n.Stop()
	assert.Less(t, time.Since(start), 500*time.Millisecond, "stop must not wait for the utterance to end")
	assert.Equal(t, Idle, n.State())

	select {
	case <-pending:
	case <-time.After(time.Second):
		t.Fatal("pending Speak did not return after Stop")
	}
	said, _, active, _ := pb.snapshot()
	assert.Equal(t, []string{"A one."}, said)
	assert.Equal(t, 0, active)
	assert.Equal(t, Idle, n.State())
	require.Len(t, factory.all(), 1)
	assert.True(t, factory.all()[0].isStopped())
}

func TestStopWhenIdle(t *testing.T) {
	factory, _ := newFake(time.Millisecond)
	n := New(factory.New)

	n.Stop()
	assert.Equal(t, Idle, n.State())

	n.Speak("after stop")
	n.Wait()
	assert.Len(t, factory.all(), 1)
}

func TestPlaybackErrorsAreSuppressed(t *testing.T) {
	factory, _ := newFake(time.Millisecond)
	factory.failWith = errors.New("run loop already started")
	n := New(factory.New)

	n.Speak("first. second.")
	n.Wait()
	assert.Equal(t, Idle, n.State())

	factory.failWith = nil
	n.Speak("recovered")
	n.Wait()
	assert.Equal(t, Idle, n.State())
}

func TestEngineInitFailureReturnsToIdle(t *testing.T) {
	factory, _ := newFake(time.Millisecond)
	factory.initErr = errors.New("no audio device")
	n := New(factory.New)

	n.Speak("hello")
	n.Wait()
	assert.Equal(t, Idle, n.State())
}

func TestSplitUtterances(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"single", "hello", []string{"hello"}},
		{"sentences", "One. Two! Three?", []string{"One.", "Two!", "Three?"}},
		{"lines", "Match found: a b\nMatch found: c d", []string{"Match found: a b", "Match found: c d"}},
		{"decimal", "Plot of 2.5 acres.", []string{"Plot of 2.5 acres."}},
		{"blank", "  \n\n", nil},
		{"stray punctuation", "Done. .", []string{"Done."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitUtterances(tt.input))
		})
	}
}

func TestExpandArgs(t *testing.T) {
	args, stdin := expandArgs([]string{"espeak", "-s", "{rate}", "{text}"}, "hi there", 150)
	assert.Equal(t, []string{"espeak", "-s", "150", "hi there"}, args)
	assert.False(t, stdin)

	args, stdin = expandArgs([]string{"festival", "--tts"}, "hi", 150)
	assert.Equal(t, []string{"festival", "--tts"}, args)
	assert.True(t, stdin)
}

func TestCommandFactoryMissingProgram(t *testing.T) {
	_, err := NewCommandFactory([]string{"definitely-not-a-tts-binary"})()
	assert.Error(t, err)

	_, err = NewCommandFactory(nil)()
	assert.Error(t, err)
}

func TestCommandEngineStopKillsProcess(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	engine, err := NewCommandFactory([]string{"sleep", "10"})()
	require.NoError(t, err)

	result := make(chan error, 1)
	go func() { result <- engine.Say("ignored", 150) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, engine.Stop())

	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("Say did not return after Stop")
	}

	assert.ErrorIs(t, engine.Say("again", 150), ErrStopped)
}
