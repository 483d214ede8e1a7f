// ABOUTME: Speech engine backed by an external text-to-speech command (espeak, say).
// ABOUTME: Stop kills the running process of the engine instance that is speaking.
package narrator

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// ErrStopped is returned by Say once the engine has been stopped.
var ErrStopped = errors.New("speech engine stopped")

// CommandEngine runs one process per utterance. The {rate} and {text}
// placeholders in argv are substituted; without {text} the text goes to stdin.
type CommandEngine struct {
	argv []string

	mu      sync.Mutex
	cmd     *exec.Cmd
	stopped bool
}

// NewCommandFactory returns an EngineFactory for argv. The program must be on PATH.
func NewCommandFactory(argv []string) EngineFactory {
	return func() (Engine, error) {
		if len(argv) == 0 {
			return nil, fmt.Errorf("no speech command configured")
		}
		if _, err := exec.LookPath(argv[0]); err != nil {
			return nil, fmt.Errorf("speech command %q not found: %w", argv[0], err)
		}
		return &CommandEngine{argv: argv}, nil
	}
}

// Say speaks text and blocks until the process exits or is stopped.
func (e *CommandEngine) Say(text string, rate int) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrStopped
	}
	args, useStdin := expandArgs(e.argv, text, rate)
	cmd := exec.Command(args[0], args[1:]...)
	if useStdin {
		cmd.Stdin = strings.NewReader(text)
	}
	if err := cmd.Start(); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to start speech command: %w", err)
	}
	e.cmd = cmd
	e.mu.Unlock()

	err := cmd.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cmd = nil
	if e.stopped {
		return ErrStopped
	}
	return err
}

// Stop kills the utterance in progress and makes later Say calls no-ops.
func (e *CommandEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopped = true
	if e.cmd != nil && e.cmd.Process != nil {
		return e.cmd.Process.Kill()
	}
	return nil
}

func expandArgs(argv []string, text string, rate int) ([]string, bool) {
	args := make([]string, len(argv))
	useStdin := true
	for i, a := range argv {
		if strings.Contains(a, "{text}") {
			useStdin = false
		}
		a = strings.ReplaceAll(a, "{rate}", strconv.Itoa(rate))
		args[i] = strings.ReplaceAll(a, "{text}", text)
	}
	return args, useStdin
}
