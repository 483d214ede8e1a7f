// ABOUTME: Microphone capture through an external recording command (SoX rec by default).
// ABOUTME: The command writes WAV to stdout and exits on its own after a pause.
package voice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// CommandRecorder captures audio by running argv and reading WAV from stdout.
type CommandRecorder struct {
	argv []string
}

// NewCommandRecorder creates a recorder for argv.
func NewCommandRecorder(argv []string) *CommandRecorder {
	return &CommandRecorder{argv: argv}
}

// Record runs the capture command until it exits or ctx ends. On ctx expiry
// the audio captured so far is returned alongside ctx.Err().
func (r *CommandRecorder) Record(ctx context.Context) ([]byte, error) {
	if len(r.argv) == 0 {
		return nil, fmt.Errorf("%w: no record command configured", ErrServiceUnavailable)
	}
	if _, err := exec.LookPath(r.argv[0]); err != nil {
		return nil, fmt.Errorf("%w: record command %q not found", ErrServiceUnavailable, r.argv[0])
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedWriter{w: &stderr, n: 1024}

	err := cmd.Run()
	if ctx.Err() != nil {
		return stdout.Bytes(), ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: record command failed: %v: %s",
			ErrServiceUnavailable, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// limitedWriter keeps the first n bytes and discards the rest.
type limitedWriter struct {
	w io.Writer
	n int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if l.n > 0 {
		keep := p
		if len(keep) > l.n {
			keep = keep[:l.n]
		}
		if _, err := l.w.Write(keep); err != nil {
			return 0, err
		}
		l.n -= len(keep)
	}
	return len(p), nil
}
