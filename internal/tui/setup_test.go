// ABOUTME: Unit tests for the setup TUI wizard bubbletea model.
// ABOUTME: Uses synthetic tea.Msg values to test state machine transitions.
package tui

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/propsearch/internal/config"
)

func TestNewSetupModel_DefaultValues(t *testing.T) {
	m := NewSetupModel("", "", "", "")
	if m.step != StepBaseURL {
		t.Errorf("expected initial step StepBaseURL, got %d", m.step)
	}
	if m.provider != config.ProviderOpenAI {
		t.Errorf("expected default provider %q, got %q", config.ProviderOpenAI, m.provider)
	}
	if m.inputs[0].Value() != "" {
		t.Error("expected empty base URL input for new config")
	}
}

func TestNewSetupModel_ExistingConfig(t *testing.T) {
	m := NewSetupModel("ollama", "http://gpu-box:11434", "nomic-embed-text", "secret-key")
	if m.inputs[0].Value() != "http://gpu-box:11434" {
		t.Errorf("expected pre-filled base URL, got %q", m.inputs[0].Value())
	}
	if m.inputs[1].Value() != "nomic-embed-text" {
		t.Errorf("expected pre-filled model, got %q", m.inputs[1].Value())
	}
	if m.inputs[2].Value() != "secret-key" {
		t.Errorf("expected pre-filled API key, got %q", m.inputs[2].Value())
	}
}

func TestSetupModel_StepTransitions(t *testing.T) {
	m := NewSetupModel("openai", "", "", "")

	m.inputs[0].SetValue("http://localhost:9000/v1")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(SetupModel)
	if m.step != StepModel {
		t.Errorf("expected StepModel after Enter on base URL, got %d", m.step)
	}

	m.inputs[1].SetValue("all-MiniLM-L6-v2")
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(SetupModel)
	if m.step != StepAPIKey {
		t.Errorf("expected StepAPIKey after Enter on model, got %d", m.step)
	}

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(SetupModel)
	if m.step != StepValidating {
		t.Errorf("expected StepValidating after Enter on API key, got %d", m.step)
	}
	if cmd == nil {
		t.Error("expected non-nil cmd (validation + spinner tick) when entering validation")
	}
}

func TestSetupModel_DefaultBaseURL(t *testing.T) {
	tests := []struct {
		provider string
		expected string
	}{
		{config.ProviderOpenAI, config.DefaultOpenAIURL},
		{config.ProviderOllama, config.DefaultOllamaURL},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			m := NewSetupModel(tt.provider, "", "", "")
			updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
			m = updated.(SetupModel)
			if m.inputs[0].Value() != tt.expected {
				t.Errorf("expected default base URL %q, got %q", tt.expected, m.inputs[0].Value())
			}
			if m.step != StepModel {
				t.Errorf("expected StepModel after default URL applied, got %d", m.step)
			}
		})
	}
}

func TestSetupModel_DefaultModel(t *testing.T) {
	m := NewSetupModel("", "", "", "")
	m.step = StepModel
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(SetupModel)
	if m.inputs[1].Value() != config.DefaultModel {
		t.Errorf("expected default model %q, got %q", config.DefaultModel, m.inputs[1].Value())
	}
}

func TestSetupModel_EmptyAPIKeyAllowed(t *testing.T) {
	m := NewSetupModel("", "", "", "")
	m.validateFn = func(_ context.Context, _, _, _, _ string) error { return nil }
	m.step = StepAPIKey
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(SetupModel)
	if m.step != StepValidating {
		t.Errorf("expected empty API key to start validation, got %d", m.step)
	}
}

func TestSetupModel_TrailingSlashNormalized(t *testing.T) {
	m := NewSetupModel("", "", "", "")
	m.inputs[0].SetValue("http://localhost:8080/v1/")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(SetupModel)
	if m.inputs[0].Value() != "http://localhost:8080/v1" {
		t.Errorf("expected trailing slash stripped, got %q", m.inputs[0].Value())
	}
}

func TestSetupModel_ValidationSuccess(t *testing.T) {
	m := NewSetupModel("", "", "", "")
	m.step = StepValidating

	updated, _ := m.Update(validationResultMsg{err: nil})
	m = updated.(SetupModel)
	if m.step != StepDone {
		t.Errorf("expected StepDone after successful validation, got %d", m.step)
	}
}

func TestSetupModel_ValidationFailure(t *testing.T) {
	m := NewSetupModel("", "", "", "")
	m.step = StepValidating

	updated, _ := m.Update(validationResultMsg{err: fmt.Errorf("connection refused")})
	m = updated.(SetupModel)
	if m.step != StepFailed {
		t.Errorf("expected StepFailed after validation error, got %d", m.step)
	}
	if m.validationErr == nil {
		t.Error("expected validationErr to be set")
	}
}

func TestSetupModel_FailedRetry(t *testing.T) {
	m := NewSetupModel("", "", "", "")
	m.step = StepFailed
	m.validationErr = fmt.Errorf("some error")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	m = updated.(SetupModel)
	if m.step != StepValidating {
		t.Errorf("expected StepValidating after retry, got %d", m.step)
	}
	if cmd == nil {
		t.Error("expected non-nil cmd on retry")
	}
}

func TestSetupModel_FailedQuit(t *testing.T) {
	m := NewSetupModel("", "", "", "")
	m.step = StepFailed

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m2 := updated.(SetupModel)
	if cmd == nil {
		t.Error("expected quit cmd")
	}
	if !m2.quitting {
		t.Error("expected quitting to be true after 'q'")
	}
	if m2.ShouldSave() {
		t.Error("expected ShouldSave false after quit")
	}
}

func TestSetupModel_QuitKeys(t *testing.T) {
	for _, key := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEscape} {
		m := NewSetupModel("", "", "", "")
		updated, cmd := m.Update(tea.KeyMsg{Type: key})
		m = updated.(SetupModel)
		if cmd == nil {
			t.Errorf("expected quit cmd on %v", key)
		}
		if m.ShouldSave() {
			t.Errorf("expected ShouldSave false after %v", key)
		}
	}
}

func TestSetupModel_ShouldSave(t *testing.T) {
	t.Run("done means save", func(t *testing.T) {
		m := NewSetupModel("", "", "", "")
		m.step = StepDone
		if !m.ShouldSave() {
			t.Error("expected ShouldSave true when done")
		}
	})

	t.Run("save anyway means save", func(t *testing.T) {
		m := NewSetupModel("", "", "", "")
		m.step = StepFailed
		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
		m = updated.(SetupModel)
		if !m.ShouldSave() {
			t.Error("expected ShouldSave true after save anyway")
		}
	})
}

func TestSetupModel_Views(t *testing.T) {
	m := NewSetupModel("ollama", "", "", "")
	if !strings.Contains(m.View(), "PROPSEARCH") {
		t.Error("expected view to contain PROPSEARCH branding")
	}
	if !strings.Contains(m.View(), "ollama") {
		t.Error("expected view to name the provider")
	}

	checks := map[Step]string{
		StepBaseURL:    "Base URL",
		StepModel:      "Model",
		StepAPIKey:     "API Key",
		StepValidating: "Embedding a test sentence",
		StepDone:       "ready",
	}
	for step, want := range checks {
		m.step = step
		if !strings.Contains(m.View(), want) {
			t.Errorf("expected step %d view to mention %q", step, want)
		}
	}
}

func TestSetupModel_ViewFailed(t *testing.T) {
	m := NewSetupModel("", "", "", "")
	m.step = StepFailed
	m.validationErr = fmt.Errorf("timeout")
	view := m.View()
	for _, want := range []string{"Validation failed", "timeout", "[r]etry", "[s]ave anyway", "[q]uit"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected StepFailed view to contain %q", want)
		}
	}

	m.validationErr = nil
	if !strings.Contains(m.View(), "unknown error") {
		t.Error("expected nil error to show 'unknown error' fallback")
	}
}

func TestSetupModel_CtrlCDuringValidation(t *testing.T) {
	cancelled := false
	m := NewSetupModel("", "", "", "")
	m.validateFn = func(ctx context.Context, _, _, _, _ string) error {
		<-ctx.Done()
		cancelled = true
		return ctx.Err()
	}
	m.step = StepAPIKey

	updated, batchCmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(SetupModel)
	if m.step != StepValidating {
		t.Fatalf("expected StepValidating, got %d", m.step)
	}

	// batchMsg[0] is the validation cmd, batchMsg[1] is the spinner tick
	batchMsg := batchCmd().(tea.BatchMsg)
	done := make(chan tea.Msg)
	go func() {
		done <- batchMsg[0]()
	}()

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = updated.(SetupModel)
	if !m.quitting {
		t.Error("expected quitting to be true after Ctrl+C during validation")
	}

	<-done
	if !cancelled {
		t.Error("expected validation context to be cancelled")
	}
}

func TestSetupModel_ValidationPassesCorrectArgs(t *testing.T) {
	var gotProvider, gotURL, gotModel, gotKey string
	m := NewSetupModel("ollama", "", "", "")
	m.validateFn = func(_ context.Context, provider, baseURL, model, apiKey string) error {
		gotProvider, gotURL, gotModel, gotKey = provider, baseURL, model, apiKey
		return nil
	}
	m.inputs[0].SetValue("http://gpu-box:11434")
	m.inputs[1].SetValue("nomic-embed-text")
	m.inputs[2].SetValue("secret-abc")
	m.step = StepAPIKey

	_, batchCmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	batchMsg := batchCmd().(tea.BatchMsg)
	batchMsg[0]()

	if gotProvider != "ollama" || gotURL != "http://gpu-box:11434" || gotModel != "nomic-embed-text" || gotKey != "secret-abc" {
		t.Errorf("unexpected validation args: %q %q %q %q", gotProvider, gotURL, gotModel, gotKey)
	}
}

func TestSetupModel_Result(t *testing.T) {
	m := NewSetupModel("", "http://localhost:8080/v1", "minilm", "key-456")
	baseURL, model, apiKey := m.Result()
	if baseURL != "http://localhost:8080/v1" || model != "minilm" || apiKey != "key-456" {
		t.Errorf("unexpected result: %q %q %q", baseURL, model, apiKey)
	}
}

func TestSetupModel_FullFlowWithTeaProgram(t *testing.T) {
	m := NewSetupModel("openai", "http://localhost:8080/v1", "minilm", "")
	m.validateFn = func(_ context.Context, _, _, _, _ string) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}

	p := tea.NewProgram(m, tea.WithInput(nil), tea.WithoutRenderer())

	go func() {
		p.Send(tea.KeyMsg{Type: tea.KeyEnter}) // base URL
		p.Send(tea.KeyMsg{Type: tea.KeyEnter}) // model
		p.Send(tea.KeyMsg{Type: tea.KeyEnter}) // API key -> validates -> done -> quit
	}()

	result, err := p.Run()
	if err != nil {
		t.Fatalf("tea.Program error: %v", err)
	}

	final := result.(SetupModel)
	if !final.ShouldSave() {
		t.Errorf("expected ShouldSave=true after successful validation, got false (step=%d, quitting=%v)", final.step, final.quitting)
	}
}
