// ABOUTME: Configuration management for propsearch with YAML config loading.
// ABOUTME: Handles dataset, embedding, speech and voice backends, env overrides, and ~ expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Embedding providers understood by the embeddings package.
const (
	ProviderOpenAI  = "openai"
	ProviderOllama  = "ollama"
	ProviderHashing = "hashing"
)

const (
	DefaultDataset         = "dataset/dataset.csv"
	DefaultProvider        = ProviderOpenAI
	DefaultModel           = "property-similarity-model"
	DefaultOpenAIURL       = "http://localhost:8080/v1"
	DefaultOllamaURL       = "http://localhost:11434"
	DefaultHashingDims     = 256
	DefaultBatchSize       = 32
	DefaultQueryCacheTTL   = 10 * time.Minute
	DefaultSpeechRate      = 150
	DefaultTranscribeURL   = "http://localhost:8080/v1"
	DefaultTranscribeModel = "whisper-1"
	DefaultListenTimeout   = 15 * time.Second
	DefaultTranscribeWait  = 10 * time.Second
	DefaultLogLevel        = "info"
)

// Config stores propsearch configuration loaded from ~/.config/propsearch/config.yaml.
type Config struct {
	Dataset   string          `yaml:"dataset"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Speech    SpeechConfig    `yaml:"speech"`
	Voice     VoiceConfig     `yaml:"voice"`
	Log       LogConfig       `yaml:"log"`
}

// EmbeddingConfig selects the sentence-embedding backend.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider"`
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	Dimensions        int           `yaml:"dimensions,omitempty"`
	BatchSize         int           `yaml:"batch_size,omitempty"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty"`
	QueryCacheTTL     time.Duration `yaml:"query_cache_ttl,omitempty"`
}

// SpeechConfig holds text-to-speech settings. Command entries may use the
// {rate} and {text} placeholders.
type SpeechConfig struct {
	Command []string `yaml:"command"`
	Rate    int      `yaml:"rate"`
}

// VoiceConfig holds microphone capture and speech-to-text settings.
type VoiceConfig struct {
	RecordCommand     []string      `yaml:"record_command"`
	TranscribeURL     string        `yaml:"transcribe_url"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	Language          string        `yaml:"language,omitempty"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	TranscribeTimeout time.Duration `yaml:"transcribe_timeout,omitempty"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field with its default value.
func (c *Config) ApplyDefaults() {
	if c.Dataset == "" {
		c.Dataset = DefaultDataset
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = DefaultProvider
	}
	c.Embedding.Provider = strings.ToLower(c.Embedding.Provider)
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = DefaultEmbeddingURL(c.Embedding.Provider)
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = DefaultModel
	}
	if c.Embedding.Provider == ProviderHashing && c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = DefaultHashingDims
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = DefaultBatchSize
	}
	if c.Embedding.QueryCacheTTL <= 0 {
		c.Embedding.QueryCacheTTL = DefaultQueryCacheTTL
	}
	if len(c.Speech.Command) == 0 {
		c.Speech.Command = DefaultSpeechCommand()
	}
	if c.Speech.Rate <= 0 {
		c.Speech.Rate = DefaultSpeechRate
	}
	if len(c.Voice.RecordCommand) == 0 {
		c.Voice.RecordCommand = DefaultRecordCommand()
	}
	if c.Voice.TranscribeURL == "" {
		c.Voice.TranscribeURL = DefaultTranscribeURL
	}
	if c.Voice.Model == "" {
		c.Voice.Model = DefaultTranscribeModel
	}
	if c.Voice.Timeout <= 0 {
		c.Voice.Timeout = DefaultListenTimeout
	}
	if c.Voice.TranscribeTimeout <= 0 {
		c.Voice.TranscribeTimeout = DefaultTranscribeWait
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// ApplyEnv overrides config values from PROPSEARCH_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("PROPSEARCH_DATASET"); v != "" {
		c.Dataset = v
	}
	if v := os.Getenv("PROPSEARCH_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("PROPSEARCH_EMBEDDING_URL"); v != "" {
		c.Embedding.BaseURL = v
	}
	if v := os.Getenv("PROPSEARCH_EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("PROPSEARCH_EMBEDDING_API_KEY"); v != "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv("PROPSEARCH_EMBEDDING_DIMENSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PROPSEARCH_EMBEDDING_DIMENSIONS %q: %w", v, err)
		}
		c.Embedding.Dimensions = n
	}
	if v := os.Getenv("PROPSEARCH_STT_URL"); v != "" {
		c.Voice.TranscribeURL = v
	}
	if v := os.Getenv("PROPSEARCH_STT_API_KEY"); v != "" {
		c.Voice.APIKey = v
	}
	if v := os.Getenv("PROPSEARCH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// DefaultEmbeddingURL returns the conventional local endpoint for a provider.
func DefaultEmbeddingURL(provider string) string {
	switch provider {
	case ProviderOllama:
		return DefaultOllamaURL
	case ProviderHashing:
		return ""
	default:
		return DefaultOpenAIURL
	}
}

// DefaultSpeechCommand returns the platform text-to-speech command.
func DefaultSpeechCommand() []string {
	if runtime.GOOS == "darwin" {
		return []string{"say", "-r", "{rate}", "{text}"}
	}
	return []string{"espeak", "-s", "{rate}", "{text}"}
}

// DefaultRecordCommand records 16kHz mono WAV to stdout with SoX, stopping
// after 1.5s of silence once speech has started.
func DefaultRecordCommand() []string {
	return []string{
		"rec", "-q", "-c", "1", "-r", "16000", "-b", "16", "-t", "wav", "-",
		"silence", "1", "0.1", "1%", "1", "1.5", "1%",
	}
}

// GetDatasetPath returns the dataset path with ~ expanded.
func (c *Config) GetDatasetPath() (string, error) {
	return ExpandPath(c.Dataset)
}

// GetLogPath returns the log file path, defaulting to $XDG_STATE_HOME/propsearch/propsearch.log.
func (c *Config) GetLogPath() (string, error) {
	if c.Log.File != "" {
		return ExpandPath(c.Log.File)
	}
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		stateDir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateDir, "propsearch", "propsearch.log"), nil
}

// GetConfigPath returns the config file path.
func GetConfigPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "propsearch", "config.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// Load reads config from disk, applies environment overrides, then defaults.
// Returns the default config if the file doesn't exist.
func Load() (*Config, error) {
	cfg, err := loadFile()
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// LoadRaw reads config from disk without env overrides or defaults, so that
// Save writes back only what the user set.
func LoadRaw() (*Config, error) {
	return loadFile()
}

func loadFile() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
