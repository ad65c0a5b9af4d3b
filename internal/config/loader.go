package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"asr":        {"whisper", "whisper-native", "openai", "deepgram", "mock"},
	"diarize":    {"pyannote", "deepgram", "energy", "mock"},
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.Output.Format != "" && !cfg.Output.Format.IsValid() {
		errs = append(errs, fmt.Errorf("output.format %q is invalid; valid values: text, json", cfg.Output.Format))
	}

	// Provider name validation, warn for unknown provider names.
	validateProviderName("asr", cfg.Providers.ASR.Name)
	validateProviderName("diarize", cfg.Providers.Diarize.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// The pipeline cannot run without its two collaborators.
	if cfg.Providers.ASR.Name == "" {
		errs = append(errs, errors.New("providers.asr.name is required"))
	}
	if cfg.Providers.Diarize.Name == "" {
		errs = append(errs, errors.New("providers.diarize.name is required"))
	}

	// Per-provider required fields.
	switch cfg.Providers.ASR.Name {
	case "whisper":
		if cfg.Providers.ASR.BaseURL == "" {
			errs = append(errs, errors.New("providers.asr.base_url is required for the whisper server provider"))
		}
	case "whisper-native":
		if cfg.Providers.ASR.Model == "" {
			errs = append(errs, errors.New("providers.asr.model (GGML model path) is required for whisper-native"))
		}
	case "openai", "deepgram":
		if cfg.Providers.ASR.APIKey == "" {
			errs = append(errs, fmt.Errorf("providers.asr.api_key is required for %q", cfg.Providers.ASR.Name))
		}
	}
	switch cfg.Providers.Diarize.Name {
	case "pyannote":
		if cfg.Providers.Diarize.APIKey == "" {
			errs = append(errs, errors.New("providers.diarize.api_key (Hugging Face token) is required for pyannote"))
		}
	case "deepgram":
		if cfg.Providers.Diarize.APIKey == "" {
			errs = append(errs, errors.New("providers.diarize.api_key is required for deepgram"))
		}
	}

	// Alignment tuning.
	if cfg.Align.MinTurnDuration < 0 {
		errs = append(errs, fmt.Errorf("align.min_turn_duration %.3f must not be negative", cfg.Align.MinTurnDuration))
	}
	if cfg.Align.SmoothingGap < 0 {
		errs = append(errs, fmt.Errorf("align.smoothing_gap %.3f must not be negative", cfg.Align.SmoothingGap))
	}

	// Vocabulary entries must carry actual words.
	for i, term := range cfg.Vocabulary {
		if strings.TrimSpace(term) == "" {
			errs = append(errs, fmt.Errorf("vocabulary[%d] is blank", i))
		}
	}

	// Speaker identification needs an LLM to ask.
	if len(cfg.Participants) > 0 && cfg.Providers.LLM.Name == "" {
		slog.Warn("participants are configured but providers.llm is not; speaker labels will stay opaque")
	}

	// Archive wiring.
	if cfg.Archive.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("archive.embedding_dimensions %d must not be negative", cfg.Archive.EmbeddingDimensions))
	}
	if cfg.Archive.PostgresDSN != "" && cfg.Providers.Embeddings.Name == "" {
		slog.Warn("archive.postgres_dsn is set but providers.embeddings is not; archived transcripts will not be semantically searchable")
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Archive.PostgresDSN == "" {
		slog.Warn("providers.embeddings is configured but archive.postgres_dsn is empty; embeddings will not be used")
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Archive.EmbeddingDimensions == 0 {
		slog.Warn("providers.embeddings is configured but archive.embedding_dimensions is not set; the embedding model's native dimension is used")
	}

	// Telemetry.
	if cfg.Telemetry.Enabled && cfg.Telemetry.ListenAddr == "" {
		errs = append(errs, errors.New("telemetry.listen_addr is required when telemetry is enabled"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
