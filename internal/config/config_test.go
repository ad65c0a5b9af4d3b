package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/voxalign/internal/config"
	"github.com/MrWong99/voxalign/pkg/align"
	"github.com/MrWong99/voxalign/pkg/provider/asr"
	asrmock "github.com/MrWong99/voxalign/pkg/provider/asr/mock"
	"github.com/MrWong99/voxalign/pkg/provider/diarize"
	diarmock "github.com/MrWong99/voxalign/pkg/provider/diarize/mock"
)

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	yaml := `
log_level: debug
output:
  format: text
  timestamps: false
  unknown_label: "???"
providers:
  asr:
    name: deepgram
    api_key: dg-secret
    model: nova-3
  diarize:
    name: pyannote
    api_key: hf-token
  llm:
    name: anthropic
    api_key: sk-ant
    model: claude-sonnet-4-20250514
  embeddings:
    name: openai
    api_key: sk-oa
    model: text-embedding-3-small
align:
  min_turn_duration: 0.5
  smoothing_gap: 0.2
vocabulary:
  - Vespertine
  - Elena Popescu
participants:
  - Elena
  - Ben
archive:
  postgres_dsn: postgres://localhost/voxalign
  embedding_dimensions: 1536
telemetry:
  enabled: true
  listen_addr: ":9090"
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.LogLevel != config.LogDebug {
		t.Errorf("LogLevel: want debug, got %q", cfg.LogLevel)
	}
	if cfg.Output.TimestampsEnabled() {
		t.Error("Timestamps: want disabled")
	}
	if cfg.Output.UnknownLabel != "???" {
		t.Errorf("UnknownLabel: want ???, got %q", cfg.Output.UnknownLabel)
	}
	if cfg.Providers.ASR.Name != "deepgram" || cfg.Providers.ASR.Model != "nova-3" {
		t.Errorf("ASR entry: got %+v", cfg.Providers.ASR)
	}
	if cfg.Align.MinTurnDuration != 0.5 {
		t.Errorf("MinTurnDuration: want 0.5, got %v", cfg.Align.MinTurnDuration)
	}
	if len(cfg.Vocabulary) != 2 || len(cfg.Participants) != 2 {
		t.Errorf("lists: got %v / %v", cfg.Vocabulary, cfg.Participants)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  asr:
    name: mock
  diarise:
    name: energy
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestTimestampsDefaultEnabled(t *testing.T) {
	t.Parallel()
	var out config.OutputConfig
	if !out.TimestampsEnabled() {
		t.Error("unset timestamps should be enabled")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	cfg := minimalConfig()
	cfg.LogLevel = "verbose"
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Fatalf("want log_level error, got %v", err)
	}
}

func TestValidate_InvalidOutputFormat(t *testing.T) {
	t.Parallel()
	cfg := minimalConfig()
	cfg.Output.Format = "xml"
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "output.format") {
		t.Fatalf("want output.format error, got %v", err)
	}
}

func TestValidate_MissingProviders(t *testing.T) {
	t.Parallel()
	err := config.Validate(&config.Config{})
	if err == nil {
		t.Fatal("expected error for missing providers, got nil")
	}
	if !strings.Contains(err.Error(), "providers.asr.name") {
		t.Errorf("error should mention providers.asr.name, got: %v", err)
	}
	if !strings.Contains(err.Error(), "providers.diarize.name") {
		t.Errorf("error should mention providers.diarize.name, got: %v", err)
	}
}

func TestValidate_ProviderRequiredFields(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "whisper needs base_url",
			mutate:  func(c *config.Config) { c.Providers.ASR = config.ProviderEntry{Name: "whisper"} },
			wantErr: "base_url",
		},
		{
			name:    "whisper-native needs model path",
			mutate:  func(c *config.Config) { c.Providers.ASR = config.ProviderEntry{Name: "whisper-native"} },
			wantErr: "model",
		},
		{
			name:    "openai asr needs api_key",
			mutate:  func(c *config.Config) { c.Providers.ASR = config.ProviderEntry{Name: "openai"} },
			wantErr: "api_key",
		},
		{
			name:    "pyannote needs token",
			mutate:  func(c *config.Config) { c.Providers.Diarize = config.ProviderEntry{Name: "pyannote"} },
			wantErr: "Hugging Face",
		},
		{
			name:    "deepgram diarize needs api_key",
			mutate:  func(c *config.Config) { c.Providers.Diarize = config.ProviderEntry{Name: "deepgram"} },
			wantErr: "api_key",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := minimalConfig()
			tc.mutate(cfg)
			err := config.Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("want error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidate_NegativeAlignValues(t *testing.T) {
	t.Parallel()
	cfg := minimalConfig()
	cfg.Align.MinTurnDuration = -0.1
	cfg.Align.SmoothingGap = -1
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error for negative align values, got nil")
	}
	if !strings.Contains(err.Error(), "min_turn_duration") {
		t.Errorf("error should mention min_turn_duration, got: %v", err)
	}
	if !strings.Contains(err.Error(), "smoothing_gap") {
		t.Errorf("error should mention smoothing_gap, got: %v", err)
	}
}

func TestValidate_BlankVocabularyEntry(t *testing.T) {
	t.Parallel()
	cfg := minimalConfig()
	cfg.Vocabulary = []string{"Vespertine", "  "}
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "vocabulary[1]") {
		t.Fatalf("want vocabulary[1] error, got %v", err)
	}
}

func TestValidate_TelemetryNeedsAddr(t *testing.T) {
	t.Parallel()
	cfg := minimalConfig()
	cfg.Telemetry.Enabled = true
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "telemetry.listen_addr") {
		t.Fatalf("want telemetry.listen_addr error, got %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		LogLevel: "loud",
		Align:    config.AlignConfig{MinTurnDuration: -1},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected joined errors, got nil")
	}
	for _, want := range []string{"log_level", "min_turn_duration", "providers.asr.name"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────────────────────────────────────

func TestRegistry_Unknown(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	if _, err := reg.CreateASR(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateASR: want ErrProviderNotRegistered, got %v", err)
	}
	if _, err := reg.CreateDiarize(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateDiarize: want ErrProviderNotRegistered, got %v", err)
	}
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateLLM: want ErrProviderNotRegistered, got %v", err)
	}
	if _, err := reg.CreateEmbeddings(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateEmbeddings: want ErrProviderNotRegistered, got %v", err)
	}
}

func TestRegistry_RegisteredASR(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	want := &asrmock.Provider{}
	reg.RegisterASR("mock", func(entry config.ProviderEntry) (asr.Provider, error) {
		return want, nil
	})

	got, err := reg.CreateASR(config.ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateASR: %v", err)
	}
	if got != asr.Provider(want) {
		t.Error("CreateASR returned a different provider than registered")
	}
}

func TestRegistry_RegisteredDiarize(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterDiarize("mock", func(entry config.ProviderEntry) (diarize.Provider, error) {
		return &diarmock.Provider{Turns: []align.SpeakerTurn{
			{Interval: align.Interval{Start: 0, End: 1}, Speaker: "SPEAKER_00"},
		}}, nil
	})

	p, err := reg.CreateDiarize(config.ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateDiarize: %v", err)
	}
	turns, err := p.Diarize(context.Background(), "dummy.wav")
	if err != nil {
		t.Fatalf("Diarize: %v", err)
	}
	if len(turns) != 1 {
		t.Errorf("want 1 turn from registered mock, got %d", len(turns))
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	boom := errors.New("bad credentials")
	reg.RegisterASR("broken", func(entry config.ProviderEntry) (asr.Provider, error) {
		return nil, boom
	})

	if _, err := reg.CreateASR(config.ProviderEntry{Name: "broken"}); !errors.Is(err, boom) {
		t.Fatalf("want factory error, got %v", err)
	}
}

// minimalConfig returns the smallest config that passes Validate.
func minimalConfig() *config.Config {
	return &config.Config{
		Providers: config.ProvidersConfig{
			ASR:     config.ProviderEntry{Name: "mock"},
			Diarize: config.ProviderEntry{Name: "energy"},
		},
	}
}
