// Command voxalign turns a video or audio recording into a speaker-attributed
// transcript.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/voxalign/internal/config"
	"github.com/MrWong99/voxalign/internal/health"
	"github.com/MrWong99/voxalign/internal/media"
	"github.com/MrWong99/voxalign/internal/observe"
	"github.com/MrWong99/voxalign/internal/pipeline"
	"github.com/MrWong99/voxalign/pkg/align"
	"github.com/MrWong99/voxalign/pkg/archive"
	archivepg "github.com/MrWong99/voxalign/pkg/archive/postgres"
	"github.com/MrWong99/voxalign/pkg/provider/asr"
	oaasr "github.com/MrWong99/voxalign/pkg/provider/asr/openai"
	"github.com/MrWong99/voxalign/pkg/provider/asr/whisper"
	"github.com/MrWong99/voxalign/pkg/provider/deepgram"
	"github.com/MrWong99/voxalign/pkg/provider/diarize"
	"github.com/MrWong99/voxalign/pkg/provider/diarize/energy"
	"github.com/MrWong99/voxalign/pkg/provider/diarize/pyannote"
	"github.com/MrWong99/voxalign/pkg/provider/embeddings"
	ollamaembed "github.com/MrWong99/voxalign/pkg/provider/embeddings/ollama"
	oaembed "github.com/MrWong99/voxalign/pkg/provider/embeddings/openai"
	"github.com/MrWong99/voxalign/pkg/provider/llm"
	"github.com/MrWong99/voxalign/pkg/provider/llm/anyllm"
	oallm "github.com/MrWong99/voxalign/pkg/provider/llm/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	outputPath := flag.String("o", "", "write the transcript to this file instead of stdout")
	keepAudio := flag.Bool("keep-audio", false, "keep the extracted WAV file instead of deleting it")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: voxalign [flags] <recording>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	inputPath := flag.Arg(0)

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxalign: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxalign: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxalign starting",
		"config", *configPath,
		"input", inputPath,
		"log_level", cfg.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Archive store (optional) ──────────────────────────────────────────────
	var store archive.Store
	if cfg.Archive.PostgresDSN != "" {
		var opts []archivepg.Option
		if providers.Embeddings != nil {
			opts = append(opts, archivepg.WithEmbeddings(providers.Embeddings))
		} else if cfg.Archive.EmbeddingDimensions > 0 {
			opts = append(opts, archivepg.WithEmbeddingDimensions(cfg.Archive.EmbeddingDimensions))
		}
		pgStore, err := archivepg.NewStore(ctx, cfg.Archive.PostgresDSN, opts...)
		if err != nil {
			slog.Error("failed to open transcript archive", "err", err)
			return 1
		}
		defer pgStore.Close()
		store = pgStore
		slog.Info("transcript archive enabled", "semantic_search", providers.Embeddings != nil)
	}

	// ── Metrics endpoint (optional) ───────────────────────────────────────────
	var telemetrySrv *http.Server
	if cfg.Telemetry.Enabled {
		telemetrySrv = newTelemetryServer(cfg.Telemetry.ListenAddr, metrics, store)
		go func() {
			slog.Info("metrics endpoint listening", "addr", cfg.Telemetry.ListenAddr)
			if err := telemetrySrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics endpoint error", "err", err)
			}
		}()
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	// ── Pipeline ──────────────────────────────────────────────────────────────
	p, err := pipeline.New(pipeline.Options{
		Extractor:       media.NewExtractor(),
		ASR:             providers.ASR,
		ASRName:         cfg.Providers.ASR.Name,
		Diarizer:        providers.Diarizer,
		DiarizerName:    cfg.Providers.Diarize.Name,
		LLM:             providers.LLM,
		LLMName:         cfg.Providers.LLM.Name,
		Archive:         store,
		Vocabulary:      cfg.Vocabulary,
		Participants:    cfg.Participants,
		MinTurnDuration: cfg.Align.MinTurnDuration,
		SmoothingGap:    cfg.Align.SmoothingGap,
		KeepAudio:       *keepAudio,
		Metrics:         metrics,
	})
	if err != nil {
		slog.Error("failed to initialise pipeline", "err", err)
		return 1
	}

	result, err := p.Run(ctx, inputPath)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("interrupted")
			return 1
		}
		slog.Error("transcription failed", "err", err)
		return 1
	}

	// ── Render ────────────────────────────────────────────────────────────────
	rendered, err := renderTranscript(cfg.Output, result)
	if err != nil {
		slog.Error("failed to render transcript", "err", err)
		return 1
	}
	if err := writeOutput(*outputPath, rendered); err != nil {
		slog.Error("failed to write transcript", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	if telemetrySrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetrySrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics endpoint shutdown error", "err", err)
		}
	}

	slog.Info("done",
		"turns", len(result.Turns),
		"language", result.Language,
		"transcript_id", result.TranscriptID,
	)
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// providerSet holds the instantiated providers for one run. ASR and Diarizer
// are always set; LLM and Embeddings are nil when not configured.
type providerSet struct {
	ASR        asr.Provider
	Diarizer   diarize.Provider
	LLM        llm.Provider
	Embeddings embeddings.Provider
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── ASR ───────────────────────────────────────────────────────────────────

	reg.RegisterASR("whisper", func(entry config.ProviderEntry) (asr.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterASR("whisper-native", func(entry config.ProviderEntry) (asr.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterASR("openai", func(entry config.ProviderEntry) (asr.Provider, error) {
		var opts []oaasr.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaasr.WithBaseURL(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, oaasr.WithLanguage(lang))
		}
		return oaasr.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterASR("deepgram", func(entry config.ProviderEntry) (asr.Provider, error) {
		return newDeepgram(entry)
	})

	// ── Diarization ───────────────────────────────────────────────────────────

	reg.RegisterDiarize("pyannote", func(entry config.ProviderEntry) (diarize.Provider, error) {
		var opts []pyannote.Option
		if entry.Model != "" {
			opts = append(opts, pyannote.WithModel(entry.Model))
		}
		if device := optString(entry.Options, "device"); device != "" {
			opts = append(opts, pyannote.WithDevice(device))
		}
		if py := optString(entry.Options, "python"); py != "" {
			opts = append(opts, pyannote.WithPython(py))
		}
		return pyannote.New(entry.APIKey, opts...), nil
	})

	reg.RegisterDiarize("deepgram", func(entry config.ProviderEntry) (diarize.Provider, error) {
		return newDeepgram(entry)
	})

	reg.RegisterDiarize("energy", func(entry config.ProviderEntry) (diarize.Provider, error) {
		var opts []energy.Option
		if rms, ok := optFloat(entry.Options, "speech_threshold"); ok {
			opts = append(opts, energy.WithSpeechThreshold(rms))
		}
		if gap, ok := optFloat(entry.Options, "merge_gap"); ok {
			opts = append(opts, energy.WithMergeGap(gap))
		}
		if gap, ok := optFloat(entry.Options, "switch_gap"); ok {
			opts = append(opts, energy.WithSwitchGap(gap))
		}
		return energy.New(opts...), nil
	})

	// ── LLM ───────────────────────────────────────────────────────────────────

	// openai uses the official SDK directly so organization IDs work.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oallm.WithOrganization(org))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining hosted backends share the same pattern through any-llm:
	// optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if dims, ok := optInt(entry.Options, "dimensions"); ok {
			opts = append(opts, ollamaembed.WithDimensions(dims))
		}
		return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
	})
}

// newDeepgram constructs the shared Deepgram client, which serves both the
// recognition and the diarization role.
func newDeepgram(entry config.ProviderEntry) (*deepgram.Provider, error) {
	var opts []deepgram.Option
	if entry.Model != "" {
		opts = append(opts, deepgram.WithModel(entry.Model))
	}
	if entry.BaseURL != "" {
		opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
	}
	if lang := optString(entry.Options, "language"); lang != "" {
		opts = append(opts, deepgram.WithLanguage(lang))
	}
	return deepgram.New(entry.APIKey, opts...)
}

// buildProviders instantiates the providers named in cfg using the registry.
// Recognition and diarization are mandatory; the LLM and embeddings providers
// are optional.
func buildProviders(cfg *config.Config, reg *config.Registry) (*providerSet, error) {
	ps := &providerSet{}

	p, err := reg.CreateASR(cfg.Providers.ASR)
	if err != nil {
		return nil, fmt.Errorf("create asr provider %q: %w", cfg.Providers.ASR.Name, err)
	}
	ps.ASR = p
	slog.Info("provider created", "kind", "asr", "name", cfg.Providers.ASR.Name)

	d, err := reg.CreateDiarize(cfg.Providers.Diarize)
	if err != nil {
		return nil, fmt.Errorf("create diarize provider %q: %w", cfg.Providers.Diarize.Name, err)
	}
	ps.Diarizer = d
	slog.Info("provider created", "kind", "diarize", "name", cfg.Providers.Diarize.Name)

	if name := cfg.Providers.LLM.Name; name != "" {
		l, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		ps.LLM = l
		slog.Info("provider created", "kind", "llm", "name", name)
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		e, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		ps.Embeddings = e
		slog.Info("provider created", "kind", "embeddings", "name", name)
	}

	return ps, nil
}

// ── Telemetry server ──────────────────────────────────────────────────────────

// newTelemetryServer builds the HTTP server exposing Prometheus metrics and
// the health endpoints. When an archive store is configured its database
// connection becomes a readiness check.
func newTelemetryServer(addr string, metrics *observe.Metrics, store archive.Store) *http.Server {
	var checkers []health.Checker
	if pg, ok := store.(*archivepg.Store); ok {
		checkers = append(checkers, health.Checker{
			Name:  "archive",
			Check: pg.Ping,
		})
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)

	return &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ── Output rendering ──────────────────────────────────────────────────────────

// jsonTranscript is the document produced by the "json" output format.
type jsonTranscript struct {
	TranscriptID string            `json:"transcript_id,omitempty"`
	Language     string            `json:"language,omitempty"`
	Duration     float64           `json:"duration_seconds,omitempty"`
	Speakers     map[string]string `json:"speakers,omitempty"`
	Turns        []jsonTurn        `json:"turns"`
}

type jsonTurn struct {
	Speaker string  `json:"speaker,omitempty"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

func renderTranscript(out config.OutputConfig, result *pipeline.Result) (string, error) {
	if out.Format == config.FormatJSON {
		doc := jsonTranscript{
			TranscriptID: result.TranscriptID,
			Language:     result.Language,
			Duration:     result.Duration,
			Turns:        make([]jsonTurn, 0, len(result.Turns)),
		}
		if len(result.Speakers) > 0 {
			doc.Speakers = make(map[string]string, len(result.Speakers))
			for label, name := range result.Speakers {
				doc.Speakers[string(label)] = name
			}
		}
		for _, turn := range result.Turns {
			doc.Turns = append(doc.Turns, jsonTurn{
				Speaker: string(turn.Speaker),
				Start:   turn.Start,
				End:     turn.End,
				Text:    turn.Text,
			})
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode transcript: %w", err)
		}
		return string(data) + "\n", nil
	}

	var opts []align.FormatterOption
	if out.UnknownLabel != "" {
		opts = append(opts, align.WithUnknownLabel(out.UnknownLabel))
	}
	if !out.TimestampsEnabled() {
		opts = append(opts, align.WithoutTimestamps())
	}
	return align.NewFormatter(opts...).Render(result.Turns), nil
}

func writeOutput(path, rendered string) error {
	if path == "" {
		_, err := fmt.Print(rendered)
		return err
	}
	return os.WriteFile(path, []byte(rendered), 0o644)
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Fprintln(os.Stderr, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║         voxalign — run summary        ║")
	fmt.Fprintln(os.Stderr, "╠═══════════════════════════════════════╣")
	printProvider("ASR", cfg.Providers.ASR.Name, cfg.Providers.ASR.Model)
	printProvider("Diarize", cfg.Providers.Diarize.Name, cfg.Providers.Diarize.Model)
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	fmt.Fprintf(os.Stderr, "║  Vocabulary      : %-19d ║\n", len(cfg.Vocabulary))
	fmt.Fprintf(os.Stderr, "║  Participants    : %-19d ║\n", len(cfg.Participants))
	if cfg.Archive.PostgresDSN != "" {
		fmt.Fprintf(os.Stderr, "║  Archive         : %-19s ║\n", "postgres")
	} else {
		fmt.Fprintf(os.Stderr, "║  Archive         : %-19s ║\n", "(disabled)")
	}
	if cfg.Telemetry.Enabled {
		fmt.Fprintf(os.Stderr, "║  Metrics         : %-19s ║\n", cfg.Telemetry.ListenAddr)
	}
	fmt.Fprintln(os.Stderr, "╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Fprintf(os.Stderr, "║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// optFloat extracts a numeric option. YAML decodes integers as int and
// decimals as float64; both are accepted.
func optFloat(opts map[string]any, key string) (float64, bool) {
	if opts == nil {
		return 0, false
	}
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// optInt extracts an integer option.
func optInt(opts map[string]any, key string) (int, bool) {
	if opts == nil {
		return 0, false
	}
	v, ok := opts[key].(int)
	return v, ok
}
