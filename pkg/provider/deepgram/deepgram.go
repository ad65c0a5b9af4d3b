// Package deepgram provides transcription and diarization backed by the
// Deepgram pre-recorded API. The same Provider implements both asr.Provider
// and diarize.Provider, so one API key covers both halves of the pipeline.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/voxalign/pkg/align"
	"github.com/MrWong99/voxalign/pkg/provider/asr"
	"github.com/MrWong99/voxalign/pkg/provider/diarize"
)

const (
	defaultBaseURL  = "https://api.deepgram.com"
	defaultModel    = "nova-3"
	defaultLanguage = "en"
)

// Ensure Provider implements both provider interfaces.
var (
	_ asr.Provider     = (*Provider)(nil)
	_ diarize.Provider = (*Provider)(nil)
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithBaseURL overrides the Deepgram API base URL.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) { p.baseURL = baseURL }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.client = client }
}

// Provider calls the Deepgram pre-recorded transcription endpoint.
type Provider struct {
	apiKey   string
	model    string
	language string
	baseURL  string
	client   *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		baseURL:  defaultBaseURL,
		// Pre-recorded jobs for long recordings can take a while.
		client: &http.Client{Timeout: 10 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// listenResponse is the subset of the pre-recorded API response we consume.
type listenResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
		} `json:"channels"`
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Transcript string  `json:"transcript"`
			Speaker    int     `json:"speaker"`
		} `json:"utterances"`
	} `json:"results"`
}

// Transcribe implements asr.Provider using utterance-level timestamps.
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (*asr.Result, error) {
	parsed, err := p.listen(ctx, audioPath, false)
	if err != nil {
		return nil, wrapASR(err)
	}

	res := &asr.Result{
		Language: p.language,
		Duration: parsed.Metadata.Duration,
	}
	if len(parsed.Results.Channels) > 0 && parsed.Results.Channels[0].DetectedLanguage != "" {
		res.Language = parsed.Results.Channels[0].DetectedLanguage
	}
	for _, u := range parsed.Results.Utterances {
		text := strings.TrimSpace(u.Transcript)
		if text == "" {
			continue
		}
		res.Segments = append(res.Segments, align.Segment{
			Interval: align.Interval{Start: u.Start, End: u.End},
			Text:     text,
		})
	}
	return res, nil
}

// Diarize implements diarize.Provider by requesting speaker labels on the
// same endpoint.
func (p *Provider) Diarize(ctx context.Context, audioPath string) ([]align.SpeakerTurn, error) {
	parsed, err := p.listen(ctx, audioPath, true)
	if err != nil {
		return nil, wrapDiarize(err)
	}

	if len(parsed.Results.Utterances) == 0 {
		return nil, fmt.Errorf("deepgram: %q: %w", audioPath, diarize.ErrNoSpeechDetected)
	}
	turns := make([]align.SpeakerTurn, 0, len(parsed.Results.Utterances))
	for _, u := range parsed.Results.Utterances {
		turns = append(turns, align.SpeakerTurn{
			Interval: align.Interval{Start: u.Start, End: u.End},
			Speaker:  align.SpeakerID(fmt.Sprintf("SPEAKER_%d", u.Speaker)),
		})
	}
	return turns, nil
}

// listen uploads the audio file and returns the parsed response.
func (p *Provider) listen(ctx context.Context, audioPath string, diarizeAudio bool) (*listenResponse, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, audioErr{fmt.Errorf("deepgram: open %q: %w", audioPath, err)}
	}
	defer f.Close()

	endpoint, err := p.buildURL(diarizeAudio)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, f)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, modelErr{fmt.Errorf("deepgram: request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, modelErr{fmt.Errorf("deepgram: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	var parsed listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("deepgram: parse response: %w", err)
	}
	return &parsed, nil
}

// buildURL constructs the pre-recorded endpoint URL.
func (p *Provider) buildURL(diarizeAudio bool) (string, error) {
	u, err := url.Parse(p.baseURL + "/v1/listen")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", p.language)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("utterances", "true")
	q.Set("diarize", strconv.FormatBool(diarizeAudio))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// audioErr and modelErr tag transport failures so the exported methods can
// wrap the sentinel of whichever interface the caller used.
type audioErr struct{ error }
type modelErr struct{ error }

func wrapASR(err error) error {
	var ae audioErr
	if errors.As(err, &ae) {
		return errors.Join(asr.ErrAudioUnreadable, ae.error)
	}
	var me modelErr
	if errors.As(err, &me) {
		return errors.Join(asr.ErrModelUnavailable, me.error)
	}
	return err
}

func wrapDiarize(err error) error {
	var ae audioErr
	if errors.As(err, &ae) {
		return errors.Join(diarize.ErrAudioUnreadable, ae.error)
	}
	var me modelErr
	if errors.As(err, &me) {
		return errors.Join(diarize.ErrModelUnavailable, me.error)
	}
	return err
}
