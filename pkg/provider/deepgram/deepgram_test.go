package deepgram

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/voxalign/pkg/provider/asr"
	"github.com/MrWong99/voxalign/pkg/provider/diarize"
)

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(false)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "en", q.Get("language"))
	assertEqual(t, "punctuate", "true", q.Get("punctuate"))
	assertEqual(t, "utterances", "true", q.Get("utterances"))
	assertEqual(t, "diarize", "false", q.Get("diarize"))
}

func TestBuildURL_CustomModelAndDiarize(t *testing.T) {
	p, err := New("key", WithModel("base"), WithLanguage("de-DE"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(true)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	q := u.Query()

	assertEqual(t, "model", "base", q.Get("model"))
	assertEqual(t, "language", "de-DE", q.Get("language"))
	assertEqual(t, "diarize", "true", q.Get("diarize"))
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("New accepted empty apiKey")
	}
}

// ---- endpoint tests ----

const listenBody = `{
	"metadata": {"duration": 12.5},
	"results": {
		"channels": [{"detected_language": "en"}],
		"utterances": [
			{"start": 0.0, "end": 4.2, "transcript": "hello there", "speaker": 0},
			{"start": 4.5, "end": 9.1, "transcript": "general kenobi", "speaker": 1}
		]
	}
}`

func fixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("fake audio bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assertEqual(t, "path", "/v1/listen", r.URL.Path)
		assertEqual(t, "auth", "Token key", r.Header.Get("Authorization"))
		assertEqual(t, "diarize", "false", r.URL.Query().Get("diarize"))
		w.Write([]byte(listenBody))
	}))
	defer srv.Close()

	p, err := New("key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Transcribe(t.Context(), fixture(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(res.Segments))
	}
	assertEqual(t, "text", "hello there", res.Segments[0].Text)
	assertEqual(t, "language", "en", res.Language)
	if res.Duration != 12.5 {
		t.Errorf("duration=%v, want 12.5", res.Duration)
	}
}

func TestDiarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assertEqual(t, "diarize", "true", r.URL.Query().Get("diarize"))
		w.Write([]byte(listenBody))
	}))
	defer srv.Close()

	p, err := New("key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	turns, err := p.Diarize(t.Context(), fixture(t))
	if err != nil {
		t.Fatalf("Diarize: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	assertEqual(t, "speaker 0", "SPEAKER_0", string(turns[0].Speaker))
	assertEqual(t, "speaker 1", "SPEAKER_1", string(turns[1].Speaker))
}

func TestDiarize_NoUtterances(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"metadata":{"duration":3.0},"results":{"channels":[],"utterances":[]}}`))
	}))
	defer srv.Close()

	p, _ := New("key", WithBaseURL(srv.URL))
	if _, err := p.Diarize(t.Context(), fixture(t)); !errors.Is(err, diarize.ErrNoSpeechDetected) {
		t.Errorf("got %v, want ErrNoSpeechDetected", err)
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, _ := New("key", WithBaseURL(srv.URL))
	if _, err := p.Transcribe(t.Context(), fixture(t)); !errors.Is(err, asr.ErrModelUnavailable) {
		t.Errorf("got %v, want ErrModelUnavailable", err)
	}
}

func TestTranscribe_MissingAudio(t *testing.T) {
	p, _ := New("key")
	if _, err := p.Transcribe(t.Context(), filepath.Join(t.TempDir(), "nope.wav")); !errors.Is(err, asr.ErrAudioUnreadable) {
		t.Errorf("got %v, want ErrAudioUnreadable", err)
	}
}

func assertEqual(t *testing.T, name, want, got string) {
	t.Helper()
	if want != got {
		t.Errorf("%s: got %q, want %q", name, got, want)
	}
}
