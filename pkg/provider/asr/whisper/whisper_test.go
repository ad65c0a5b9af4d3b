package whisper_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/voxalign/pkg/provider/asr"
	"github.com/MrWong99/voxalign/pkg/provider/asr/whisper"
)

// writeTempAudio creates a small placeholder audio file and returns its path.
func writeTempAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("RIFF fake"), 0o644); err != nil {
		t.Fatalf("write temp audio: %v", err)
	}
	return path
}

func TestProvider_Transcribe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("path=%q, want /inference", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format=%q, want verbose_json", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"language": "en",
			"duration": 4.0,
			"text": " hello world",
			"segments": [
				{"start": 0.0, "end": 2.0, "text": " hello"},
				{"start": 2.0, "end": 4.0, "text": " world"},
				{"start": 4.0, "end": 4.0, "text": "  "}
			]
		}`))
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL, whisper.WithLanguage("en"))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	res, err := p.Transcribe(context.Background(), writeTempAudio(t))
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if res.Language != "en" || res.Duration != 4.0 {
		t.Errorf("metadata: got lang=%q dur=%v", res.Language, res.Duration)
	}
	// The blank segment must be dropped, texts trimmed.
	if len(res.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(res.Segments))
	}
	if res.Segments[0].Text != "hello" || res.Segments[1].Text != "world" {
		t.Errorf("texts: got %q, %q", res.Segments[0].Text, res.Segments[1].Text)
	}
	if res.Segments[1].Start != 2.0 || res.Segments[1].End != 4.0 {
		t.Errorf("timestamps: got %+v", res.Segments[1].Interval)
	}
}

func TestProvider_TranscribeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = p.Transcribe(context.Background(), writeTempAudio(t))
	if !errors.Is(err, asr.ErrModelUnavailable) {
		t.Errorf("err=%v, want ErrModelUnavailable", err)
	}
}

func TestProvider_TranscribeMissingFile(t *testing.T) {
	t.Parallel()

	p, err := whisper.New("http://localhost:1")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = p.Transcribe(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	if !errors.Is(err, asr.ErrAudioUnreadable) {
		t.Errorf("err=%v, want ErrAudioUnreadable", err)
	}
}

func TestNew_EmptyServerURL(t *testing.T) {
	t.Parallel()

	if _, err := whisper.New(""); err == nil {
		t.Error("New(\"\") returned nil error")
	}
}
