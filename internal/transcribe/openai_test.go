package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeTempAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("RIFF fake wav"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenAIParsesVerboseSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("language = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"language": "english",
			"duration": 4.2,
			"text": "hello there",
			"segments": [
				{"id": 0, "start": 0.0, "end": 2.0, "text": " hello", "avg_logprob": -0.31},
				{"id": 1, "start": 2.0, "end": 4.2, "text": " there", "avg_logprob": -0.12}
			]
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key")
	c.baseURL = srv.URL

	tr, err := c.Transcribe(context.Background(), Request{AudioPath: writeTempAudio(t), Language: "en"})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(tr.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(tr.Segments))
	}
	if tr.Segments[0].Confidence != -0.31 {
		t.Errorf("confidence = %v, want avg_logprob", tr.Segments[0].Confidence)
	}
	if tr.Segments[1].Start != 2.0 || tr.Segments[1].End != 4.2 {
		t.Errorf("timing lost: %+v", tr.Segments[1])
	}
}

func TestOpenAIDefaultsSegmentWhenDetailMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"language": "english", "duration": 3.0, "text": "no detail"}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key")
	c.baseURL = srv.URL

	tr, err := c.Transcribe(context.Background(), Request{AudioPath: writeTempAudio(t), Language: "en"})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(tr.Segments) != 1 {
		t.Fatalf("got %d segments, want 1 whole-file segment", len(tr.Segments))
	}
	s := tr.Segments[0]
	if s.Text != "no detail" || s.Start != 0 || s.End != 3.0 || s.Confidence != 0 {
		t.Fatalf("unexpected default segment: %+v", s)
	}
}

func TestOpenAIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limit"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key")
	c.baseURL = srv.URL

	if _, err := c.Transcribe(context.Background(), Request{AudioPath: writeTempAudio(t)}); err == nil {
		t.Fatal("expected an error on non-200 status")
	}
}

func TestOpenAIRequiresKey(t *testing.T) {
	c := NewOpenAIClient("")
	if _, err := c.Transcribe(context.Background(), Request{AudioPath: "x.wav"}); err == nil {
		t.Fatal("expected an error without an API key")
	}
}
