package transcribe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/caption-service/backend/internal/media"
)

type stubEngine struct {
	name  string
	calls int
	tr    *Transcript
	err   error
}

func (s *stubEngine) Transcribe(ctx context.Context, req Request) (*Transcript, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.tr, nil
}

func (s *stubEngine) Name() string { return s.name }

func smallArtifact() *media.Artifact {
	return &media.Artifact{Path: "/tmp/a.wav", Size: 1024, SampleRate: 16000, BitDepth: 16}
}

func TestEngineUsesRemoteWhenAvailable(t *testing.T) {
	remote := &stubEngine{name: "openai", tr: &Transcript{Segments: []Segment{{Text: "remote"}}}}
	local := &stubEngine{name: "whisper.cpp", tr: &Transcript{Segments: []Segment{{Text: "local"}}}}
	e := NewEngine(remote, local, true)

	tr, err := e.Transcribe(context.Background(), smallArtifact(), "en")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if tr.Segments[0].Text != "remote" {
		t.Fatal("expected the remote result")
	}
	if local.calls != 0 {
		t.Fatal("local path must not run when remote succeeds")
	}
}

func TestEngineFallsBackWhenRemoteFails(t *testing.T) {
	remote := &stubEngine{name: "openai", err: errors.New("quota exceeded")}
	local := &stubEngine{name: "whisper.cpp", tr: &Transcript{Segments: []Segment{{Text: "local"}}}}
	e := NewEngine(remote, local, true)

	tr, err := e.Transcribe(context.Background(), smallArtifact(), "en")
	if err != nil {
		t.Fatalf("remote failure must not surface when local succeeds: %v", err)
	}
	if tr.Segments[0].Text != "local" {
		t.Fatal("expected the local result")
	}
	if remote.calls != 1 || local.calls != 1 {
		t.Fatalf("calls remote=%d local=%d, want 1/1", remote.calls, local.calls)
	}
}

func TestEngineSkipsRemoteForOversizedArtifact(t *testing.T) {
	remote := &stubEngine{name: "openai", tr: &Transcript{}}
	local := &stubEngine{name: "whisper.cpp", tr: &Transcript{Segments: []Segment{{Text: "local"}}}}
	e := NewEngine(remote, local, true)

	art := &media.Artifact{Path: "/tmp/a.wav", Size: media.RemoteSizeLimit + 1, Oversized: true}
	if _, err := e.Transcribe(context.Background(), art, "en"); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if remote.calls != 0 {
		t.Fatal("oversized artifact must never reach the remote capability")
	}
	if local.calls != 1 {
		t.Fatal("expected the local path to run")
	}
}

func TestEngineSkipsRemoteWhenNotPreferred(t *testing.T) {
	remote := &stubEngine{name: "openai", tr: &Transcript{}}
	local := &stubEngine{name: "whisper.cpp", tr: &Transcript{}}
	e := NewEngine(remote, local, false)

	if e.RemoteEnabled() {
		t.Fatal("remote must be disabled when not preferred")
	}
	e.Transcribe(context.Background(), smallArtifact(), "en")
	if remote.calls != 0 {
		t.Fatal("remote called despite preference for local")
	}
}

func TestEngineSurfacesLocalError(t *testing.T) {
	remote := &stubEngine{name: "openai", err: errors.New("remote down")}
	local := &stubEngine{name: "whisper.cpp", err: errors.New("model load failed")}
	e := NewEngine(remote, local, true)

	_, err := e.Transcribe(context.Background(), smallArtifact(), "en")
	if err == nil {
		t.Fatal("expected an error when both paths fail")
	}
	if !strings.Contains(err.Error(), "model load failed") {
		t.Fatalf("job error must be the local error, got %q", err)
	}
}

func TestEngineWithoutRemoteConfigured(t *testing.T) {
	local := &stubEngine{name: "whisper.cpp", tr: &Transcript{Segments: []Segment{{Text: "local"}}}}
	e := NewEngine(nil, local, true)

	if e.RemoteEnabled() {
		t.Fatal("remote must be disabled without a credentialed client")
	}
	tr, err := e.Transcribe(context.Background(), smallArtifact(), "en")
	if err != nil || tr.Segments[0].Text != "local" {
		t.Fatalf("tr=%v err=%v", tr, err)
	}
}
