package transcribe

import (
	"context"
	"fmt"
	"log"

	"github.com/caption-service/backend/internal/media"
)

// Engine selects between the remote fast path and the local fallback.
// A remote failure is never the job's terminal error: the engine always
// tries local before giving up.
type Engine struct {
	remote       Transcriber
	local        Transcriber
	preferRemote bool
}

func NewEngine(remote, local Transcriber, preferRemote bool) *Engine {
	return &Engine{remote: remote, local: local, preferRemote: preferRemote}
}

// RemoteEnabled reports whether the engine will attempt the remote path at
// all; the pipeline uses it to pick the encoder mode.
func (e *Engine) RemoteEnabled() bool {
	return e.preferRemote && e.remote != nil
}

// Transcribe runs the strategy selection policy over an encoded artifact:
// remote when enabled and the artifact fits the ceiling, otherwise local.
func (e *Engine) Transcribe(ctx context.Context, art *media.Artifact, language string) (*Transcript, error) {
	req := Request{AudioPath: art.Path, Language: language}

	if e.RemoteEnabled() {
		if art.Oversized || art.Size > media.RemoteSizeLimit {
			// Skip the network call entirely; the upload would be rejected
			log.Printf("[whisper] artifact %d bytes exceeds remote ceiling, using local path", art.Size)
		} else {
			tr, err := e.remote.Transcribe(ctx, req)
			if err == nil {
				log.Printf("[whisper] %s transcribed %d segments", e.remote.Name(), len(tr.Segments))
				return tr, nil
			}
			log.Printf("[whisper] %s failed (%v), falling back to local path", e.remote.Name(), err)
		}
	}

	if e.local == nil {
		return nil, fmt.Errorf("no local transcription engine configured")
	}

	tr, err := e.local.Transcribe(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.local.Name(), err)
	}
	log.Printf("[whisper] %s transcribed %d segments", e.local.Name(), len(tr.Segments))
	return tr, nil
}
