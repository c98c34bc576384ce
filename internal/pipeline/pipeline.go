package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/caption-service/backend/internal/media"
	"github.com/caption-service/backend/internal/task"
	"github.com/caption-service/backend/internal/transcribe"
)

// MediaSource fetches audio bytes and metadata for a video reference
type MediaSource interface {
	FetchAudio(ctx context.Context, url, destDir string) (string, *media.Info, error)
}

// AudioEncoder produces size-budgeted waveform files
type AudioEncoder interface {
	EncodeLocal(ctx context.Context, src, destDir string) (*media.Artifact, error)
	EncodeRemote(ctx context.Context, src, destDir string) (*media.Artifact, error)
}

// Engine turns an encoded artifact into a segmented transcript
type Engine interface {
	RemoteEnabled() bool
	Transcribe(ctx context.Context, art *media.Artifact, language string) (*transcribe.Transcript, error)
}

// Runner executes the transcription pipeline for one task:
// fetch -> encode -> transcribe -> format. Each run owns a private temp
// directory that is removed unconditionally when the run ends.
type Runner struct {
	source     MediaSource
	encoder    AudioEncoder
	engine     Engine
	ffprobeBin string
	tmpRoot    string
}

func NewRunner(source MediaSource, encoder AudioEncoder, engine Engine, ffprobeBin, tmpRoot string) *Runner {
	return &Runner{
		source:     source,
		encoder:    encoder,
		engine:     engine,
		ffprobeBin: ffprobeBin,
		tmpRoot:    tmpRoot,
	}
}

// Process runs the full pipeline. Stages execute strictly sequentially; any
// stage error fails the whole run. Returned metadata is non-nil as soon as
// the fetch stage reported it, even when a later stage fails.
func (r *Runner) Process(ctx context.Context, t *task.Task, progress func(int, string)) ([]task.Caption, *media.Info, error) {
	dir, err := os.MkdirTemp(r.tmpRoot, "caption-job-")
	if err != nil {
		return nil, nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		// Best-effort cleanup on both the success and failure paths
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("[pipeline] cleanup failed for %s: %v", dir, err)
		}
	}()

	progress(10, "downloading audio")
	audioPath, info, err := r.source.FetchAudio(ctx, t.VideoURL, dir)
	if err != nil {
		return nil, info, fmt.Errorf("download audio: %w", err)
	}

	progress(35, "encoding audio")
	var art *media.Artifact
	if r.engine.RemoteEnabled() {
		art, err = r.encoder.EncodeRemote(ctx, audioPath, dir)
	} else {
		art, err = r.encoder.EncodeLocal(ctx, audioPath, dir)
	}
	if err != nil {
		return nil, info, fmt.Errorf("encode audio: %w", err)
	}

	if r.ffprobeBin != "" {
		if ai, perr := media.ProbeAudio(ctx, r.ffprobeBin, art.Path); perr == nil {
			log.Printf("[pipeline] task %s artifact: %.1fs %s %dHz %d bytes",
				t.ID, ai.Duration, ai.Codec, ai.SampleRate, art.Size)
		}
	}

	progress(50, "transcribing")
	tr, err := r.engine.Transcribe(ctx, art, t.Language)
	if err != nil {
		return nil, info, fmt.Errorf("transcribe: %w", err)
	}

	progress(90, "formatting captions")
	captions := transcribe.FormatCaptions(tr.Segments)

	return captions, info, nil
}
