package media

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
)

// RemoteSizeLimit is the largest artifact the remote transcription path will
// accept: 24 MiB, a safety margin under the service's hard 25 MiB cap.
const RemoteSizeLimit = 24 * 1024 * 1024

// Artifact is an encoded waveform file owned by a single pipeline run
type Artifact struct {
	Path       string
	Size       int64
	SampleRate int
	BitDepth   int
	// Oversized is set when every ladder step still exceeded the remote
	// ceiling; callers must not submit such an artifact to the remote path.
	Oversized bool
}

type encodeStep struct {
	sampleRate int
	bitDepth   int
}

// remoteLadder is the descending quality ladder for the remote path. The
// first step that fits under RemoteSizeLimit wins.
var remoteLadder = []encodeStep{
	{16000, 16},
	{16000, 8},
	{8000, 16},
	{8000, 8},
}

// localStep trades fidelity for decode speed; the local model has no ceiling
var localStep = encodeStep{8000, 16}

// Encoder converts downloaded audio into mono PCM waveform files
type Encoder struct {
	ffmpegBin string

	// run executes one ffmpeg re-encode; replaced in tests
	run func(ctx context.Context, src, dst string, step encodeStep) error
}

func NewEncoder(ffmpegBin string) *Encoder {
	e := &Encoder{ffmpegBin: ffmpegBin}
	e.run = e.runFFmpeg
	return e
}

// EncodeLocal produces an 8 kHz 16-bit mono WAV for the local model
func (e *Encoder) EncodeLocal(ctx context.Context, src, destDir string) (*Artifact, error) {
	return e.encode(ctx, src, destDir, localStep)
}

// EncodeRemote walks the quality ladder until the artifact fits under the
// remote ceiling. If every step is still too large, the last (smallest)
// attempt is returned marked Oversized instead of an error.
func (e *Encoder) EncodeRemote(ctx context.Context, src, destDir string) (*Artifact, error) {
	var last *Artifact
	for _, step := range remoteLadder {
		art, err := e.encode(ctx, src, destDir, step)
		if err != nil {
			return nil, err
		}
		if art.Size <= RemoteSizeLimit {
			return art, nil
		}
		log.Printf("[media] %dHz/%d-bit artifact is %d bytes, over the %d ceiling",
			step.sampleRate, step.bitDepth, art.Size, RemoteSizeLimit)
		last = art
	}
	last.Oversized = true
	return last, nil
}

func (e *Encoder) encode(ctx context.Context, src, destDir string, step encodeStep) (*Artifact, error) {
	dst := filepath.Join(destDir, fmt.Sprintf("encoded_%d_%d.wav", step.sampleRate, step.bitDepth))
	if err := e.run(ctx, src, dst, step); err != nil {
		return nil, err
	}

	info, err := os.Stat(dst)
	if err != nil {
		return nil, fmt.Errorf("stat encoded audio: %w", err)
	}
	return &Artifact{
		Path:       dst,
		Size:       info.Size(),
		SampleRate: step.sampleRate,
		BitDepth:   step.bitDepth,
	}, nil
}

func (e *Encoder) runFFmpeg(ctx context.Context, src, dst string, step encodeStep) error {
	codec := "pcm_s16le"
	if step.bitDepth == 8 {
		codec = "pcm_u8"
	}

	cmd := exec.CommandContext(ctx, e.ffmpegBin,
		"-hide_banner",
		"-loglevel", "error",
		"-i", src,
		"-vn",
		"-acodec", codec,
		"-ar", fmt.Sprintf("%d", step.sampleRate),
		"-ac", "1",
		"-y",
		dst,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(dst)
		return fmt.Errorf("ffmpeg: %s: %w", string(output), err)
	}
	return nil
}
