package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
)

// Info is the metadata the media source reports for a video
type Info struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	Uploader   string  `json:"uploader"`
	WebpageURL string  `json:"webpage_url"`
}

// Fetcher downloads audio tracks from a content platform via yt-dlp
type Fetcher struct {
	ytdlpBin string
}

func NewFetcher(ytdlpBin string) *Fetcher {
	return &Fetcher{ytdlpBin: ytdlpBin}
}

// Probe returns video metadata without downloading anything
func (f *Fetcher) Probe(ctx context.Context, url string) (*Info, error) {
	cmd := exec.CommandContext(ctx, f.ytdlpBin,
		"--dump-json",
		"--skip-download",
		"--no-playlist",
		"--no-warnings",
		url,
	)

	output, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("yt-dlp probe: %s", string(ee.Stderr))
		}
		return nil, fmt.Errorf("yt-dlp probe: %w", err)
	}

	var info Info
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("parse yt-dlp metadata: %w", err)
	}
	return &info, nil
}

// FetchAudio downloads the best audio track as WAV into destDir and returns
// the file path together with the video metadata.
func (f *Fetcher) FetchAudio(ctx context.Context, url, destDir string) (string, *Info, error) {
	info, err := f.Probe(ctx, url)
	if err != nil {
		return "", nil, err
	}
	log.Printf("[media] fetching %q (%.0fs) from %s", info.Title, info.Duration, url)

	outTemplate := filepath.Join(destDir, "audio.%(ext)s")
	cmd := exec.CommandContext(ctx, f.ytdlpBin,
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "wav",
		"-o", outTemplate,
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		url,
	)

	if output, err := cmd.CombinedOutput(); err != nil {
		return "", info, fmt.Errorf("yt-dlp download: %s: %w", string(output), err)
	}

	wavPath := filepath.Join(destDir, "audio.wav")
	if _, err := os.Stat(wavPath); err != nil {
		return "", info, fmt.Errorf("audio file missing after download: %w", err)
	}
	return wavPath, info, nil
}
