package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// LocalWhisper runs whisper.cpp on the host (the fallback slow path). The
// model is validated once on first use and shared by every run after that.
type LocalWhisper struct {
	bin       string
	modelPath string

	readyOnce sync.Once
	readyErr  error
}

func NewLocalWhisper(bin, modelPath string) *LocalWhisper {
	return &LocalWhisper{bin: bin, modelPath: modelPath}
}

func (l *LocalWhisper) Name() string {
	return "whisper.cpp"
}

// ensureReady verifies the binary and model lazily so deployments that only
// ever use the remote path never pay for local setup.
func (l *LocalWhisper) ensureReady() error {
	l.readyOnce.Do(func() {
		if _, err := exec.LookPath(l.bin); err != nil {
			l.readyErr = fmt.Errorf("whisper binary %q not found: %w", l.bin, err)
			return
		}
		if _, err := os.Stat(l.modelPath); err != nil {
			l.readyErr = fmt.Errorf("whisper model %q not found: %w", l.modelPath, err)
			return
		}
		log.Printf("[whisper-local] ready: bin=%s model=%s", l.bin, l.modelPath)
	})
	return l.readyErr
}

type whisperToken struct {
	Text string  `json:"text"`
	P    float64 `json:"p"`
}

type whisperSegment struct {
	Offsets struct {
		From int64 `json:"from"` // milliseconds
		To   int64 `json:"to"`
	} `json:"offsets"`
	Text   string         `json:"text"`
	Tokens []whisperToken `json:"tokens"`
}

type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []whisperSegment `json:"transcription"`
}

// Transcribe runs whisper-cli with deterministic, speed-tuned parameters:
// greedy decoding at temperature 0, no word-level timestamps, quiet output.
// Identical input bytes produce identical transcripts.
func (l *LocalWhisper) Transcribe(ctx context.Context, req Request) (*Transcript, error) {
	if err := l.ensureReady(); err != nil {
		return nil, err
	}

	outPrefix := req.AudioPath + ".whisper"
	jsonPath := outPrefix + ".json"
	defer os.Remove(jsonPath)

	args := []string{
		"-m", l.modelPath,
		"-f", req.AudioPath,
		"--temperature", "0",
		"--beam-size", "1",
		"--output-json-full",
		"--output-file", outPrefix,
		"--no-prints",
	}
	if req.Language != "" && req.Language != "auto" {
		args = append(args, "-l", req.Language)
	}

	cmd := exec.CommandContext(ctx, l.bin, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("whisper.cpp: %s: %w", strings.TrimSpace(string(output)), err)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}

	var parsed whisperOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	tr := &Transcript{Language: parsed.Result.Language}
	var text strings.Builder
	for _, s := range parsed.Transcription {
		seg := Segment{
			Start:      float64(s.Offsets.From) / 1000.0,
			End:        float64(s.Offsets.To) / 1000.0,
			Text:       s.Text,
			Confidence: avgLogProb(s.Tokens),
		}
		tr.Segments = append(tr.Segments, seg)
		text.WriteString(s.Text)
	}
	tr.Text = text.String()

	return tr, nil
}

// avgLogProb mirrors whisper's per-segment avg_logprob: the mean natural log
// of the token probabilities. Zero when token detail is unavailable.
func avgLogProb(tokens []whisperToken) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var sum float64
	for _, t := range tokens {
		p := t.P
		if p <= 0 {
			p = math.SmallestNonzeroFloat64
		}
		sum += math.Log(p)
	}
	return sum / float64(len(tokens))
}
