package task

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/caption-service/backend/internal/media"
)

// Store is the durable task store the lifecycle runs against
type Store interface {
	CreateTask(t *Task) error
	GetTask(id string) (*Task, error)
	ListPending() ([]*Task, error)
	// ClaimTask atomically moves a task from pending to processing and
	// reports whether this caller won the claim.
	ClaimTask(id string) (bool, error)
	UpdateProgress(id string, progress int, message string) error
	SetVideoInfo(id, title string, duration float64) error
	// CompleteTask and FailTask are conditional on the task not already
	// being terminal; they report whether the update applied.
	CompleteTask(id string, captions []Caption) (bool, error)
	FailTask(id, errMsg string) (bool, error)
	FailIfProcessing(id, errMsg string) (bool, error)
	FindCompletedByURL(url string) (string, error)
}

// Runner executes the transcription pipeline for one task
type Runner interface {
	Process(ctx context.Context, t *Task, progress func(int, string)) ([]Caption, *media.Info, error)
}

// Manager drives tasks through pending -> processing -> {completed, failed}.
// Push-submitted tasks get their own worker goroutine; a background sweep
// picks up pending tasks written to the store by other clients.
type Manager struct {
	store  Store
	runner Runner

	timeout       time.Duration
	sweepInterval time.Duration
	sweepBackoff  time.Duration

	// Bounds concurrent pipeline runs; local transcription is resource-heavy
	sem chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(store Store, runner Runner, workerLimit int, timeout, sweepInterval, sweepBackoff time.Duration) *Manager {
	if workerLimit < 1 {
		workerLimit = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:         store,
		runner:        runner,
		timeout:       timeout,
		sweepInterval: sweepInterval,
		sweepBackoff:  sweepBackoff,
		sem:           make(chan struct{}, workerLimit),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Submit creates a task for the given video reference and starts a worker.
// It returns the task ID immediately; failures discovered later are visible
// through the status surface. An unparseable reference produces a task that
// goes straight from pending to failed.
func (m *Manager) Submit(videoURL, language string) (string, error) {
	if language == "" {
		language = "en"
	}
	normalized := media.NormalizeURL(videoURL)

	// Reuse captions already generated for this video
	if id, err := m.store.FindCompletedByURL(normalized); err != nil {
		log.Printf("[task] dedupe lookup failed: %v", err)
	} else if id != "" {
		log.Printf("[task] reusing completed task %s for %s", id, normalized)
		return id, nil
	}

	now := time.Now()
	t := &Task{
		ID:        uuid.New().String(),
		VideoURL:  normalized,
		Language:  language,
		Status:    StatusPending,
		Message:   "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.CreateTask(t); err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}

	if _, err := media.ExtractVideoID(normalized); err != nil {
		if _, ferr := m.store.FailTask(t.ID, "invalid video reference: "+err.Error()); ferr != nil {
			log.Printf("[task] failed to mark task %s invalid: %v", t.ID, ferr)
		}
		return t.ID, nil
	}

	m.scheduleWatchdog(t.ID)
	go m.runPush(t.ID)

	return t.ID, nil
}

// Start launches the background sweep loop
func (m *Manager) Start() {
	go m.sweep()
}

// Stop terminates the sweep loop. In-flight pipeline work is not interrupted.
func (m *Manager) Stop() {
	m.cancel()
}

// scheduleWatchdog force-fails the task if it is still processing after the
// job timeout. It only changes the recorded status; it cannot interrupt a
// model call already running.
func (m *Manager) scheduleWatchdog(id string) {
	time.AfterFunc(m.timeout, func() {
		forced, err := m.store.FailIfProcessing(id, fmt.Sprintf("timeout: processing exceeded %s", m.timeout))
		if err != nil {
			log.Printf("[task] watchdog update failed for %s: %v", id, err)
			return
		}
		if forced {
			log.Printf("[task] watchdog force-failed task %s after %s", id, m.timeout)
		}
	})
}

func (m *Manager) runPush(id string) {
	select {
	case m.sem <- struct{}{}:
	case <-m.ctx.Done():
		return
	}
	defer func() { <-m.sem }()

	claimed, err := m.store.ClaimTask(id)
	if err != nil {
		log.Printf("[task] claim failed for %s: %v", id, err)
		return
	}
	if !claimed {
		// Another driver got there first (or the watchdog already fired)
		return
	}
	m.process(id)
}

// sweep periodically scans the store for pending tasks submitted out of band
// and drives them through the same pipeline, serially within one pass.
func (m *Manager) sweep() {
	log.Printf("[sweep] started, interval=%s", m.sweepInterval)
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			log.Printf("[sweep] stopped")
			return
		case <-ticker.C:
		}

		pending, err := m.store.ListPending()
		if err != nil {
			log.Printf("[sweep] query failed: %v, backing off %s", err, m.sweepBackoff)
			select {
			case <-m.ctx.Done():
				return
			case <-time.After(m.sweepBackoff):
			}
			continue
		}

		for _, t := range pending {
			select {
			case <-m.ctx.Done():
				return
			default:
			}

			claimed, err := m.store.ClaimTask(t.ID)
			if err != nil {
				log.Printf("[sweep] claim failed for %s: %v", t.ID, err)
				continue
			}
			if !claimed {
				continue
			}

			m.scheduleWatchdog(t.ID)

			select {
			case m.sem <- struct{}{}:
			case <-m.ctx.Done():
				return
			}
			m.process(t.ID)
			<-m.sem
		}
	}
}

// process runs the pipeline for a claimed task and records the terminal
// state. No error escapes: every failure becomes the task's error message.
func (m *Manager) process(id string) {
	t, err := m.store.GetTask(id)
	if err != nil {
		log.Printf("[task] failed to load task %s: %v", id, err)
		return
	}

	log.Printf("[task] processing %s url=%s language=%s", t.ID, t.VideoURL, t.Language)

	progress := func(p int, msg string) {
		if err := m.store.UpdateProgress(id, p, msg); err != nil {
			log.Printf("[task] progress update failed for %s: %v", id, err)
		}
	}

	captions, info, err := m.runner.Process(m.ctx, t, progress)
	if info != nil {
		if err := m.store.SetVideoInfo(id, info.Title, info.Duration); err != nil {
			log.Printf("[task] metadata update failed for %s: %v", id, err)
		}
	}
	if err != nil {
		log.Printf("[task] task %s failed: %v", id, err)
		if _, ferr := m.store.FailTask(id, err.Error()); ferr != nil {
			log.Printf("[task] failed to record failure for %s: %v", id, ferr)
		}
		return
	}

	applied, err := m.store.CompleteTask(id, captions)
	if err != nil {
		log.Printf("[task] failed to record completion for %s: %v", id, err)
		return
	}
	if !applied {
		// Watchdog won the race; the terminal state stands
		log.Printf("[task] task %s finished after being force-failed, result discarded", id)
		return
	}
	log.Printf("[task] task %s completed with %d captions", id, len(captions))
}
