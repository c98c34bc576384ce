package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/caption-service/backend/internal/auth"
	"github.com/caption-service/backend/internal/config"
	"github.com/caption-service/backend/internal/db"
	"github.com/caption-service/backend/internal/media"
	"github.com/caption-service/backend/internal/task"
)

// stubRunner completes every task with one caption, or fails when err is set
type stubRunner struct {
	err error
}

func (r *stubRunner) Process(ctx context.Context, t *task.Task, progress func(int, string)) ([]task.Caption, *media.Info, error) {
	progress(50, "transcribing")
	if r.err != nil {
		return nil, nil, r.err
	}
	return []task.Caption{
		{Sequence: 1, Text: "hello", StartTime: 0, EndTime: 1.5, Confidence: -0.2},
	}, &media.Info{Title: "clip", Duration: 18}, nil
}

func newTestServer(t *testing.T, runner task.Runner) (*httptest.Server, *db.Database) {
	t.Helper()
	database, err := db.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.EnsureAdmin("admin", "secret"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}

	manager := task.NewManager(database, runner, 2, time.Minute, time.Hour, time.Hour)
	t.Cleanup(manager.Stop)

	cfg := &config.Config{CORSOrigins: []string{"*"}}
	jwtService := auth.NewJWTService("test-secret")

	srv := httptest.NewServer(NewRouter(database, jwtService, cfg, manager))
	t.Cleanup(srv.Close)
	return srv, database
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func pollTerminal(t *testing.T, srv *httptest.Server, id string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(srv.URL + "/api/captions/status/" + id)
		if err != nil {
			t.Fatalf("status poll: %v", err)
		}
		var body map[string]interface{}
		decode(t, resp, &body)
		status, _ := body["status"].(string)
		if status == "completed" || status == "failed" {
			return body
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("task never reached a terminal state")
	return nil
}

func TestSubmitPollResult(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{})

	resp := postJSON(t, srv.URL+"/api/captions/generate", map[string]string{
		"video_url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"language":  "en",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status = %d, want 202", resp.StatusCode)
	}
	var submitted map[string]string
	decode(t, resp, &submitted)
	id := submitted["task_id"]
	if id == "" {
		t.Fatal("no task_id returned")
	}

	status := pollTerminal(t, srv, id)
	if status["status"] != "completed" {
		t.Fatalf("final status = %v (error: %v)", status["status"], status["error"])
	}

	resultResp, err := http.Get(srv.URL + "/api/captions/result/" + id)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if resultResp.StatusCode != http.StatusOK {
		t.Fatalf("result status = %d, want 200", resultResp.StatusCode)
	}
	var result struct {
		TaskID   string `json:"task_id"`
		Title    string `json:"title"`
		Captions []struct {
			ID        int     `json:"id"`
			Text      string  `json:"text"`
			StartTime float64 `json:"startTime"`
			EndTime   float64 `json:"endTime"`
		} `json:"captions"`
	}
	decode(t, resultResp, &result)
	if len(result.Captions) != 1 {
		t.Fatalf("got %d captions, want 1", len(result.Captions))
	}
	c := result.Captions[0]
	if c.ID != 1 || c.StartTime >= c.EndTime {
		t.Fatalf("malformed caption: %+v", c)
	}
	if result.Title != "clip" {
		t.Errorf("title = %q, want metadata from the pipeline", result.Title)
	}
}

func TestSubmitUnparseableReferenceFails(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{})

	resp := postJSON(t, srv.URL+"/api/captions/generate", map[string]string{
		"video_url": "https://example.com/watch.mp4",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status = %d, want 202 (failure is reported via polling)", resp.StatusCode)
	}
	var submitted map[string]string
	decode(t, resp, &submitted)

	status := pollTerminal(t, srv, submitted["task_id"])
	if status["status"] != "failed" {
		t.Fatalf("final status = %v, want failed", status["status"])
	}
	if msg, _ := status["error"].(string); msg == "" {
		t.Fatal("failed task must expose a non-empty error message")
	}
}

func TestSubmitValidation(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{})

	cases := []map[string]string{
		{},                         // missing video_url
		{"video_url": ""},          // empty
		{"video_url": "not a url"}, // not a URL
	}
	for _, body := range cases {
		resp := postJSON(t, srv.URL+"/api/captions/generate", body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("submit %v status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestStatusAndResultNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{})

	for _, path := range []string{"/api/captions/status/nope", "/api/captions/result/nope"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestResultNotReady(t *testing.T) {
	srv, database := newTestServer(t, &stubRunner{})

	// Pending task written directly to the store
	now := time.Now()
	database.CreateTask(&task.Task{ID: "waiting", VideoURL: "u", Language: "en", Status: task.StatusPending, CreatedAt: now, UpdatedAt: now})

	resp, err := http.Get(srv.URL + "/api/captions/result/waiting")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("result status = %d, want 409 while not ready", resp.StatusCode)
	}
}

func TestHealthReportsPendingCount(t *testing.T) {
	srv, database := newTestServer(t, &stubRunner{})
	now := time.Now()
	for i := 0; i < 3; i++ {
		database.CreateTask(&task.Task{ID: fmt.Sprintf("p%d", i), VideoURL: "u", Language: "en", Status: task.StatusPending, CreatedAt: now, UpdatedAt: now})
	}

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		Status  string  `json:"status"`
		Pending float64 `json:"pending_tasks"`
	}
	decode(t, resp, &body)
	if body.Status != "healthy" || int(body.Pending) != 3 {
		t.Fatalf("health = %+v, want healthy with 3 pending", body)
	}
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{})

	resp, err := http.Get(srv.URL + "/api/tasks")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated admin access = %d, want 401", resp.StatusCode)
	}

	// Login and retry
	loginResp := postJSON(t, srv.URL+"/api/auth/login", map[string]string{
		"username": "admin", "password": "secret",
	})
	if loginResp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", loginResp.StatusCode)
	}
	var login struct {
		Token string `json:"token"`
	}
	decode(t, loginResp, &login)

	req, _ := http.NewRequest("GET", srv.URL+"/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	authResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	authResp.Body.Close()
	if authResp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated admin access = %d, want 200", authResp.StatusCode)
	}
}
