package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/caption-service/backend/internal/auth"
	"github.com/caption-service/backend/internal/db/models"
	"github.com/caption-service/backend/internal/task"
)

// ErrNotFound is returned when a task or user does not exist
var ErrNotFound = errors.New("not found")

type Database struct {
	db *sql.DB
}

func NewSQLite(path string) (*Database, error) {
	sqlDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	d := &Database{db: sqlDB}
	if err := d.migrate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Database) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'viewer',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		video_url TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT 'en',
		status TEXT NOT NULL DEFAULT 'pending',
		progress INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		duration REAL NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS captions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		text TEXT NOT NULL,
		start_time REAL NOT NULL,
		end_time REAL NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE,
		UNIQUE(task_id, sequence)
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_video_url ON tasks(video_url);
	CREATE INDEX IF NOT EXISTS idx_captions_task ON captions(task_id);
	`
	_, err := d.db.Exec(schema)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

// EnsureAdmin creates the admin user if no admin exists yet
func (d *Database) EnsureAdmin(username, password string) error {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM users WHERE role = 'admin'").Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(
		"INSERT INTO users (username, password, role) VALUES (?, ?, 'admin')",
		username, hash,
	)
	return err
}

func (d *Database) GetUserByUsername(username string) (*models.User, error) {
	u := &models.User{}
	err := d.db.QueryRow(
		"SELECT id, username, password, role, created_at, updated_at FROM users WHERE username = ?",
		username,
	).Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (d *Database) GetUserByID(id int64) (*models.User, error) {
	u := &models.User{}
	err := d.db.QueryRow(
		"SELECT id, username, password, role, created_at, updated_at FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateTask inserts a new task record
func (d *Database) CreateTask(t *task.Task) error {
	_, err := d.db.Exec(`
		INSERT INTO tasks (id, video_url, language, status, progress, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.VideoURL, t.Language, t.Status, t.Progress, t.Message, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID, without its captions
func (d *Database) GetTask(id string) (*task.Task, error) {
	t := &task.Task{}
	err := d.db.QueryRow(`
		SELECT id, video_url, language, status, progress, message, title, duration, error, created_at, updated_at
		FROM tasks WHERE id = ?`, id,
	).Scan(&t.ID, &t.VideoURL, &t.Language, &t.Status, &t.Progress, &t.Message,
		&t.Title, &t.Duration, &t.Error, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListPending returns all pending tasks, oldest first
func (d *Database) ListPending() ([]*task.Task, error) {
	return d.listByQuery(`
		SELECT id, video_url, language, status, progress, message, title, duration, error, created_at, updated_at
		FROM tasks WHERE status = ? ORDER BY created_at ASC`, task.StatusPending)
}

// ListTasks returns all tasks, newest first
func (d *Database) ListTasks() ([]*task.Task, error) {
	return d.listByQuery(`
		SELECT id, video_url, language, status, progress, message, title, duration, error, created_at, updated_at
		FROM tasks ORDER BY created_at DESC`)
}

func (d *Database) listByQuery(query string, args ...interface{}) ([]*task.Task, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t := &task.Task{}
		if err := rows.Scan(&t.ID, &t.VideoURL, &t.Language, &t.Status, &t.Progress, &t.Message,
			&t.Title, &t.Duration, &t.Error, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ClaimTask moves a task from pending to processing. The conditional update
// guarantees at most one driver proceeds past the claim.
func (d *Database) ClaimTask(id string) (bool, error) {
	res, err := d.db.Exec(`
		UPDATE tasks SET status = ?, message = 'processing', updated_at = ?
		WHERE id = ? AND status = ?`,
		task.StatusProcessing, time.Now(), id, task.StatusPending,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateProgress records advisory progress for a task still processing
func (d *Database) UpdateProgress(id string, progress int, message string) error {
	_, err := d.db.Exec(`
		UPDATE tasks SET progress = ?, message = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		progress, message, time.Now(), id, task.StatusProcessing,
	)
	return err
}

// SetVideoInfo stores the title and duration reported by the media source
func (d *Database) SetVideoInfo(id, title string, duration float64) error {
	_, err := d.db.Exec(
		"UPDATE tasks SET title = ?, duration = ?, updated_at = ? WHERE id = ?",
		title, duration, time.Now(), id,
	)
	return err
}

// CompleteTask marks a processing task completed and stores its captions in
// one transaction. Returns false if the task was no longer processing (e.g.
// the watchdog already force-failed it); the terminal state is not touched.
func (d *Database) CompleteTask(id string, captions []task.Caption) (bool, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE tasks SET status = ?, progress = 100, message = 'completed', updated_at = ?
		WHERE id = ? AND status = ?`,
		task.StatusCompleted, time.Now(), id, task.StatusProcessing,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.Exec("DELETE FROM captions WHERE task_id = ?", id); err != nil {
		return false, err
	}
	for _, c := range captions {
		if _, err := tx.Exec(`
			INSERT INTO captions (task_id, sequence, text, start_time, end_time, confidence)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, c.Sequence, c.Text, c.StartTime, c.EndTime, c.Confidence,
		); err != nil {
			return false, fmt.Errorf("insert caption %d: %w", c.Sequence, err)
		}
	}

	return true, tx.Commit()
}

// FailTask marks a non-terminal task failed with the given error message
func (d *Database) FailTask(id, errMsg string) (bool, error) {
	res, err := d.db.Exec(`
		UPDATE tasks SET status = ?, message = 'failed', error = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		task.StatusFailed, errMsg, time.Now(), id, task.StatusPending, task.StatusProcessing,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FailIfProcessing force-fails a task only if it is still processing; used
// by the watchdog so completed or already-failed tasks are never touched.
func (d *Database) FailIfProcessing(id, errMsg string) (bool, error) {
	res, err := d.db.Exec(`
		UPDATE tasks SET status = ?, message = 'failed', error = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		task.StatusFailed, errMsg, time.Now(), id, task.StatusProcessing,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindCompletedByURL returns the most recent completed task for a video URL,
// or "" when none exists
func (d *Database) FindCompletedByURL(url string) (string, error) {
	var id string
	err := d.db.QueryRow(`
		SELECT id FROM tasks WHERE video_url = ? AND status = ?
		ORDER BY created_at DESC LIMIT 1`,
		url, task.StatusCompleted,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// CaptionsForTask returns a task's captions in reading order
func (d *Database) CaptionsForTask(id string) ([]task.Caption, error) {
	rows, err := d.db.Query(`
		SELECT sequence, text, start_time, end_time, confidence
		FROM captions WHERE task_id = ? ORDER BY sequence ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	captions := []task.Caption{}
	for rows.Next() {
		var c task.Caption
		if err := rows.Scan(&c.Sequence, &c.Text, &c.StartTime, &c.EndTime, &c.Confidence); err != nil {
			return nil, err
		}
		captions = append(captions, c)
	}
	return captions, rows.Err()
}

// CountByStatus returns the number of tasks in the given state
func (d *Database) CountByStatus(status task.Status) (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM tasks WHERE status = ?", status).Scan(&count)
	return count, err
}

// DeleteTask removes a task and its captions
func (d *Database) DeleteTask(id string) error {
	res, err := d.db.Exec("DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	_, err = d.db.Exec("DELETE FROM captions WHERE task_id = ?", id)
	return err
}
