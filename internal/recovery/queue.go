package recovery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"bettermarkers/internal/fileutil"
)

// SweepLockPath is the file a recovery sweep holds for its whole run.
func SweepLockPath(queuePath string) string {
	return queuePath + ".lock"
}

// WriteLockPath is the file held around each reload, mutate and save cycle.
// It is separate from the sweep lock because a sweep mutates the queue while
// holding that one.
func WriteLockPath(queuePath string) string {
	return queuePath + ".write.lock"
}

// Job is a recording whose XMP embed has not yet succeeded.
type Job struct {
	MediaPath         string `json:"mediaPath"`
	Attempts          int    `json:"attempts"`
	LastError         string `json:"lastError"`
	LastAttemptUnixMs int64  `json:"lastAttemptUnixMs"`
}

// LastAttempt returns the time of the most recent failed attempt.
func (j Job) LastAttempt() time.Time {
	return time.UnixMilli(j.LastAttemptUnixMs)
}

type queueFile struct {
	Jobs []Job `json:"jobs"`
}

// Queue is the ordered, JSON-persisted list of pending embed jobs, unique by
// media path. It is not safe for concurrent use. Update serializes writers
// across processes; callers sharing a Queue in one process add their own
// mutex.
type Queue struct {
	path string
	jobs []Job
	now  func() time.Time
}

// NewQueue returns an empty queue bound to path. Call Load to read it.
func NewQueue(path string) *Queue {
	return &Queue{path: path, now: time.Now}
}

// Path returns the backing file location.
func (q *Queue) Path() string {
	return q.path
}

// Load replaces the in-memory jobs with the file contents. A missing or empty
// file yields an empty queue. Entries without a media path are skipped and
// duplicates keep their first occurrence.
func (q *Queue) Load() error {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			q.jobs = nil
			return nil
		}
		return fmt.Errorf("read recovery queue: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		q.jobs = nil
		return nil
	}

	var file queueFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse recovery queue %s: %w", q.path, err)
	}

	seen := make(map[string]struct{}, len(file.Jobs))
	jobs := make([]Job, 0, len(file.Jobs))
	for _, job := range file.Jobs {
		if strings.TrimSpace(job.MediaPath) == "" {
			continue
		}
		if _, dup := seen[job.MediaPath]; dup {
			continue
		}
		seen[job.MediaPath] = struct{}{}
		jobs = append(jobs, job)
	}
	q.jobs = jobs
	return nil
}

// Save writes the queue atomically, creating parent directories.
func (q *Queue) Save() error {
	file := queueFile{Jobs: q.jobs}
	if file.Jobs == nil {
		file.Jobs = []Job{}
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal recovery queue: %w", err)
	}
	if err := fileutil.WriteFileAtomic(q.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("persist recovery queue: %w", err)
	}
	return nil
}

// Update reloads the file, applies fn and saves when fn reports a change, all
// under an exclusive lock on WriteLockPath. Writers in other processes are
// therefore never overwritten with a stale snapshot. If the reload fails fn
// runs on the in-memory jobs and the load error is returned with any save
// error.
func (q *Queue) Update(fn func(*Queue) bool) error {
	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		return fmt.Errorf("create queue directory: %w", err)
	}
	lock := flock.New(WriteLockPath(q.path))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire queue write lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	loadErr := q.Load()
	if !fn(q) {
		return loadErr
	}
	return errors.Join(loadErr, q.Save())
}

// Reload reads the file under the write lock so it never observes a save in
// progress from another process.
func (q *Queue) Reload() error {
	return q.Update(func(*Queue) bool { return false })
}

// Upsert records a failed attempt for mediaPath.
func (q *Queue) Upsert(mediaPath, lastError string) {
	stamp := q.now().UnixMilli()
	if i := q.index(mediaPath); i >= 0 {
		q.jobs[i].Attempts++
		q.jobs[i].LastError = lastError
		q.jobs[i].LastAttemptUnixMs = stamp
		return
	}
	q.jobs = append(q.jobs, Job{
		MediaPath:         mediaPath,
		Attempts:          1,
		LastError:         lastError,
		LastAttemptUnixMs: stamp,
	})
}

// Remove deletes the job for mediaPath and reports whether one existed.
func (q *Queue) Remove(mediaPath string) bool {
	i := q.index(mediaPath)
	if i < 0 {
		return false
	}
	q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
	return true
}

// Get returns the job for mediaPath.
func (q *Queue) Get(mediaPath string) (Job, bool) {
	if i := q.index(mediaPath); i >= 0 {
		return q.jobs[i], true
	}
	return Job{}, false
}

// Jobs returns a snapshot safe to iterate while the queue is mutated.
func (q *Queue) Jobs() []Job {
	out := make([]Job, len(q.jobs))
	copy(out, q.jobs)
	return out
}

// Len returns the number of pending jobs.
func (q *Queue) Len() int {
	return len(q.jobs)
}

func (q *Queue) index(mediaPath string) int {
	for i := range q.jobs {
		if q.jobs[i].MediaPath == mediaPath {
			return i
		}
	}
	return -1
}
