package backupmgr

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/SteamServerUI/SaveBackupManager/config"
	"github.com/SteamServerUI/SaveBackupManager/logging"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 9, 14, 30, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.SaveRoot = filepath.Join(root, "saves")
	cfg.BackupPath = filepath.Join(root, "backup")
	require.NoError(t, os.MkdirAll(cfg.SaveRoot, 0755))
	return cfg
}

func newTestManager(t *testing.T, cfg *config.Config, opts ...Option) (*BackupManager, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock), WithLogger(logging.Discard())}, opts...)
	return NewBackupManager(cfg, opts...), clock
}

// makeSave creates a live save folder with a save file and one nested file.
func makeSave(t *testing.T, cfg *config.Config, name, content string) string {
	t.Helper()
	dir := filepath.Join(cfg.SaveRoot, name)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Ships", "VAB"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, cfg.SaveFileName), []byte(content), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Ships", "VAB", "rocket.craft"), []byte("craft"), 0644))
	return dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// recordingFS wraps the local filesystem and lets tests observe or break calls.
type recordingFS struct {
	LocalFileOperations
	mu          sync.Mutex
	copies      int
	onCopy      func(src, dst string)
	copyErr     error
	compressErr error
	panicMsg    string
}

func (r *recordingFS) CopyDirectory(src, dst string) error {
	r.mu.Lock()
	r.copies++
	onCopy, copyErr, panicMsg := r.onCopy, r.copyErr, r.panicMsg
	r.mu.Unlock()

	if onCopy != nil {
		onCopy(src, dst)
	}
	if panicMsg != "" {
		panic(panicMsg)
	}
	if copyErr != nil {
		return copyErr
	}
	return r.LocalFileOperations.CopyDirectory(src, dst)
}

func (r *recordingFS) Copies() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copies
}

func (r *recordingFS) CompressFolder(path string) error {
	r.mu.Lock()
	compressErr := r.compressErr
	r.mu.Unlock()
	if compressErr != nil {
		return compressErr
	}
	return r.LocalFileOperations.CompressFolder(path)
}
