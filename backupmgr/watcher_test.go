package backupmgr

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/SteamServerUI/SaveBackupManager/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistedSetName(t *testing.T) {
	root := filepath.Join("saves")
	tests := []struct {
		name   string
		event  fsnotify.Event
		want   string
		wantOK bool
	}{
		{"write in save folder", fsnotify.Event{Name: filepath.Join(root, "career", "persistent.sfs"), Op: fsnotify.Write}, "career", true},
		{"create in save folder", fsnotify.Event{Name: filepath.Join(root, "career", "persistent.sfs"), Op: fsnotify.Create}, "career", true},
		{"remove is ignored", fsnotify.Event{Name: filepath.Join(root, "career", "persistent.sfs"), Op: fsnotify.Remove}, "", false},
		{"other file", fsnotify.Event{Name: filepath.Join(root, "career", "quicksave.sfs"), Op: fsnotify.Write}, "", false},
		{"nested too deep", fsnotify.Event{Name: filepath.Join(root, "career", "Ships", "persistent.sfs"), Op: fsnotify.Write}, "", false},
		{"directly in root", fsnotify.Event{Name: filepath.Join(root, "persistent.sfs"), Op: fsnotify.Write}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := persistedSetName(root, "persistent.sfs", tt.event)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsNewSaveFolder(t *testing.T) {
	root := t.TempDir()
	folder := filepath.Join(root, "career")
	require.NoError(t, os.Mkdir(folder, 0755))
	file := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	assert.True(t, isNewSaveFolder(root, fsnotify.Event{Name: folder, Op: fsnotify.Create}))
	assert.False(t, isNewSaveFolder(root, fsnotify.Event{Name: folder, Op: fsnotify.Write}))
	assert.False(t, isNewSaveFolder(root, fsnotify.Event{Name: file, Op: fsnotify.Create}))
	assert.False(t, isNewSaveFolder(root, fsnotify.Event{Name: filepath.Join(folder, "Ships"), Op: fsnotify.Create}))
}

func TestSettleTimerWaitsForQuietPeriod(t *testing.T) {
	var mu sync.Mutex
	var fired []string
	settle := newSettleTimer(150*time.Millisecond, func(name string) {
		mu.Lock()
		defer mu.Unlock()
		fired = append(fired, name)
	})
	defer settle.stop()
	firedNames := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), fired...)
	}

	settle.touch("A")
	time.Sleep(50 * time.Millisecond)
	settle.touch("A")
	settle.touch("B")

	assert.Never(t, func() bool { return len(firedNames()) > 0 }, 80*time.Millisecond, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(firedNames()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"A", "B"}, firedNames())

	time.Sleep(200 * time.Millisecond)
	assert.Len(t, firedNames(), 2, "each key fires once per quiet period")
}

func TestSettleTimerStopDropsPending(t *testing.T) {
	fired := make(chan string, 1)
	settle := newSettleTimer(20*time.Millisecond, func(name string) { fired <- name })

	settle.touch("A")
	settle.stop()
	settle.touch("B")

	select {
	case name := <-fired:
		t.Fatalf("%s fired after stop", name)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLaunchBacksUpSaveFileWrittenInChunks(t *testing.T) {
	cfg := testConfig(t)
	cfg.TickInterval = 20 * time.Millisecond
	cfg.SaveSettleTime = 400 * time.Millisecond
	live := makeSave(t, cfg, "career", "v1")

	m := NewBackupManager(cfg, WithLogger(logging.Discard()))
	require.NoError(t, m.Launch())
	t.Cleanup(m.Shutdown)

	set := m.BackupSet("career")
	require.NotNil(t, set)

	f, err := os.Create(filepath.Join(live, cfg.SaveFileName))
	require.NoError(t, err)
	_, err = f.WriteString("GAME { part = 1 }\n")
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	time.Sleep(150 * time.Millisecond)
	_, err = f.WriteString("GAME { part = 2 }\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		return len(set.Backups()) > 0
	}, 10*time.Second, 50*time.Millisecond)
	latest, _ := set.Latest()
	assert.Equal(t, "GAME { part = 1 }\nGAME { part = 2 }\n", readFile(t, filepath.Join(latest, cfg.SaveFileName)))
	assert.Len(t, set.Backups(), 1)
}

func TestLaunchRunsBackupAllSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.TickInterval = 20 * time.Millisecond
	cfg.BackupAllCron = "@every 1s"
	makeSave(t, cfg, "a", "1")
	makeSave(t, cfg, "b", "2")

	m := NewBackupManager(cfg, WithLogger(logging.Discard()))
	require.NoError(t, m.Launch())
	t.Cleanup(m.Shutdown)

	require.Eventually(t, func() bool {
		return len(m.BackupSet("a").Backups()) > 0 && len(m.BackupSet("b").Backups()) > 0
	}, 10*time.Second, 50*time.Millisecond)
}

func TestLaunchRejectsBadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.BackupAllCron = "whenever"

	m := NewBackupManager(cfg, WithLogger(logging.Discard()))
	err := m.Launch()
	t.Cleanup(m.Shutdown)
	assert.Error(t, err)
	assert.False(t, m.started.Load(), "nothing starts with a bad schedule")
	assert.Equal(t, 0, m.loop.Pending())
}
