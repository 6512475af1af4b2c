package backupmgr

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/SteamServerUI/SaveBackupManager/logging"
	"github.com/fsnotify/fsnotify"
)

// fsWatcher watches the save root and every save folder below it
type fsWatcher struct {
	root    string
	watcher *fsnotify.Watcher
	events  chan fsnotify.Event
	errors  chan error
}

func newFsWatcher(root string) (*fsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(root); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		_ = watcher.Close()
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			_ = watcher.Add(filepath.Join(root, entry.Name()))
		}
	}

	return &fsWatcher{
		root:    root,
		watcher: watcher,
		events:  watcher.Events,
		errors:  watcher.Errors,
	}, nil
}

func (w *fsWatcher) add(path string) error {
	return w.watcher.Add(path)
}

func (w *fsWatcher) close() {
	_ = w.watcher.Close()
}

// settleTimer calls fire for a key once no touch arrived for wait. Every
// touch restarts the wait of its key.
type settleTimer struct {
	wait time.Duration
	fire func(string)

	mu      sync.Mutex
	timers  map[string]*time.Timer
	gen     map[string]uint64
	stopped bool
}

func newSettleTimer(wait time.Duration, fire func(string)) *settleTimer {
	return &settleTimer{
		wait:   wait,
		fire:   fire,
		timers: make(map[string]*time.Timer),
		gen:    make(map[string]uint64),
	}
}

func (s *settleTimer) touch(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.gen[key]++
	gen := s.gen[key]
	s.timers[key] = time.AfterFunc(s.wait, func() {
		s.mu.Lock()
		// a later touch or stop supersedes this timer
		current := !s.stopped && s.gen[key] == gen
		if current {
			delete(s.timers, key)
			delete(s.gen, key)
		}
		s.mu.Unlock()
		if current {
			s.fire(key)
		}
	})
}

func (s *settleTimer) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}

// watchSaves turns writes of the save file inside a save folder into
// OnPersisted calls once the file was quiet for save_settle_time, and follows
// newly created save folders.
func (m *BackupManager) watchSaves(bridge *HostBridge) {
	defer m.wg.Done()

	m.mu.Lock()
	w := m.watcher
	m.mu.Unlock()
	if w == nil {
		return
	}

	m.log.Debug("starting save watcher", "root", w.root, "settle", m.config.SaveSettleTime)
	defer m.log.Info("save watcher stopped")

	settle := newSettleTimer(m.config.SaveSettleTime, bridge.OnPersisted)
	defer settle.stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case event, ok := <-w.events:
			if !ok {
				return
			}
			if isNewSaveFolder(w.root, event) {
				if err := w.add(event.Name); err != nil {
					m.log.Error("failed to watch new save folder", "folder", event.Name, "error", err)
				}
				continue
			}
			if name, ok := persistedSetName(w.root, m.config.SaveFileName, event); ok {
				m.log.Log(m.ctx, logging.LevelTrace, "save file written", "set", name)
				settle.touch(name)
			}
		case err, ok := <-w.errors:
			if !ok {
				return
			}
			m.log.Error("save watcher error", "error", err)
		}
	}
}

func isNewSaveFolder(root string, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) || filepath.Dir(event.Name) != filepath.Clean(root) {
		return false
	}
	stat, err := os.Stat(event.Name)
	return err == nil && stat.IsDir()
}

// persistedSetName maps a write of <root>/<set>/<saveFile> onto the set name.
func persistedSetName(root, saveFile string, event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if filepath.Base(event.Name) != saveFile {
		return "", false
	}
	folder := filepath.Dir(event.Name)
	if filepath.Dir(folder) != filepath.Clean(root) {
		return "", false
	}
	return filepath.Base(folder), true
}
