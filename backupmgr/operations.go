package backupmgr

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"time"
)

// ScanSavegames adds a backup set for every save folder and every backup
// archive that is not known yet. Enumeration failures are logged and the
// sets found so far are kept.
func (m *BackupManager) ScanSavegames() {
	m.log.Info("scanning save games")

	saves, err := m.fs.ListDirectories(m.config.SaveRoot)
	if err != nil {
		m.logScanError("failed to scan save games", m.config.SaveRoot, err)
	}
	for _, name := range saves {
		if m.isBackupRoot(name) {
			continue
		}
		if m.BackupSet(name) == nil {
			m.log.Debug("adding backup set", "set", name)
			_, _ = m.addBackupSet(name)
		}
	}

	// archives whose save game folder was deleted
	archives, err := m.fs.ListDirectories(m.config.BackupPath)
	if err != nil {
		m.logScanError("failed to scan backup archives", m.config.BackupPath, err)
	}
	for _, name := range archives {
		if m.BackupSet(name) == nil {
			m.log.Debug("adding backup set (save game was deleted)", "set", name)
			_, _ = m.addBackupSet(name)
		}
	}
}

// logScanError keeps a not yet created folder out of the error log.
func (m *BackupManager) logScanError(msg, path string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		m.log.Debug(msg, "path", path, "error", err)
		return
	}
	m.log.Error(msg, "path", path, "error", err)
}

func (m *BackupManager) isBackupRoot(name string) bool {
	return filepath.Clean(filepath.Join(m.config.SaveRoot, name)) == filepath.Clean(m.config.BackupPath)
}

func (m *BackupManager) newBackupSet(name string) *BackupSet {
	return NewBackupSet(name,
		filepath.Join(m.config.SaveRoot, name),
		filepath.Join(m.config.BackupPath, name),
		SetOptions{
			FS:         m.fs,
			Clock:      m.clock,
			Logger:     m.log,
			Compress:   m.config.Compress,
			MaxBackups: m.config.MaxBackupsPerSet,
		})
}

// validSetName reports whether name is a plain folder name directly below the
// save root, so neither the live folder nor the archive can leave their roots.
func (m *BackupManager) validSetName(name string) bool {
	if !validSlotName(name) {
		return false
	}
	root := filepath.Clean(m.config.SaveRoot)
	return filepath.Dir(filepath.Join(root, name)) == root
}

// addBackupSet registers a set for name. The name must be valid, not reserved
// or excluded, and a live save folder or a backup archive must exist for it.
func (m *BackupManager) addBackupSet(name string) (*BackupSet, error) {
	const op = "add set"
	if !m.validSetName(name) {
		m.log.Warn("rejecting invalid save game name", "set", name)
		return nil, preconditionFailed(op, name, "invalid save game name '%s'", name)
	}
	if reservedSaveNames[name] || m.config.IsExcluded(name) {
		m.log.Debug("save game is built in or excluded and ignored", "set", name)
		return nil, preconditionFailed(op, name, "save game is built in or excluded")
	}
	set := m.newBackupSet(name)
	if !m.fs.DirectoryExists(set.SaveFolder()) && !m.fs.DirectoryExists(set.BackupFolder()) {
		m.log.Debug("no save game folder or backup archive", "set", name)
		return nil, unknownSet(op, name)
	}
	set.ScanBackups()

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sets[name]; ok {
		return existing, nil
	}
	m.sets[name] = set
	m.rebuildNames()
	return set, nil
}

// rebuildNames keeps the sorted name array in step with the set map. Callers hold m.mu.
func (m *BackupManager) rebuildNames() {
	names := make([]string, 0, len(m.sets))
	for name := range m.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	m.names = names
}

// BackupSet returns the set with the given name, or nil.
func (m *BackupManager) BackupSet(name string) *BackupSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets[name]
}

// BackupSets returns all known sets sorted by name.
func (m *BackupManager) BackupSets() []*BackupSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	sets := make([]*BackupSet, 0, len(m.names))
	for _, name := range m.names {
		sets = append(sets, m.sets[name])
	}
	return sets
}

// BackupSetNames returns the sorted display names of all known sets.
func (m *BackupManager) BackupSetNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.names...)
}

func (m *BackupManager) NumberOfBackupSets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sets)
}

// BackupGame backs up a set. In synchronous mode the job runs before
// BackupGame returns; with forceAsync or the asynchronous setting it is
// queued for the backup worker.
func (m *BackupManager) BackupGame(set *BackupSet, forceAsync bool) BackupJob {
	job, _ := m.backupGame(set, forceAsync)
	return job
}

// backupGame is BackupGame that also reports the outcome of a synchronous run.
func (m *BackupManager) backupGame(set *BackupSet, forceAsync bool) (BackupJob, error) {
	job := NewBackupJob(set)
	if forceAsync || m.config.Asynchronous {
		m.log.Info("adding backup job", "set", set.Name(), "queued", m.backupQueue.Size())
		m.enqueueBackup(job)
		return job, nil
	}

	m.log.Info("synchronous backup", "set", set.Name())
	m.beginBackup()
	defer m.endBackup()
	return job, m.execute("backup", set, job.Backup)
}

// BackupGameByName backs up the named save game, registering its set first if
// needed. Unknown or invalid names and failed synchronous backups are errors.
func (m *BackupManager) BackupGameByName(name string) (BackupJob, error) {
	set := m.BackupSet(name)
	if set == nil {
		var err error
		if set, err = m.addBackupSet(name); err != nil {
			return NoBackupJob, err
		}
	}
	return m.backupGame(set, false)
}

// BackupAll queues a backup of every known set and returns how many were queued.
func (m *BackupManager) BackupAll() int {
	m.log.Info("creating backup of all save games")
	count := 0
	for _, set := range m.BackupSets() {
		m.BackupGame(set, true)
		count++
	}
	return count
}

// RestoreGame restores backup from of the named set; an empty from restores
// the newest backup. The restore runs on the loop and RestoreCompleted turns
// true no earlier than two seconds after it ran.
func (m *BackupManager) RestoreGame(name, from string) error {
	set := m.BackupSet(name)
	if set == nil {
		m.log.Warn("no backup set found", "set", name)
		return unknownSet("restore", name)
	}

	m.restoreCompleted.Store(false)
	m.mu.Lock()
	m.restoredGame = name
	m.mu.Unlock()

	job := NewRestoreJob(set, from)
	m.log.Warn("restoring game", "set", name, "backup", from)

	if m.config.Asynchronous {
		m.log.Info("asynchronous restore", "set", name, "backup", from)
		m.restoreQueue.Enqueue(job)
		return nil
	}

	ran := false
	m.loop.spawn("restore "+name, func(time.Time) (time.Duration, bool) {
		if ran {
			m.restoreCompleted.Store(true)
			return 0, true
		}
		// queued restores go first
		if m.restoreQueue.Size() > 0 {
			return pollWait, false
		}
		m.log.Info("synchronous restore", "set", name, "backup", from)
		_ = m.execute("restore", set, job.Restore)
		ran = true
		return restoreMinDuration, false
	})
	return nil
}

// CloneGameFromBackup copies the newest backup of name into a new save game into.
func (m *BackupManager) CloneGameFromBackup(name, into string) error {
	const op = "clone from backup"
	m.log.Info("cloning game from backup", "set", name, "into", into)

	set := m.BackupSet(name)
	if set == nil {
		m.log.Error("cloning of game failed: no backup set found", "set", name)
		return unknownSet(op, name)
	}
	from, ok := set.Latest()
	if !ok || !m.fs.DirectoryExists(from) {
		m.log.Error("cloning of game failed: no backup folder to clone", "set", name)
		return preconditionFailed(op, name, "no backup to clone")
	}
	to, err := m.cloneTarget(op, m.config.SaveRoot, name, into)
	if err != nil {
		return err
	}

	err = m.execute(op, set, func() error {
		if err := m.fs.CopyDirectory(from, to); err != nil {
			return ioFailure(op, name, err)
		}
		if !m.fs.DecompressFolder(to) {
			m.log.Error("failed to decompress files", "folder", to)
		}
		for _, marker := range []string{MarkerBackupOK, MarkerRestored} {
			path := filepath.Join(to, marker)
			if m.fs.FileExists(path) {
				if err := m.fs.DeleteFile(path); err != nil {
					m.log.Warn("could not delete marker file", "file", path, "error", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.ScanSavegames()
	return nil
}

// CloneGame copies the live save folder of name into a new save game into.
func (m *BackupManager) CloneGame(name, into string) error {
	const op = "clone game"
	if !m.validSetName(name) {
		return preconditionFailed(op, name, "invalid save game name '%s'", name)
	}
	from := filepath.Join(m.config.SaveRoot, name)
	m.log.Info("cloning game", "from", from, "into", into)

	if !m.fs.DirectoryExists(from) {
		m.log.Error("cloning of game failed: no save game folder to clone", "set", name)
		return preconditionFailed(op, name, "no save game folder to clone")
	}
	to, err := m.cloneTarget(op, m.config.SaveRoot, name, into)
	if err != nil {
		return err
	}

	m.execMu.Lock()
	err = m.fs.CopyDirectory(from, to)
	m.execMu.Unlock()
	if err != nil {
		m.log.Error("cloning of game failed", "set", name, "error", err)
		return ioFailure(op, name, err)
	}
	m.ScanSavegames()
	return nil
}

// CloneBackup copies the whole backup archive of name into a new archive into.
func (m *BackupManager) CloneBackup(name, into string) error {
	const op = "clone backup"
	name = m.fs.GetFileName(name)
	m.log.Info("cloning backup", "set", name, "into", into)

	set := m.BackupSet(name)
	if set == nil {
		m.log.Error("cloning of backup failed: no backup set found", "set", name)
		return unknownSet(op, name)
	}
	from := filepath.Join(m.config.BackupPath, name)
	if !m.fs.DirectoryExists(from) {
		m.log.Error("cloning of backup failed: no backup folder to clone", "set", name)
		return preconditionFailed(op, name, "no backup folder to clone")
	}
	to, err := m.cloneTarget(op, m.config.BackupPath, name, into)
	if err != nil {
		return err
	}

	err = m.execute(op, set, func() error {
		if err := m.fs.CopyDirectory(from, to); err != nil {
			return ioFailure(op, name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if clone := m.BackupSet(into); clone != nil {
		clone.ScanBackups()
	} else {
		m.ScanSavegames()
	}
	return nil
}

// cloneTarget validates the clone destination name and that it does not exist.
func (m *BackupManager) cloneTarget(op, root, name, into string) (string, error) {
	if !validSlotName(into) {
		return "", preconditionFailed(op, name, "invalid target name '%s'", into)
	}
	to := filepath.Join(root, into)
	if m.fs.DirectoryExists(to) {
		m.log.Error("cloning failed: target folder exists", "target", to)
		return "", preconditionFailed(op, name, "target folder %s exists", to)
	}
	return to, nil
}

// DeleteBackup removes one backup of a set.
func (m *BackupManager) DeleteBackup(set *BackupSet, backup string) error {
	if set == nil || backup == "" {
		return nil
	}
	return m.execute("delete backup", set, func() error {
		return set.DeleteBackup(backup)
	})
}

// EraseBackupSet deletes the archive of set and forgets the set.
func (m *BackupManager) EraseBackupSet(set *BackupSet) error {
	if set == nil {
		return nil
	}
	if err := m.execute("erase", set, set.Delete); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets[set.Name()] == set {
		delete(m.sets, set.Name())
		m.rebuildNames()
	}
	return nil
}

// BackupsCompleted reports whether the queue is drained and no backup is running.
func (m *BackupManager) BackupsCompleted() bool {
	return m.backupQueue.Size() == 0 && m.allBackupsCompleted.Load()
}

func (m *BackupManager) RestoreCompleted() bool {
	return m.restoreCompleted.Load()
}

func (m *BackupManager) QueuedBackups() int {
	return m.backupQueue.Size()
}

// RestoredGame returns the name of the last restored set, or "none".
func (m *BackupManager) RestoredGame() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.restoredGame == "" {
		return "none"
	}
	return m.restoredGame
}
