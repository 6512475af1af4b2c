package backupmgr

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SetOptions carries the collaborators a BackupSet works through
type SetOptions struct {
	FS         FileOperations
	Clock      Clock
	Logger     *slog.Logger
	Compress   bool
	MaxBackups int
}

// BackupSet is one named save series and its backup archive on disk
type BackupSet struct {
	name         string
	saveFolder   string
	backupFolder string
	opts         SetOptions

	mu      sync.RWMutex
	time    time.Time
	backups []string
}

func NewBackupSet(name, saveFolder, backupFolder string, opts SetOptions) *BackupSet {
	if opts.FS == nil {
		opts.FS = LocalFileOperations{}
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Logger = opts.Logger.With("set", name)
	return &BackupSet{
		name:         name,
		saveFolder:   saveFolder,
		backupFolder: backupFolder,
		opts:         opts,
	}
}

func (s *BackupSet) Name() string         { return s.name }
func (s *BackupSet) SaveFolder() string   { return s.saveFolder }
func (s *BackupSet) BackupFolder() string { return s.backupFolder }

// Time returns the instant of the last backup, zero if there never was one.
func (s *BackupSet) Time() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.time
}

// Backups returns the backup identifiers, oldest first.
func (s *BackupSet) Backups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.backups...)
}

func (s *BackupSet) String() string {
	return fmt.Sprintf("%s (%d backups)", s.name, len(s.Backups()))
}

// ScanBackups rebuilds the identifier list from the archive folder. Slots
// without the backup.ok marker are unfinished and left out. On failure the
// previous list is kept.
func (s *BackupSet) ScanBackups() {
	names, err := s.opts.FS.ListDirectories(s.backupFolder)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.mu.Lock()
			s.backups = nil
			s.mu.Unlock()
			return
		}
		s.opts.Logger.Error("failed to scan backups", "folder", s.backupFolder, "error", err)
		return
	}

	var backups []string
	var newest time.Time
	for _, name := range names {
		if !s.opts.FS.FileExists(filepath.Join(s.backupFolder, name, MarkerBackupOK)) {
			s.opts.Logger.Debug("ignoring unfinished backup slot", "slot", name)
			continue
		}
		backups = append(backups, name)
		if t, ok := parseSlotTime(name); ok && t.After(newest) {
			newest = t
		}
	}
	sort.Slice(backups, func(i, j int) bool {
		return slotLess(backups[i], backups[j])
	})

	s.mu.Lock()
	s.backups = backups
	if newest.After(s.time) {
		s.time = newest
	}
	s.mu.Unlock()
}

// Latest returns the path of the newest backup slot.
func (s *BackupSet) Latest() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.backups) == 0 {
		return "", false
	}
	return filepath.Join(s.backupFolder, s.backups[len(s.backups)-1]), true
}

// Backup snapshots the live save folder into a new slot. backup.ok is the
// last file written and a failed attempt removes its slot again, so earlier
// slots are never touched.
func (s *BackupSet) Backup() error {
	if !s.opts.FS.DirectoryExists(s.saveFolder) {
		return ioFailure("backup", s.name, fmt.Errorf("save folder %s does not exist", s.saveFolder))
	}

	now := s.opts.Clock.Now()
	slot := s.freeSlotName(now)
	target := filepath.Join(s.backupFolder, slot)
	s.opts.Logger.Info("backing up save game", "slot", slot)

	if err := s.fillSlot(target); err != nil {
		if derr := s.opts.FS.DeleteDirectory(target); derr != nil {
			s.opts.Logger.Error("failed to remove incomplete backup slot", "slot", slot, "error", derr)
		}
		return ioFailure("backup", s.name, err)
	}

	s.mu.Lock()
	s.time = now
	s.mu.Unlock()

	s.ScanBackups()
	s.enforceRetention()
	return nil
}

// fillSlot copies the live folder into target and marks it finished.
func (s *BackupSet) fillSlot(target string) error {
	if err := s.opts.FS.CopyDirectory(s.saveFolder, target); err != nil {
		return err
	}
	// a restored live folder carries this marker; the slot must not
	if marker := filepath.Join(target, MarkerRestored); s.opts.FS.FileExists(marker) {
		if err := s.opts.FS.DeleteFile(marker); err != nil {
			return err
		}
	}
	if s.opts.Compress {
		if err := s.opts.FS.CompressFolder(target); err != nil {
			return err
		}
	}
	return s.opts.FS.CreateFile(filepath.Join(target, MarkerBackupOK))
}

// Restore copies a backup slot over the live save folder. An empty id
// restores the newest slot.
func (s *BackupSet) Restore(id string) error {
	if id == "" {
		latest, ok := s.Latest()
		if !ok {
			return preconditionFailed("restore", s.name, "no backups to restore")
		}
		id = filepath.Base(latest)
	}
	if !validSlotName(id) {
		return preconditionFailed("restore", s.name, "invalid backup name '%s'", id)
	}
	source := filepath.Join(s.backupFolder, id)
	if !s.opts.FS.DirectoryExists(source) {
		return preconditionFailed("restore", s.name, "backup '%s' does not exist", id)
	}

	s.opts.Logger.Warn("restoring save game", "slot", id)
	if err := s.opts.FS.CopyDirectory(source, s.saveFolder); err != nil {
		return ioFailure("restore", s.name, err)
	}
	if !s.opts.FS.DecompressFolder(s.saveFolder) {
		return ioFailure("restore", s.name, fmt.Errorf("failed to decompress %s", s.saveFolder))
	}
	if marker := filepath.Join(s.saveFolder, MarkerBackupOK); s.opts.FS.FileExists(marker) {
		if err := s.opts.FS.DeleteFile(marker); err != nil {
			return ioFailure("restore", s.name, err)
		}
	}
	if err := s.opts.FS.CreateFile(filepath.Join(s.saveFolder, MarkerRestored)); err != nil {
		return ioFailure("restore", s.name, err)
	}
	return nil
}

// Delete erases the whole backup archive of this set.
func (s *BackupSet) Delete() error {
	s.opts.Logger.Warn("erasing backup archive", "folder", s.backupFolder)
	if err := s.opts.FS.DeleteDirectory(s.backupFolder); err != nil {
		return ioFailure("delete", s.name, err)
	}
	s.mu.Lock()
	s.backups = nil
	s.mu.Unlock()
	return nil
}

// DeleteBackup erases one backup slot.
func (s *BackupSet) DeleteBackup(id string) error {
	if !validSlotName(id) {
		return preconditionFailed("delete backup", s.name, "invalid backup name '%s'", id)
	}
	if err := s.opts.FS.DeleteDirectory(filepath.Join(s.backupFolder, id)); err != nil {
		return ioFailure("delete backup", s.name, err)
	}
	s.ScanBackups()
	return nil
}

func (s *BackupSet) enforceRetention() {
	if s.opts.MaxBackups <= 0 {
		return
	}
	backups := s.Backups()
	excess := len(backups) - s.opts.MaxBackups
	for i := 0; i < excess; i++ {
		s.opts.Logger.Info("removing old backup", "slot", backups[i])
		if err := s.opts.FS.DeleteDirectory(filepath.Join(s.backupFolder, backups[i])); err != nil {
			s.opts.Logger.Error("failed to remove old backup", "slot", backups[i], "error", err)
		}
	}
	if excess > 0 {
		s.ScanBackups()
	}
}

func (s *BackupSet) freeSlotName(now time.Time) string {
	base := now.Local().Format(SlotTimeFormat)
	name := base
	for i := 1; s.opts.FS.DirectoryExists(filepath.Join(s.backupFolder, name)); i++ {
		name = base + "-" + strconv.Itoa(i)
	}
	return name
}

func validSlotName(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// splitSlot splits "20240101120000-2" into its timestamp and suffix.
func splitSlot(name string) (string, int) {
	base, suffix, found := strings.Cut(name, "-")
	if !found {
		return base, 0
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return name, 0
	}
	return base, n
}

func parseSlotTime(name string) (time.Time, bool) {
	base, _ := splitSlot(name)
	t, err := time.ParseInLocation(SlotTimeFormat, base, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func slotLess(a, b string) bool {
	baseA, nA := splitSlot(a)
	baseB, nB := splitSlot(b)
	if baseA != baseB {
		return baseA < baseB
	}
	return nA < nB
}
