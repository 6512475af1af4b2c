package backupmgr

import (
	"log/slog"

	"github.com/google/uuid"
)

// Option customises a BackupManager at construction
type Option func(*BackupManager)

// WithFileOperations replaces the local filesystem implementation.
func WithFileOperations(fs FileOperations) Option {
	return func(m *BackupManager) {
		m.fs = fs
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(m *BackupManager) {
		m.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *BackupManager) {
		m.log = logger
	}
}

// WithIdentifier sets the identifier that tags every log line of this manager.
func WithIdentifier(identifier string) Option {
	return func(m *BackupManager) {
		m.identifier = identifier
	}
}

func newIdentifier() string {
	id := uuid.New()
	return "[BM" + id.String()[:6] + "]"
}

// Identifier returns the log tag of this manager instance.
func (m *BackupManager) Identifier() string {
	return m.identifier
}
