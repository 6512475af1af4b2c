package backupmgr

import (
	"slices"
	"time"
)

// armTrigger records that a save set was persisted. The monitor picks it up on
// its next step; repeated events for one set before that collapse into one.
func (m *BackupManager) armTrigger(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.persisted, name) {
		m.persisted = append(m.persisted, name)
	}
}

// takePersisted returns the armed set names in arrival order and clears them.
func (m *BackupManager) takePersisted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := m.persisted
	m.persisted = nil
	return names
}

// triggerStep evaluates the interval policy for one persisted save set. The
// decision is taken on the first step; a backup then waits for queued
// backups to drain before it runs.
func (m *BackupManager) triggerStep(name string) stepFunc {
	var set *BackupSet
	decided := false

	return func(now time.Time) (time.Duration, bool) {
		if !decided {
			decided = true
			set = m.BackupSet(name)
			if set == nil {
				var err error
				if set, err = m.addBackupSet(name); err != nil {
					m.log.Warn("ignoring save event", "set", name, "error", err)
					return 0, true
				}
			}

			elapsed := now.Sub(set.Time())
			decision := Decide(m.config, elapsed, m.log)
			m.log.Debug("backup trigger evaluated", "set", name, "elapsed", elapsed.Truncate(time.Second), "interval", m.config.BackupInterval, "decision", decision)
			switch decision {
			case DecisionBackup:
			case DecisionDisabled:
				m.log.Info("backup disabled")
				return 0, true
			case DecisionDuplicate:
				m.log.Info("backup already done", "set", name)
				return 0, true
			case DecisionOnQuit:
				m.log.Debug("backups are done on quit", "set", name)
				return 0, true
			default:
				return 0, true
			}
		}

		if m.drainStep() {
			return pollWait, false
		}
		m.BackupGame(set, false)
		return 0, true
	}
}

// drainStep makes progress on queued asynchronous backups. It reports true
// while the queue is not empty. With the backup worker stopped the head job
// runs inline so a waiter can never wait on a queue nobody drains.
func (m *BackupManager) drainStep() bool {
	if m.backupQueue.Size() == 0 {
		return false
	}
	if !m.backupWorkRunning.Load() {
		m.runQueuedBackup()
	}
	return m.backupQueue.Size() > 0
}

// WaitUntilAllCompleted returns a channel that is closed once every pending
// backup has finished. The wait is a loop task that polls every 100ms.
func (m *BackupManager) WaitUntilAllCompleted() <-chan struct{} {
	done := make(chan struct{})
	if m.allBackupsCompleted.Load() {
		close(done)
		return done
	}

	m.log.Debug("waiting for backups to complete")
	m.loop.spawn("wait-completed", func(time.Time) (time.Duration, bool) {
		m.drainStep()
		if m.allBackupsCompleted.Load() {
			m.log.Debug("all backups completed")
			close(done)
			return 0, true
		}
		return pollWait, false
	})
	return done
}
