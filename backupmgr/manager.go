package backupmgr

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/SteamServerUI/SaveBackupManager/config"
	"github.com/SteamServerUI/SaveBackupManager/logging"
)

/*
The BackupManager owns the backup and restore queues, the known save sets and
a cooperative loop. Queue draining, trigger evaluation and the save handshake
all run as loop tasks; the host (or Run) drives the loop by calling Tick.
Backups requested from other goroutines either run in place under execMu or
are queued for the backup worker task.
*/

// NewBackupManager creates a new BackupManager instance
func NewBackupManager(cfg *config.Config, opts ...Option) *BackupManager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &BackupManager{
		config:       cfg,
		fs:           LocalFileOperations{},
		clock:        systemClock{},
		log:          logging.L(),
		identifier:   newIdentifier(),
		sets:         make(map[string]*BackupSet),
		backupQueue:  NewJobQueue(NoBackupJob),
		restoreQueue: NewJobQueue(NoRestoreJob),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With("manager", m.identifier)
	m.loop = newLoop(m.clock, m.log)

	m.allBackupsCompleted.Store(true)
	m.restoreCompleted.Store(true)
	m.workersEnabled.Store(true)
	return m
}

// Initialize waits until the save root exists, then ensures the backup path exists.
// It returns a channel that signals when initialization is complete or an error occurs.
func (m *BackupManager) Initialize() <-chan error {
	result := make(chan error, 1)

	go func() {
		defer close(result)
		const timeout = 90 * time.Minute
		const pollInterval = 2500 * time.Millisecond
		deadline := time.Now().Add(timeout)

		for {
			stat, err := os.Stat(m.config.SaveRoot)
			if err == nil {
				if !stat.IsDir() {
					result <- fmt.Errorf("save root %s is not a directory", m.config.SaveRoot)
					return
				}
				m.log.Debug("found save root", "path", m.config.SaveRoot)
				break
			}
			if !os.IsNotExist(err) {
				result <- fmt.Errorf("error checking save root %s: %w", m.config.SaveRoot, err)
				return
			}
			if time.Now().After(deadline) {
				result <- fmt.Errorf("timeout waiting for save root %s to be created", m.config.SaveRoot)
				return
			}

			m.log.Debug("waiting for save root to be created by the game server", "path", m.config.SaveRoot)
			select {
			case <-m.ctx.Done():
				result <- fmt.Errorf("initialization cancelled: %w", m.ctx.Err())
				return
			case <-time.After(pollInterval):
			}
		}

		if err := os.MkdirAll(m.config.BackupPath, os.ModePerm); err != nil {
			result <- fmt.Errorf("error creating backup path %s: %w", m.config.BackupPath, err)
			return
		}
		m.log.Debug("backup path ready", "path", m.config.BackupPath)
		result <- nil
	}()

	return result
}

// Start scans the save sets and spawns the monitor and worker tasks. Calling
// it again is a no-op.
func (m *BackupManager) Start() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	m.log.Info("starting backup/restore workers")
	m.ScanSavegames()
	m.loop.spawn("monitor", m.monitorStep)
	m.startWorkers()
}

// Launch is the plugin entry: it waits for the save root, starts the loop on
// its own goroutine and attaches the save watcher and the cron schedule.
func (m *BackupManager) Launch() error {
	if err := ValidateSchedule(m.config.BackupAllCron); err != nil {
		return err
	}

	m.log.Debug("waiting for save folder initialization")
	if err := <-m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize backup manager: %w", err)
	}

	m.Start()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop.run(m.ctx, m.config.TickInterval)
	}()

	watcher, err := newFsWatcher(m.config.SaveRoot)
	if err != nil {
		return fmt.Errorf("failed to create save watcher: %w", err)
	}
	m.mu.Lock()
	m.watcher = watcher
	m.mu.Unlock()
	m.wg.Add(1)
	go m.watchSaves(NewHostBridge(m))

	if err := m.startCron(); err != nil {
		return err
	}

	m.log.Info("backup manager instance started")
	return nil
}

// Tick runs one pass of the cooperative loop and returns the number of task steps executed.
func (m *BackupManager) Tick() int {
	return m.loop.Tick()
}

// Run drives the loop until ctx is cancelled.
func (m *BackupManager) Run(ctx context.Context) {
	m.loop.run(ctx, m.config.TickInterval)
}

// Stop asks the workers to exit at their next step. Running jobs finish.
func (m *BackupManager) Stop() {
	if m.stopRequested.CompareAndSwap(false, true) {
		m.log.Info("stopping backup/restore workers")
	}
}

// SetWorkersEnabled switches the queue workers on (idle session) or off.
func (m *BackupManager) SetWorkersEnabled(enabled bool) {
	m.workersEnabled.Store(enabled)
}

func (m *BackupManager) startWorkers() {
	m.stopRequested.Store(false)
	if m.backupWorkRunning.CompareAndSwap(false, true) {
		m.log.Info("backup worker running")
		m.loop.spawn("backup-worker", m.backupWorkStep)
	}
	if m.restoreWorkRunning.CompareAndSwap(false, true) {
		m.log.Info("restore worker running")
		m.loop.spawn("restore-worker", m.restoreWorker())
	}
}

// monitorStep arms pending trigger evaluations and keeps the workers in line
// with the session state.
func (m *BackupManager) monitorStep(time.Time) (time.Duration, bool) {
	for _, name := range m.takePersisted() {
		m.loop.spawn("trigger "+name, m.triggerStep(name))
	}
	if m.workersEnabled.Load() {
		m.startWorkers()
	} else {
		m.Stop()
	}
	return monitorWait, false
}

func (m *BackupManager) backupWorkStep(time.Time) (time.Duration, bool) {
	if m.stopRequested.Load() {
		m.backupWorkRunning.Store(false)
		m.log.Info("backup worker terminated")
		return 0, true
	}
	if !m.runQueuedBackup() {
		return idleWait, false
	}
	return 0, false
}

// restoreWorker returns the restore worker step. After each job it sleeps the
// minimum restore duration before the completion flag is settled.
func (m *BackupManager) restoreWorker() stepFunc {
	settle := false
	return func(time.Time) (time.Duration, bool) {
		if settle {
			settle = false
			m.restoreCompleted.Store(m.restoreQueue.Size() == 0)
		}
		if m.stopRequested.Load() {
			m.restoreWorkRunning.Store(false)
			m.log.Info("restore worker terminated")
			return 0, true
		}
		job := m.restoreQueue.Dequeue()
		if job.IsNoJob() {
			return idleWait, false
		}
		m.log.Info("executing " + job.String())
		_ = m.execute("restore", job.Set(), job.Restore)
		settle = true
		return restoreMinDuration, false
	}
}

// runQueuedBackup runs the head of the backup queue, if any.
func (m *BackupManager) runQueuedBackup() bool {
	m.flagMu.Lock()
	job := m.backupQueue.Dequeue()
	if job.IsNoJob() {
		m.flagMu.Unlock()
		return false
	}
	m.inFlight++
	m.flagMu.Unlock()

	defer m.endBackup()
	m.log.Info("executing " + job.String())
	_ = m.execute("backup", job.Set(), job.Backup)
	return true
}

func (m *BackupManager) beginBackup() {
	m.flagMu.Lock()
	defer m.flagMu.Unlock()
	m.inFlight++
	m.allBackupsCompleted.Store(false)
}

func (m *BackupManager) enqueueBackup(job BackupJob) {
	m.flagMu.Lock()
	defer m.flagMu.Unlock()
	m.allBackupsCompleted.Store(false)
	m.backupQueue.Enqueue(job)
}

// endBackup settles allBackupsCompleted: true only with an empty queue and
// nothing in flight.
func (m *BackupManager) endBackup() {
	m.flagMu.Lock()
	defer m.flagMu.Unlock()
	m.inFlight--
	m.allBackupsCompleted.Store(m.inFlight == 0 && m.backupQueue.Size() == 0)
}

// execute runs one job under the execution lock. Panics from the file layer
// are turned into IO failures so the loop keeps running.
func (m *BackupManager) execute(op string, set *BackupSet, fn func() error) (err error) {
	m.execMu.Lock()
	defer m.execMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = ioFailure(op, set.Name(), fmt.Errorf("panic: %v", r))
		}
		if err != nil {
			m.log.Error(op+" failed", "set", set.Name(), "error", err)
		}
	}()
	return fn()
}

// Shutdown stops all backup operations
func (m *BackupManager) Shutdown() {
	m.log.Info("shutting down backup manager")
	m.Stop()

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.watcher != nil {
		m.watcher.close()
		m.watcher = nil
		m.log.Info("save watcher closed")
	}
	c := m.cron
	m.cron = nil
	m.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}

	m.log.Info("waiting for background tasks to complete")
	m.wg.Wait()
	m.log.Info("backup manager shut down completely")
}
