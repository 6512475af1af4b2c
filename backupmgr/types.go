package backupmgr

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SteamServerUI/SaveBackupManager/config"
	"github.com/robfig/cron/v3"
)

const (
	// restoreMinDuration keeps the "restoring" state visible to the host
	// even when the copy finishes instantly.
	restoreMinDuration = 2 * time.Second
	// idleWait is how long a worker sleeps when its queue is empty.
	idleWait = time.Second
	// pollWait is the poll interval of the handshake and queue drains.
	pollWait = 100 * time.Millisecond
	// monitorWait is the period of the lifecycle monitor.
	monitorWait = time.Second

	// SlotTimeFormat names backup slots; the layout must stay stable for existing archives.
	SlotTimeFormat = "20060102150405"

	// MarkerBackupOK is written last into a finished backup slot.
	MarkerBackupOK = "backup.ok"
	// MarkerRestored is written into a live save folder after a restore.
	MarkerRestored = "backup.restored"
)

// reservedSaveNames are built-in game folders that are never backed up.
var reservedSaveNames = map[string]bool{
	"training":  true,
	"scenarios": true,
}

// Clock supplies the scheduler's notion of now.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// BackupManager schedules and coordinates backups and restores of save sets
type BackupManager struct {
	config     *config.Config
	fs         FileOperations
	clock      Clock
	log        *slog.Logger
	identifier string

	mu           sync.Mutex
	sets         map[string]*BackupSet
	names        []string
	restoredGame string
	persisted    []string // pending trigger evaluations, in arrival order

	backupQueue  *JobQueue[BackupJob]
	restoreQueue *JobQueue[RestoreJob]

	// flagMu makes "mark incomplete" and "settle" atomic with respect to
	// the queue and the in-flight count.
	flagMu   sync.Mutex
	inFlight int

	allBackupsCompleted atomic.Bool
	restoreCompleted    atomic.Bool
	stopRequested       atomic.Bool
	workersEnabled      atomic.Bool
	backupWorkRunning   atomic.Bool
	restoreWorkRunning  atomic.Bool
	started             atomic.Bool

	// execMu serialises job execution; no two jobs touch the disk at once.
	execMu sync.Mutex

	loop *loop

	watcher *fsWatcher
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}
