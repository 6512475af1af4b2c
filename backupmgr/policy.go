package backupmgr

import (
	"log/slog"
	"time"

	"github.com/SteamServerUI/SaveBackupManager/config"
)

// Decision is the outcome of the interval trigger policy
type Decision int

const (
	DecisionSkip Decision = iota
	DecisionBackup
	DecisionDisabled
	DecisionDuplicate
	DecisionOnQuit
)

func (d Decision) String() string {
	switch d {
	case DecisionBackup:
		return "backup"
	case DecisionDisabled:
		return "disabled"
	case DecisionDuplicate:
		return "duplicate"
	case DecisionOnQuit:
		return "on-quit"
	default:
		return "skip"
	}
}

// intervalThresholds maps fixed interval modes onto the minimum elapsed time.
var intervalThresholds = map[config.BackupInterval]time.Duration{
	config.IntervalTenMin:    10 * time.Minute,
	config.IntervalThirtyMin: 30 * time.Minute,
	config.IntervalHour:      time.Hour,
	config.IntervalTwoHours:  2 * time.Hour,
	config.IntervalFourHours: 4 * time.Hour,
	config.IntervalDay:       24 * time.Hour,
	config.IntervalWeek:      7 * 24 * time.Hour,
}

// Decide maps the time since the last backup and the configured interval onto
// a decision. An unknown interval backs up on every save.
func Decide(cfg *config.Config, elapsed time.Duration, log *slog.Logger) Decision {
	if cfg.Disabled {
		return DecisionDisabled
	}
	// the same save event fired twice within one second
	if elapsed.Truncate(time.Second) <= 0 {
		return DecisionDuplicate
	}

	switch cfg.BackupInterval {
	case config.IntervalEachSave:
		return DecisionBackup
	case config.IntervalOnQuit:
		return DecisionOnQuit
	case config.IntervalCustom:
		return threshold(elapsed, time.Duration(cfg.CustomBackupInterval)*time.Minute)
	}

	if limit, ok := intervalThresholds[cfg.BackupInterval]; ok {
		return threshold(elapsed, limit)
	}

	log.Error("invalid backup interval ignored; backup is done each save", "interval", cfg.BackupInterval)
	return DecisionBackup
}

func threshold(elapsed, limit time.Duration) Decision {
	if elapsed >= limit {
		return DecisionBackup
	}
	return DecisionSkip
}
