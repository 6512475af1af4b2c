package backupmgr

import (
	"testing"
	"time"

	"github.com/SteamServerUI/SaveBackupManager/config"
	"github.com/SteamServerUI/SaveBackupManager/logging"
	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		interval config.BackupInterval
		custom   int
		disabled bool
		elapsed  time.Duration
		want     Decision
	}{
		{"each save", config.IntervalEachSave, 0, false, time.Second, DecisionBackup},
		{"hour not reached", config.IntervalHour, 0, false, 59 * time.Minute, DecisionSkip},
		{"hour reached", config.IntervalHour, 0, false, 60 * time.Minute, DecisionBackup},
		{"10 min", config.IntervalTenMin, 0, false, 10 * time.Minute, DecisionBackup},
		{"30 min not reached", config.IntervalThirtyMin, 0, false, 29 * time.Minute, DecisionSkip},
		{"2 hours", config.IntervalTwoHours, 0, false, 2 * time.Hour, DecisionBackup},
		{"4 hours not reached", config.IntervalFourHours, 0, false, 3 * time.Hour, DecisionSkip},
		{"day", config.IntervalDay, 0, false, 24 * time.Hour, DecisionBackup},
		{"week not reached", config.IntervalWeek, 0, false, 6 * 24 * time.Hour, DecisionSkip},
		{"custom reached", config.IntervalCustom, 45, false, 45 * time.Minute, DecisionBackup},
		{"custom over an hour", config.IntervalCustom, 45, false, 2 * time.Hour, DecisionBackup},
		{"custom not reached", config.IntervalCustom, 45, false, 44 * time.Minute, DecisionSkip},
		{"on quit", config.IntervalOnQuit, 0, false, 48 * time.Hour, DecisionOnQuit},
		{"unknown falls back to each save", "fortnightly", 0, false, time.Minute, DecisionBackup},
		{"disabled", config.IntervalEachSave, 0, true, time.Hour, DecisionDisabled},
		{"zero elapsed", config.IntervalEachSave, 0, false, 0, DecisionDuplicate},
		{"sub-second elapsed", config.IntervalHour, 0, false, 400 * time.Millisecond, DecisionDuplicate},
		{"zero elapsed unknown mode", "fortnightly", 0, false, 0, DecisionDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.BackupInterval = tt.interval
			cfg.CustomBackupInterval = tt.custom
			cfg.Disabled = tt.disabled

			assert.Equal(t, tt.want, Decide(cfg, tt.elapsed, logging.Discard()))
		})
	}
}
