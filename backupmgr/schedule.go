package backupmgr

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

var scheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule checks a backup_all_cron expression.
func ValidateSchedule(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	if _, err := scheduleParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid backup_all_cron %q: %w", expr, err)
	}
	return nil
}

// startCron queues a backup of every set on each firing of backup_all_cron.
// The jobs go through the asynchronous queue and the backup worker.
func (m *BackupManager) startCron() error {
	expr := strings.TrimSpace(m.config.BackupAllCron)
	if expr == "" {
		return nil
	}

	c := cron.New(cron.WithParser(scheduleParser))
	if _, err := c.AddFunc(expr, func() {
		n := m.BackupAll()
		m.log.Info("scheduled backup of all save games queued", "sets", n)
	}); err != nil {
		return fmt.Errorf("invalid backup_all_cron %q: %w", expr, err)
	}
	c.Start()

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()
	m.log.Info("backup schedule active", "cron", expr)
	return nil
}
