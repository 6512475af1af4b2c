package backupmgr

import (
	"fmt"

	"github.com/google/uuid"
)

// BackupJob snapshots one save set. The zero value is the NoBackupJob sentinel.
type BackupJob struct {
	ID  string
	set *BackupSet
}

// RestoreJob copies one backup slot over the live save folder.
type RestoreJob struct {
	ID   string
	set  *BackupSet
	from string
}

var (
	NoBackupJob  = BackupJob{}
	NoRestoreJob = RestoreJob{}
)

func newJobID(kind string) string {
	return kind + "-" + uuid.New().String()[:8]
}

func NewBackupJob(set *BackupSet) BackupJob {
	return BackupJob{ID: newJobID("backup"), set: set}
}

func NewRestoreJob(set *BackupSet, from string) RestoreJob {
	return RestoreJob{ID: newJobID("restore"), set: set, from: from}
}

func (j BackupJob) IsNoJob() bool   { return j.set == nil }
func (j BackupJob) Set() *BackupSet { return j.set }

func (j BackupJob) Backup() error {
	if j.IsNoJob() {
		return nil
	}
	return j.set.Backup()
}

func (j BackupJob) String() string {
	if j.IsNoJob() {
		return "backup job <none>"
	}
	return fmt.Sprintf("backup job %s for '%s'", j.ID, j.set.Name())
}

func (j RestoreJob) IsNoJob() bool   { return j.set == nil }
func (j RestoreJob) Set() *BackupSet { return j.set }
func (j RestoreJob) From() string    { return j.from }

func (j RestoreJob) Restore() error {
	if j.IsNoJob() {
		return nil
	}
	return j.set.Restore(j.from)
}

func (j RestoreJob) String() string {
	if j.IsNoJob() {
		return "restore job <none>"
	}
	return fmt.Sprintf("restore job %s for '%s' from '%s'", j.ID, j.set.Name(), j.from)
}
