package backupmgr

import (
	"context"
)

// HostBridge is the surface the game host calls around its own save cycle.
type HostBridge struct {
	manager *BackupManager
}

func NewHostBridge(m *BackupManager) *HostBridge {
	return &HostBridge{manager: m}
}

// OnAboutToPersist blocks until no backup is pending or running, so the host
// never writes a save while the same save is being copied.
func (b *HostBridge) OnAboutToPersist(ctx context.Context) error {
	b.manager.log.Info("callback: game about to save")
	select {
	case <-b.manager.WaitUntilAllCompleted():
		b.manager.log.Info("all backups completed before save")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnPersisted arms a trigger policy evaluation for the saved set.
func (b *HostBridge) OnPersisted(name string) {
	b.manager.log.Info("callback: game saved", "set", name)
	b.manager.armTrigger(name)
}

// OnActiveSessionChanged runs the queue workers while the host sits in its
// main menu and stops them during play.
func (b *HostBridge) OnActiveSessionChanged(isMainMenu bool) {
	b.manager.log.Info("callback: session changed", "main_menu", isMainMenu)
	b.manager.SetWorkersEnabled(isMainMenu)
}
