package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/SteamServerUI/PluginLib"
	"github.com/SteamServerUI/SaveBackupManager/api"
	"github.com/SteamServerUI/SaveBackupManager/backupmgr"
	"github.com/SteamServerUI/SaveBackupManager/config"
	"github.com/SteamServerUI/SaveBackupManager/global"
	"github.com/SteamServerUI/SaveBackupManager/logging"
)

var wg sync.WaitGroup

func main() {
	PluginLib.InitConfig(global.PluginName, global.DefaultLogLevel)

	if written, err := config.WriteDefault(config.GetConfigPath()); err != nil {
		PluginLib.Log("Failed to write default config: "+err.Error(), "Warn")
	} else if written {
		PluginLib.Log("Wrote default config to "+config.GetConfigPath(), "Info")
	}

	cfg, err := config.Load()
	if err != nil {
		PluginLib.Log("Failed to load config: "+err.Error(), "Error")
		return
	}
	log := logging.Init(cfg.Logging, true)
	defer logging.Close()

	if err := backupmgr.ValidateSchedule(cfg.BackupAllCron); err != nil {
		log.Error("invalid configuration", "error", err)
		return
	}

	opts := []backupmgr.Option{backupmgr.WithLogger(log)}
	if rfi, err := getRfIdentifierFromSSUIRunfile(); err != nil {
		log.Warn("running without runfile identifier", "error", err)
	} else {
		global.RunfileIdentifier = rfi
		opts = append(opts, backupmgr.WithIdentifier("["+rfi+"]"))
	}

	manager := backupmgr.NewBackupManager(cfg, opts...)
	if err := manager.Launch(); err != nil {
		log.Error("failed to launch backup manager", "error", err)
		manager.Shutdown()
		return
	}

	ExposeAPI(&wg, api.NewHandler(manager, log))

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("shutdown signal received")
		manager.Shutdown()
		wg.Done()
	}()

	wg.Wait()
}

func ExposeAPI(wg *sync.WaitGroup, handler *api.Handler) {
	for path, fn := range handler.Routes() {
		PluginLib.RegisterRoute(path, fn)
	}
	PluginLib.ExposeAPI(wg)
	PluginLib.RegisterPluginAPI()
	wg.Add(1)
}

func getRfIdentifierFromSSUIRunfile() (string, error) {
	runfileIdentifier, err := PluginLib.GetSetting("RunfileIdentifier")
	if err != nil {
		return "", fmt.Errorf("failed to get RunfileIdentifier from SSUI: %w", err)
	}

	runfileIdentifierStr, ok := runfileIdentifier.(string)
	if !ok {
		return "", fmt.Errorf("RunfileIdentifier is not a string")
	}
	if runfileIdentifierStr == "" {
		return "", fmt.Errorf("RunfileIdentifier is empty")
	}
	return runfileIdentifierStr, nil
}
