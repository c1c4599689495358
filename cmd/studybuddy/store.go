package main

import (
	"log/slog"

	"github.com/kalambet/studybuddy/internal/config"
	"github.com/kalambet/studybuddy/internal/settings"
	"github.com/kalambet/studybuddy/internal/storage"
)

// openSettings builds the settings store described by cfg. Asking for the
// browser backend outside a browser uses the SQLite-backed localStorage
// under storage.data_dir. The returned func releases that database.
func openSettings(cfg config.Config, logger *slog.Logger) (*settings.Store, func(), error) {
	kind, err := settings.ParseKind(cfg.Settings.Backend)
	if err != nil {
		return nil, nil, err
	}

	caps := settings.DetectCapabilities()
	closeFn := func() {}
	if kind == settings.KindBrowser && caps.LocalStorage == nil {
		db, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			logger.Warn("local storage database unavailable", "data_dir", cfg.Storage.DataDir, "error", err)
		} else {
			caps.LocalStorage = db.LocalStorage(storage.DefaultOrigin)
			closeFn = func() {
				if err := db.Close(); err != nil {
					logger.Warn("closing local storage database", "error", err)
				}
			}
		}
	}

	store := settings.New(settings.Options{
		Kind:         kind,
		Capabilities: caps,
		FileName:     cfg.Settings.FileName,
		Dir:          cfg.Settings.Dir,
		StorageKey:   cfg.Settings.StorageKey,
		Logger:       logger,
	})
	return store, closeFn, nil
}
