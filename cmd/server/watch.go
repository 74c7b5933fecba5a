package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/good-yellow-bee/clipforge/internal/quota"
)

// limitSetter receives reloaded quota limits.
type limitSetter interface {
	SetLimits(l quota.Limits) error
}

// watchLimits reloads the quota section of the config file whenever it
// changes and applies it to tracker. Other sections need a restart. The
// directory is watched so editors that replace the file are seen.
func watchLimits(ctx context.Context, path string, tracker limitSetter) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch config directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != abs || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			reloadLimits(abs, tracker)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("config watcher error: %v", err)
		}
	}
}

// reloadLimits applies the file's quota limits. An invalid file keeps the
// limits already in force.
func reloadLimits(path string, tracker limitSetter) bool {
	cfg, err := LoadConfig(path)
	if err != nil {
		log.Printf("config reload skipped: %v", err)
		return false
	}
	if err := tracker.SetLimits(cfg.Quota); err != nil {
		log.Printf("config reload skipped: %v", err)
		return false
	}
	log.Printf("quota limits reloaded: %d free generations, %d bytes storage, %d bytes per upload",
		cfg.Quota.FreeGenerations, cfg.Quota.FreeStorageBytes, cfg.Quota.MaxUploadBytes)
	return true
}
