package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads the config store when files under the config
// directory change and signals listeners through a buffered channel.
type ConfigWatcher struct {
	watcher    *fsnotify.Watcher
	configDir  string
	logger     *slog.Logger
	reloadChan chan struct{}
}

// StartWatcher begins watching the config directory and its subdirectories.
func StartWatcher(configDir string, logger *slog.Logger) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	cw := &ConfigWatcher{
		watcher:    watcher,
		configDir:  configDir,
		logger:     logger,
		reloadChan: make(chan struct{}, 1),
	}

	if err := filepath.Walk(configDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	}); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	go cw.watch()
	return cw, nil
}

// ReloadChan signals after each successful store reload. The channel holds
// one pending notification; coalesced changes produce a single signal.
func (cw *ConfigWatcher) ReloadChan() <-chan struct{} {
	return cw.reloadChan
}

// isConfigFile filters out editor temp files and unrelated writes; config
// files and templates both end in .yaml.
func isConfigFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.HasSuffix(base, ".yaml")
}

func (cw *ConfigWatcher) watch() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !isConfigFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				cw.handleConfigChange(event.Name)
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("watcher error", "error", err)
		}
	}
}

func (cw *ConfigWatcher) handleConfigChange(path string) {
	cw.logger.Info("detected configuration change", "path", path)

	if err := LoadConfigs(cw.configDir); err != nil {
		cw.logger.Error("failed to reload configurations",
			"error", err,
			"path", path,
		)
		return
	}

	select {
	case cw.reloadChan <- struct{}{}:
	default:
		// A reload notification is already pending.
	}
}

// Stop closes the watcher. The reload channel stays open so a listener
// draining it does not observe a spurious close.
func (cw *ConfigWatcher) Stop() error {
	if cw.watcher == nil {
		return nil
	}
	if err := cw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	cw.watcher = nil
	return nil
}
