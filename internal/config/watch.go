package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultWatchDebounce collapses bursts of writes to the config file.
const DefaultWatchDebounce = 250 * time.Millisecond

// Watch reloads the config file at path whenever it or the .env file next
// to it changes and passes each successfully loaded config to onChange. The
// containing directory is watched so editors that replace a file by rename
// are picked up. Watch blocks until ctx is canceled.
func Watch(ctx context.Context, path string, debounce time.Duration, logger zerolog.Logger, onChange func(*AgentConfig)) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	log := logger.With().Str("component", "config_watch").Str("path", path).Logger()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("add watch: %w", err)
	}

	targets := map[string]bool{
		filepath.Clean(path):           true,
		filepath.Join(dir, DotEnvFile): true,
	}
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !targets[filepath.Clean(ev.Name)] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerCh = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				log.Warn().Msg("config watch overflowed, reloading")
				timerCh = time.After(0)
				continue
			}
			log.Warn().Err(err).Msg("config watch error")

		case <-timerCh:
			timerCh = nil
			cfg, err := Load(path)
			if err != nil {
				log.Warn().Err(err).Msg("config reload failed, keeping previous settings")
				continue
			}
			if err := cfg.Validate(); err != nil {
				log.Warn().Err(err).Msg("reloaded config is invalid, keeping previous settings")
				continue
			}
			log.Info().Msg("config reloaded")
			onChange(cfg)
		}
	}
}
