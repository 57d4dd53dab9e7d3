package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/warp/absence-engine/engine"
)

// Loader reads a fresh engine settings snapshot.
type Loader func() (engine.Settings, error)

// Provider hands the engine the latest settings snapshot. Snapshots are
// swapped whole, so a request never sees a half-applied reload.
type Provider struct {
	current atomic.Pointer[engine.Settings]
	load    Loader
	logger  *slog.Logger
}

var _ engine.SettingsSource = (*Provider)(nil)

// NewProvider loads the first snapshot and fails if it cannot.
func NewProvider(load Loader, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{load: load, logger: logger}
	if err := p.Refresh(); err != nil {
		return nil, err
	}
	return p, nil
}

// Current returns the latest snapshot.
func (p *Provider) Current() engine.Settings {
	return *p.current.Load()
}

// Refresh reloads the snapshot. On failure the previous one stays.
func (p *Provider) Refresh() error {
	s, err := p.load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	p.current.Store(&s)
	return nil
}

// Run refreshes every interval until ctx is done.
func (p *Provider) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Refresh(); err != nil {
				p.logger.Warn("settings refresh failed, keeping previous snapshot", "error", err)
				continue
			}
			p.logger.Debug("settings refreshed")
		}
	}
}
