// Package opts carries the shared dependencies of the structsync
// commands.
package opts

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/structsync/cmd/structsync/ui"
	"github.com/walteh/structsync/pkg/config"
	"github.com/walteh/structsync/pkg/store"
)

// RootOpts holds flag values shared by every command. Config loading is
// deferred until a command runs so flags are parsed first.
type RootOpts struct {
	ConfigPath   string
	TemplatesDir string
	Debug        bool

	UserLogger *ui.UserLogger
}

// LoadConfig loads the configuration, falling back to defaults when no
// config file exists. The --templates-dir flag overrides the configured
// directory.
func (o *RootOpts) LoadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(ctx, o.ConfigPath)
	if err != nil {
		return nil, errors.Errorf("loading config: %w", err)
	}
	if o.TemplatesDir != "" {
		cfg.TemplatesDir = o.TemplatesDir
	}
	return cfg, nil
}

// OpenStore loads the configuration and opens the template store it
// points at.
func (o *RootOpts) OpenStore(ctx context.Context) (*store.Store, *config.Config, error) {
	cfg, err := o.LoadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	return store.New(cfg.TemplatesDir), cfg, nil
}
