package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/cornell-notes/internal/config"
	"github.com/JakeFAU/cornell-notes/internal/logging"
	"github.com/JakeFAU/cornell-notes/internal/note"
	"github.com/JakeFAU/cornell-notes/internal/notestore"
	"github.com/JakeFAU/cornell-notes/internal/resolver"
	"github.com/JakeFAU/cornell-notes/internal/server"
)

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// App is what subcommands need from the application. Tests inject a fake.
type App interface {
	Run(ctx context.Context) error
	Close(ctx context.Context) error
	Logger() *zap.Logger
	Backend() notestore.Backend
	Renditions() note.Transformer
	ResolverOptions() []resolver.Option
}

// builtApp adapts *server.App to App.
type builtApp struct {
	*server.App
}

func (a builtApp) Backend() notestore.Backend {
	return a.Service()
}

// newApp is the application factory. Tests replace it.
var newApp = func(ctx context.Context, cfgPath, command string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	base, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	logger, err := logging.Named(base, "cornell", command)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	app, err := server.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return builtApp{app}, nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:           "cornell",
		Short:         "Capture web pages as Cornell-style notes.",
		SilenceUsage:  true,
		SilenceErrors: true,

		// Builds the application once flags are parsed and before the subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile, cmd.Name())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				if err := appInstance.Close(cmd.Context()); err != nil {
					appInstance.Logger().Warn("close failed", zap.Error(err))
				}
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	cmd.AddCommand(
		newServeCmd(),
		newCaptureCmd(),
		newListCmd(),
		newTagsCmd(),
		newTagCmd(),
		newUntagCmd(),
		newRmCmd(),
		newRenditionCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// loadStore returns a notestore already loaded from the app's backend.
func loadStore(ctx context.Context, app App) (*notestore.Store, error) {
	store := notestore.New(app.Backend())
	if err := store.Load(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
