/*
main.go - Application entry point

PURPOSE:
  Command-line entry point of the absence engine. "serve" runs the HTTP
  API; "simulate", "recap" and "catalog" query the same store and catalog
  from the terminal.

STARTUP SEQUENCE:
  1. Load .env, bind ABSENCE_* variables and flags
  2. Build the logger
  3. Load and validate the catalog
  4. Open the SQLite store
  5. Build the engine with live settings
  6. Run the command

CONFIGURATION:
  See config/config.go for every key. Flags win over the environment,
  which wins over .env.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the settings refresh
  4. Close database connection

EXAMPLES:
  # Serve with a file database
  ./server serve --db=./data/absence.db --catalog=./catalog.yaml

  # Simulate three vacation days
  ./server simulate --person=alice --code=32 --from=2025-03-03 --to=2025-03-05

  # Recap a parental chain
  ABSENCE_LOG_LEVEL=debug ./server recap --person=bruno --group=parental_1 --from=2025-06-01

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/warp/absence-engine/api"
	"github.com/warp/absence-engine/config"
	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/factory"
	"github.com/warp/absence-engine/store/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Absence allowance resolution engine",
	Long: `Resolves which group governs an absence, builds the period it counts
against, and checks it against the remaining allowance before saving it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.BindFlags(viper.GetViper(), cmd.Flags())
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}
	config.Setup(viper.GetViper())
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.String(config.KeyDB, "absence.db", `SQLite database path (":memory:" for in-memory)`)
	flags.String(config.KeyCatalog, "catalog.yaml", "catalog YAML file")
	flags.String(config.KeyLogLevel, "info", "log level: debug, info, warn, error")
	flags.String(config.KeyLogFormat, "json", "log format: json, text")
	flags.StringSlice(config.KeyReservedGroups, nil, "groups hidden from automatic resolution, replaces the defaults")
	flags.Bool(config.KeyEscalateOrphanReplacing, false, "block replacing codes with no matching crossing")
	flags.Int(config.KeyMaxRequestDays, 366, "longest accepted request in days, 0 disables")
	flags.Int(config.KeyDailyMinutes, 432, "working minutes of a full day")
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(recapCmd())
	rootCmd.AddCommand(catalogCmd())
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

// deps holds what every command needs.
type deps struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *sqlite.Store
	settings *config.Provider
	engine   *engine.Engine
}

func openDeps() (*deps, error) {
	v := viper.GetViper()
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	logger := config.NewLogger(os.Stderr, cfg)

	cat, err := factory.LoadCatalogFile(cfg.CatalogPath, cfg.CatalogOptions())
	if err != nil {
		return nil, err
	}
	logger.Debug("catalog loaded", "path", cfg.CatalogPath, "groups", len(cat.Groups()))

	settings, err := config.NewProvider(config.SettingsFrom(v), logger)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	eng := engine.New(cat, store, store, store,
		engine.WithSettings(settings),
		engine.WithHolidayCalendar(store),
		engine.WithDutyRoster(store),
		engine.WithLogger(logger),
	)
	return &deps{cfg: cfg, logger: logger, store: store, settings: settings, engine: eng}, nil
}

func (rt *deps) Close() error {
	return rt.store.Close()
}

func withDeps(fn func(rt *deps) error) error {
	rt, err := openDeps()
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

// =============================================================================
// SERVE
// =============================================================================

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(rt *deps) error {
				return serve(cmd.Context(), rt)
			})
		},
	}
	cmd.Flags().Int(config.KeyPort, 8080, "HTTP server port")
	cmd.Flags().Duration(config.KeySettingsRefresh, time.Minute, "settings reload interval, 0 disables")
	return cmd
}

func serve(ctx context.Context, rt *deps) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go rt.settings.Run(ctx, rt.cfg.SettingsRefresh)

	handler := api.NewHandler(rt.engine, rt.store, rt.logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", rt.cfg.Port),
		Handler:      api.NewRouter(handler, rt.logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		rt.logger.Info("server starting", "port", rt.cfg.Port, "db", rt.cfg.DBPath, "catalog", rt.cfg.CatalogPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	rt.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	rt.logger.Info("server stopped")
	return nil
}
