package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/piaoger/fisher/internal/config"
	"github.com/piaoger/fisher/internal/dispatch"
	"github.com/piaoger/fisher/internal/hook"
	"github.com/piaoger/fisher/internal/ratelimit"
	"github.com/piaoger/fisher/internal/scheduler"
	"github.com/piaoger/fisher/internal/server"
)

var (
	servePort    int
	serveHost    string
	serveHooks   string
	serveNoWatch bool
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the fisher webhook server.

The server will:
  - Collect hook scripts from the hooks directory
  - Listen for webhook requests on /hook/<name>
  - Queue and execute matching hook scripts

SIGUSR1 reloads the hooks from disk without touching running jobs;
SIGINT and SIGTERM drain running jobs and exit.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to")
	serveCmd.Flags().StringVar(&serveHooks, "hooks", "", "Directory to collect hooks from")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Disable hook file watching")

	rootCmd.AddCommand(serveCmd)
}

// controlEvent is a signal translated into the serve loop's domain. Signal
// handlers never touch scheduler or registry state directly; they only push
// events here.
type controlEvent int

const (
	eventReload controlEvent = iota
	eventShutdown
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: cfgFile})
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("hooks") {
		cfg.Hooks.Path = serveHooks
	}
	applyLogLevel(cfg.Logging.Level)

	registry := hook.NewRegistry(hook.CollectPath{
		Dir:       cfg.Hooks.Path,
		Recursive: cfg.Hooks.Recursive,
	})
	if _, err := registry.Reload(); err != nil {
		log.Error().Err(err).Msg("Failed to load hooks")
		return err
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewLimiter(cfg.RateLimit.Threshold, cfg.RateLimit.Window)
		defer limiter.Stop()
	}

	sched := scheduler.New(scheduler.NewProcessRunner(), cfg.Jobs.MaxThreads)
	sched.Start()

	dispatcher := newDispatcher(registry, limiter, sched)
	srv := server.New(cfg, dispatcher, sched)

	if !serveNoWatch && cfg.Hooks.Watch {
		watcher, watchErr := hook.NewWatcher(registry)
		if watchErr != nil {
			log.Warn().Err(watchErr).Msg("Failed to set up hook watcher, continuing without it")
		} else {
			watcher.Start()
			defer func() { _ = watcher.Stop() }()
			log.Info().Msg("Hook file watching enabled")
		}
	}

	control := make(chan controlEvent, 4)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	go func() {
		for sig := range sigChan {
			if sig == syscall.SIGUSR1 {
				control <- eventReload
			} else {
				control <- eventShutdown
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logServerInfo(cfg, registry)

	for {
		select {
		case err := <-errCh:
			if err != nil {
				log.Error().Err(err).Msg("Server error")
			}
			return err
		case ev := <-control:
			if ev == eventReload {
				if _, reloadErr := registry.Reload(); reloadErr != nil {
					log.Error().Err(reloadErr).Msg("Hook reload failed, keeping previous hooks")
				}
				continue
			}

			log.Info().Msg("Shutdown signal received")
			return shutdown(srv, sched)
		}
	}
}

// newDispatcher wires the dispatcher; the limiter interface must stay nil
// when rate limiting is disabled, a typed nil pointer would not.
func newDispatcher(registry *hook.Registry, limiter *ratelimit.Limiter, sched *scheduler.Scheduler) *dispatch.Dispatcher {
	if limiter == nil {
		return dispatch.New(registry, nil, sched)
	}
	return dispatch.New(registry, limiter, sched)
}

// shutdown stops admissions first: once the scheduler rejects submissions,
// requests still in flight while the HTTP server drains are answered with a
// retryable 503 instead of being acknowledged and then dropped. After the
// drain it waits for running jobs. Scripts are never killed.
func shutdown(srv *server.Server, sched *scheduler.Scheduler) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	sched.BeginShutdown()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown did not finish cleanly")
	}

	if err := sched.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("Timed out waiting for running jobs")
		return err
	}

	return nil
}

func logServerInfo(cfg *config.Config, registry *hook.Registry) {
	snapshot := registry.Current()

	log.Info().
		Str("url", "http://"+cfg.Server.Address()).
		Int("hooks", snapshot.Len()).
		Int("max_threads", cfg.Jobs.MaxThreads).
		Msg("Server started")

	for _, name := range snapshot.Names() {
		log.Info().
			Str("hook", name).
			Str("endpoint", "http://"+cfg.Server.Address()+"/hook/"+name).
			Msg("Hook endpoint")
	}
}
