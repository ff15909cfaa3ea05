package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/tokendesk/otc-desk/internal/config"
	"github.com/tokendesk/otc-desk/internal/postgres"
	"github.com/tokendesk/otc-desk/modules/otc"
	"github.com/tokendesk/otc-desk/modules/otc/api/httphandler"
	"github.com/tokendesk/otc-desk/modules/otc/datagateway"
	"github.com/tokendesk/otc-desk/modules/otc/repository/memory"
	otcrepository "github.com/tokendesk/otc-desk/modules/otc/repository/postgres"
	"github.com/tokendesk/otc-desk/pkg/automaxprocs"
	"github.com/tokendesk/otc-desk/pkg/logger"
	"github.com/tokendesk/otc-desk/pkg/logger/slogx"
	"github.com/tokendesk/otc-desk/pkg/middleware/errorhandler"
	"github.com/tokendesk/otc-desk/pkg/middleware/requestcontext"
	"github.com/tokendesk/otc-desk/pkg/middleware/requestlogger"
	"github.com/tokendesk/otc-desk/pkg/reporting"
)

func NewRunCommand() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the OTC desk service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := automaxprocs.Init(); err != nil {
				logger.Error("Failed to set GOMAXPROCS", slogx.Error(err))
			}
			return runHandler(cmd, args)
		},
	}

	// Add local flags
	flags := runCmd.Flags()
	flags.Bool("in-memory", false, "Run with the in-process store instead of postgres (development only)")

	// Bind flags to configuration
	config.BindPFlag("modules.otc.in_memory", flags.Lookup("in-memory"))

	return runCmd
}

const (
	shutdownTimeout = 60 * time.Second

	defaultJanitorInterval = 30 * time.Second
	defaultJanitorExpiry   = 15 * time.Minute
)

func runHandler(cmd *cobra.Command, _ []string) error {
	conf := config.Load()

	// Initialize application process context
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	injector := do.New()
	do.ProvideValue(injector, conf)
	do.ProvideValue(injector, ctx)

	// Initialize data gateway
	do.Provide(injector, func(i do.Injector) (datagateway.OTCDataGateway, error) {
		conf := do.MustInvoke[config.Config](i)
		if conf.Modules.OTC.InMemory {
			logger.WarnContext(ctx, "Running with in-memory store, state is not persistent")
			return memory.NewRepository(), nil
		}

		pg, err := postgres.NewPool(ctx, conf.Modules.OTC.Postgres)
		if err != nil {
			return nil, errors.Wrap(err, "can't create postgres connection pool")
		}
		go func() {
			<-ctx.Done()
			pg.Close()
		}()
		return otcrepository.NewRepository(pg), nil
	})

	// Initialize reporting client
	do.Provide(injector, func(i do.Injector) (*reporting.Client, error) {
		conf := do.MustInvoke[config.Config](i)
		if conf.Modules.OTC.Reporting.Disabled {
			return nil, nil
		}

		reportingClient, err := reporting.New(conf.Modules.OTC.Reporting)
		if err != nil {
			return nil, errors.Wrap(err, "can't create reporting client")
		}
		return reportingClient, nil
	})

	// Initialize engine
	do.Provide(injector, func(i do.Injector) (*otc.Engine, error) {
		dg := do.MustInvoke[datagateway.OTCDataGateway](i)
		reporter := do.MustInvoke[*reporting.Client](i)
		return otc.NewEngine(dg, reporter), nil
	})

	// Initialize HTTP server
	do.Provide(injector, func(i do.Injector) (*fiber.App, error) {
		app := fiber.New(fiber.Config{
			AppName: "OTC Desk",
		})
		app.
			Use(favicon.New()).
			Use(cors.New()).
			Use(requestid.New()).
			Use(requestcontext.New(
				requestcontext.WithRequestId(),
				requestcontext.WithClientIP(conf.HTTPServer.RequestIP),
			)).
			Use(requestlogger.New(conf.HTTPServer.Logger)).
			Use(errorhandler.New()).
			Use(fiberrecover.New(fiberrecover.Config{
				EnableStackTrace: true,
				StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
					buf := make([]byte, 1024)
					buf = buf[:runtime.Stack(buf, false)]
					logger.ErrorContext(c.UserContext(), "Something went wrong, panic in http handler", slogx.Any("panic", e), slog.String("stacktrace", string(buf)))
				},
			})).
			Use(compress.New(compress.Config{
				Level: compress.LevelDefault,
			}))

		// Health check
		app.Get("/", func(c *fiber.Ctx) error {
			return errors.WithStack(c.SendStatus(http.StatusOK))
		})

		return app, nil
	})

	// Mount OTC API
	engine := do.MustInvoke[*otc.Engine](injector)
	httpServer := do.MustInvoke[*fiber.App](injector)
	otcHandler := httphandler.New(engine)
	if err := otcHandler.Mount(httpServer); err != nil {
		return errors.Wrap(err, "can't mount OTC API")
	}
	logger.InfoContext(ctx, "Mounted OTC HTTP handler")

	// Run janitor
	var janitor *otc.Janitor
	if !conf.Modules.OTC.Janitor.Disabled {
		interval := conf.Modules.OTC.Janitor.Interval
		if interval <= 0 {
			interval = defaultJanitorInterval
		}
		expiry := conf.Modules.OTC.Janitor.DefaultExpiry
		if expiry <= 0 {
			expiry = defaultJanitorExpiry
		}
		janitor = otc.NewJanitor(engine, interval, expiry)
		if err := janitor.Start(ctx); err != nil {
			return errors.Wrap(err, "can't start janitor")
		}
	}

	// Run API server
	go func() {
		// stop main process if API stopped
		defer stop()

		logger.InfoContext(ctx, "Started HTTP server", slog.Int("port", conf.HTTPServer.Port))
		if err := httpServer.Listen(fmt.Sprintf(":%d", conf.HTTPServer.Port)); err != nil {
			logger.PanicContext(ctx, "Something went wrong, error during running HTTP server", slogx.Error(err))
		}
	}()

	logger.InfoContext(ctx, "OTC desk started")

	// Wait for interrupt signal to gracefully stop the server
	<-ctx.Done()

	// Force shutdown if timeout exceeded or got signal again
	go func() {
		defer os.Exit(1)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		select {
		case <-ctx.Done():
			logger.FatalContext(ctx, "Received exit signal again. Force shutdown...")
		case <-time.After(shutdownTimeout + 15*time.Second):
			logger.FatalContext(ctx, "Shutdown timeout exceeded. Force shutdown...")
		}
	}()

	if janitor != nil {
		janitor.Stop()
	}
	if err := httpServer.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("Failed to shutdown HTTP server gracefully", slogx.Error(err))
	}
	if err := injector.Shutdown(); err != nil {
		logger.Panic("Failed while gracefully shutting down", slogx.Error(err))
	}

	return nil
}
