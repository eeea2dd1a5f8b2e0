package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btclog"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/core/indexer"
	"github.com/gaze-network/runes-ledger/internal/config"
	"github.com/gaze-network/runes-ledger/modules/runes"
	"github.com/gaze-network/runes-ledger/pkg/automaxprocs"
	"github.com/gaze-network/runes-ledger/pkg/errorhandler"
	"github.com/gaze-network/runes-ledger/pkg/logger"
	"github.com/gaze-network/runes-ledger/pkg/logger/slogx"
	"github.com/gaze-network/runes-ledger/pkg/middleware/requestcontext"
	"github.com/gaze-network/runes-ledger/pkg/middleware/requestlogger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/samber/do/v2"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// Modules maps a name in `enable_modules` to the constructor of its indexer worker.
var Modules = do.Package(
	do.LazyNamed("runes", runes.New),
)

const (
	shutdownTimeout = 60 * time.Second
	forceExitDelay  = shutdownTimeout + 15*time.Second
)

func NewRunCommand() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the runes indexer and its HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			undo, err := automaxprocs.Init()
			if err != nil {
				logger.Error("Failed to set GOMAXPROCS", slogx.Error(err))
			}
			defer undo()
			return runHandler(cmd, args)
		},
	}

	flags := runCmd.Flags()
	flags.Bool("api-only", false, "Serve the API from already indexed data without running indexers")
	flags.String("modules", "", "Enable specific modules to run. E.g. `runes`")

	config.BindPFlag("api_only", flags.Lookup("api-only"))
	config.BindPFlag("enable_modules", flags.Lookup("modules"))

	return runCmd
}

func runHandler(cmd *cobra.Command, _ []string) error {
	conf := config.Load()
	if !conf.Network.IsSupported() {
		return errors.Wrapf(errs.Unsupported, "%q network is not supported", conf.Network.String())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	injector := do.New(Modules)
	do.ProvideValue(injector, conf)
	do.ProvideValue(injector, ctx)
	do.Provide(injector, provideBitcoinClient)
	do.Provide(injector, provideHTTPServer)

	// Workers outlive ctx so they can finish the block in progress while the injector shuts down.
	ctxWorker, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	ctxWorker = logger.WithContext(ctxWorker, slogx.Stringer("network", conf.Network))

	if err := startModules(ctxWorker, injector, conf, stop); err != nil {
		return errors.WithStack(err)
	}

	httpServer := do.MustInvoke[*fiber.App](injector)
	go func() {
		defer stop()
		logger.InfoContext(ctx, "Started HTTP server", slog.Int("port", conf.HTTPServer.Port))
		if err := httpServer.Listen(fmt.Sprintf(":%d", conf.HTTPServer.Port)); err != nil {
			logger.PanicContext(ctx, "Something went wrong, error during running HTTP server", slogx.Error(err))
		}
	}()

	logger.InfoContext(ctxWorker, "Runes Ledger started")
	<-ctx.Done()

	go forceExitAfter(forceExitDelay)

	if err := injector.Shutdown(); err != nil {
		logger.PanicContext(ctx, "Failed while gracefully shutting down", slogx.Error(err))
	}
	return nil
}

// startModules resolves every enabled module. Unless the API runs alone, each module's worker is started
// and stop is called as soon as one of them returns.
func startModules(ctx context.Context, injector do.Injector, conf config.Config, stop context.CancelFunc) error {
	modules := lo.Uniq(lo.FilterMap(conf.EnableModules, func(item string, _ int) (string, bool) {
		item = strings.TrimSpace(item)
		return item, item != ""
	}))
	for _, module := range modules {
		ctx := logger.WithContext(ctx, slogx.String("module", module))

		worker, err := do.InvokeNamed[indexer.IndexerWorker](injector, module)
		if err != nil {
			if errors.Is(err, do.ErrServiceNotFound) {
				return errors.Wrapf(errs.Unsupported, "module %q", module)
			}
			return errors.Wrapf(err, "can't init module %q", module)
		}
		if conf.APIOnly {
			continue
		}

		go func() {
			defer stop()
			logger.InfoContext(ctx, "Starting indexer")
			if err := worker.Run(ctx); err != nil {
				logger.ErrorContext(ctx, "Indexer stopped with error", slogx.Error(err))
				return
			}
			logger.InfoContext(ctx, "Indexer stopped")
		}()
	}
	return nil
}

func provideBitcoinClient(i do.Injector) (*rpcclient.Client, error) {
	ctx := do.MustInvoke[context.Context](i)
	conf := do.MustInvoke[config.Config](i)

	if conf.Logger.Debug {
		rpcclient.UseLogger(btclog.NewBackend(os.Stdout).Logger("RPCC"))
	}

	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         conf.BitcoinNode.Host,
		User:         conf.BitcoinNode.User,
		Pass:         conf.BitcoinNode.Pass,
		DisableTLS:   conf.BitcoinNode.DisableTLS,
		HTTPPostMode: true,
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "invalid Bitcoin node configuration")
	}

	start := time.Now()
	logger.InfoContext(ctx, "Connecting to Bitcoin Core RPC Server...", slogx.String("host", conf.BitcoinNode.Host))
	if err := client.Ping(); err != nil {
		return nil, errors.Wrapf(err, "can't connect to Bitcoin Core RPC Server %q", conf.BitcoinNode.Host)
	}
	logger.InfoContext(ctx, "Connected to Bitcoin Core RPC Server", slogx.Duration("latency", time.Since(start)))

	return client, nil
}

func provideHTTPServer(i do.Injector) (*fiber.App, error) {
	conf := do.MustInvoke[config.Config](i)

	withClientIP, err := requestcontext.WithClientIP(conf.HTTPServer.RequestIP)
	if err != nil {
		return nil, errors.Wrap(err, "invalid http_server.requestip config")
	}

	app := fiber.New(fiber.Config{
		AppName:      "Runes Ledger",
		ErrorHandler: errorhandler.NewHTTPErrorHandler(),
	})
	app.
		Use(favicon.New()).
		Use(cors.New()).
		Use(requestid.New()).
		Use(requestcontext.New(requestcontext.WithRequestId(), withClientIP)).
		Use(requestlogger.New(conf.HTTPServer.Logger)).
		Use(fiberrecover.New(fiberrecover.Config{
			EnableStackTrace: true,
			StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
				buf := make([]byte, 1024)
				buf = buf[:runtime.Stack(buf, false)]
				logger.ErrorContext(c.UserContext(), "Something went wrong, panic in http handler", slogx.Any("panic", e), slogx.String("stacktrace", string(buf)))
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
}

// forceExitAfter exits the process if shutdown takes longer than d or another signal arrives.
func forceExitAfter(d time.Duration) {
	defer os.Exit(1)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.FatalContext(ctx, "Received exit signal again. Force shutdown...")
	case <-time.After(d):
		logger.FatalContext(ctx, "Shutdown timeout exceeded. Force shutdown...")
	}
}
