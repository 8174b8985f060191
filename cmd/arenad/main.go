// arenad is the arena service: it exposes the comparison engine and the
// document library over HTTP and runs the retention janitor.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	goredis "github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/urfave/cli/v3"

	arena "github.com/lemon-tea-ai/arena"
	"github.com/lemon-tea-ai/arena/api"
	"github.com/lemon-tea-ai/arena/engine"
	evalopenai "github.com/lemon-tea-ai/arena/evaluate/openai"
	"github.com/lemon-tea-ai/arena/invoke"
	invokeopenai "github.com/lemon-tea-ai/arena/invoke/openai"
	"github.com/lemon-tea-ai/arena/janitor"
	"github.com/lemon-tea-ai/arena/job"
	"github.com/lemon-tea-ai/arena/library"
	bunstore "github.com/lemon-tea-ai/arena/store/bun"
	filestore "github.com/lemon-tea-ai/arena/store/file"
	"github.com/lemon-tea-ai/arena/store/memory"
	redisstore "github.com/lemon-tea-ai/arena/store/redis"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:    "arenad",
		Usage:   "background model-comparison service",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env", Usage: "env file to load", Value: ".env"},
			&cli.StringFlag{Name: "store", Usage: "job store backend: file, memory, redis or postgres", Value: "file"},
			&cli.StringFlag{Name: "jobs-dir", Usage: "directory for the file job store", Value: arena.DefaultConfig().JobsDir},
			&cli.StringFlag{Name: "documents-dir", Usage: "directory for uploaded documents", Value: arena.DefaultConfig().DocumentsDir},
			&cli.Int64Flag{Name: "max-document-size", Usage: "max upload size in bytes, 0 for unlimited", Value: arena.DefaultConfig().MaxDocumentSize},
			&cli.DurationFlag{Name: "retention", Usage: "how long terminal jobs are kept", Value: arena.DefaultConfig().Retention},
			&cli.StringFlag{Name: "sweep", Usage: "cron schedule for the retention sweep", Value: arena.DefaultConfig().SweepSchedule},
			&cli.StringFlag{Name: "listen", Usage: "http listen address", Value: arena.DefaultConfig().Listen},
			&cli.StringFlag{Name: "redis-addr", Usage: "redis address for the redis store", Value: "localhost:6379"},
			&cli.StringFlag{Name: "postgres-dsn", Usage: "postgres DSN for the postgres store"},
			&cli.StringFlag{Name: "judge-model", Usage: "model used to score responses", Value: evalopenai.DefaultJudgeModel},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Action: run,
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	level := slog.LevelInfo
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := godotenv.Load(cmd.String("env")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load env file: %w", err)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return errors.New("OPENAI_API_KEY is not set")
	}

	store, cleanup, err := openStore(ctx, cmd, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	lib, err := library.New(cmd.String("documents-dir"), cmd.Int64("max-document-size"), library.WithLogger(logger))
	if err != nil {
		return err
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	invoker := invokeopenai.New(client, lib, invokeopenai.WithLogger(logger))
	evaluator := evalopenai.New(client,
		evalopenai.WithLogger(logger),
		evalopenai.WithJudgeModel(cmd.String("judge-model")),
	)

	eng, err := engine.New(store, invoker, evaluator, invoke.DefaultCatalog(), engine.WithLogger(logger))
	if err != nil {
		return err
	}

	// jobs left running by a previous process can never finish
	if _, err := eng.MarkOrphans(ctx); err != nil {
		return fmt.Errorf("mark orphaned jobs: %w", err)
	}

	jan, err := janitor.New(eng, cmd.String("sweep"), cmd.Duration("retention"), janitor.WithLogger(logger))
	if err != nil {
		return err
	}
	jan.Start()
	defer jan.Stop()

	srv := api.New(eng, lib,
		api.WithLogger(logger),
		api.WithVersion(version),
		api.WithRetention(cmd.Duration("retention")),
	)

	err = srv.Run(ctx, cmd.String("listen"))

	// let in-flight jobs finish before the store goes away
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if sErr := eng.Shutdown(shutdownCtx); sErr != nil {
		logger.Warn("jobs still running at shutdown", slog.String("error", sErr.Error()))
	}
	return err
}

// openStore builds the configured job store backend. The returned cleanup
// closes the store and whatever connection it sits on.
func openStore(ctx context.Context, cmd *cli.Command, logger *slog.Logger) (job.Store, func(), error) {
	switch backend := cmd.String("store"); backend {
	case "memory":
		st := memory.New()
		return st, func() { _ = st.Close() }, nil

	case "file":
		st, err := filestore.New(cmd.String("jobs-dir"), filestore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil

	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: cmd.String("redis-addr")})
		st := redisstore.New(client, redisstore.WithLogger(logger))
		if err := st.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return st, func() {
			_ = st.Close()
			_ = client.Close()
		}, nil

	case "postgres":
		dsn := cmd.String("postgres-dsn")
		if dsn == "" {
			return nil, nil, errors.New("postgres store requires --postgres-dsn")
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		db := bun.NewDB(sqldb, pgdialect.New())
		st := bunstore.New(db, bunstore.WithLogger(logger))
		if err := st.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return st, func() {
			_ = st.Close()
			_ = db.Close()
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
