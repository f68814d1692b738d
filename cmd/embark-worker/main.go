// Package main provides the Embark worker: it consumes engine jobs from the
// queue and drives journey entrances forward.
package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/embarkhq/embark/pkg/cmd"
	"github.com/embarkhq/embark/pkg/log"
	"github.com/embarkhq/embark/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:                  "embark-worker",
		EnableShellCompletion: true,
		Usage:                 "Start workers to execute journeys",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "redis-url",
				Usage:    "Redis connection URL for the job queue and locks",
				Required: true,
				Sources:  cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("embark-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Embark Worker")

			persistence := cmd.NewPersistence(command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			redisClient := cmd.NewRedisClient(ctx, command.String("redis-url"), logger)
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close redis client", "error", err)
				}
			}()

			tracer, err := otelhelper.NewTracer(ctx, "embark-worker")
			if err != nil {
				logger.WarnContext(ctx, "Tracing disabled", "error", err)
			}

			worker := NewWorker(workerID, persistence, redisClient, eventBus, tracer, logger)

			if err := worker.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Worker stopped with error", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
