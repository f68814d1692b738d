// Package main provides the Embark scheduler: it fires scheduled batch
// entrances and recurring dynamic list population sweeps.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/embarkhq/embark/pkg/cmd"
	"github.com/embarkhq/embark/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "embark-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Fire scheduled journey entrances and list population sweeps",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "redis-url",
				Usage:    "Redis connection URL for the job queue",
				Required: true,
				Sources:  cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "list-sweep-schedule",
				Usage:   "Cron expression for the dynamic list population sweep",
				Value:   "@hourly",
				Sources: cli.EnvVars("LIST_SWEEP_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "reload-interval",
				Usage:   "How often journey schedules are reloaded from persistence",
				Value:   defaultReloadInterval,
				Sources: cli.EnvVars("RELOAD_INTERVAL"),
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

			logger := log.WithModule("embark-scheduler")

			logger.InfoContext(ctx, "Initializing Embark Scheduler")

			persistence := cmd.NewPersistence(command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			redisClient := cmd.NewRedisClient(ctx, command.String("redis-url"), logger)
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close redis client", "error", err)
				}
			}()

			scheduler := NewScheduler(
				persistence,
				cmd.NewQueue(redisClient, logger),
				command.String("list-sweep-schedule"),
				command.Duration("reload-interval"),
				logger,
			)

			return scheduler.Start(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
