package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/embarkhq/embark/pkg/campaign"
	"github.com/embarkhq/embark/pkg/cmd"
	"github.com/embarkhq/embark/pkg/journey"
	"github.com/embarkhq/embark/pkg/lists"
	"github.com/embarkhq/embark/pkg/log"
	"github.com/embarkhq/embark/pkg/rules"
)

const defaultPort = 9090

func main() {
	logger := log.WithModule("embark-ingest")

	command := &cli.Command{
		Name:                  "embark-ingest",
		Usage:                 "Ingest events and user updates, serve journey statistics",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the ingest server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
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

			logger.InfoContext(ctx, "Initializing Embark Ingest API")

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

			q := cmd.NewQueue(redisClient, logger)
			locker := cmd.NewLock(redisClient)
			registry := rules.NewRegistry()
			sender := campaign.NewQueueSender(q, persistence.Deliveries(), logger)
			matcher := lists.NewMatcher(persistence, registry, logger)
			state := journey.NewState(persistence, locker, q, eventBus, registry, sender, logger)
			service := journey.NewService(persistence, state, q, eventBus, matcher, logger)

			api := NewAPI(logger, service)

			err := api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start ingest server", "error", err)
			}

			return err
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
