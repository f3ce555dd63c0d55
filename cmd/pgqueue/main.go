package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RezaEskandarii/pgqueue/app"
	"github.com/RezaEskandarii/pgqueue/client"
	"github.com/RezaEskandarii/pgqueue/jobmanager"
	"github.com/RezaEskandarii/pgqueue/types"
	"github.com/RezaEskandarii/pgqueue/types/config"
	"golang.org/x/sync/errgroup"
)

const backpressurePause = 5 * time.Second

func main() {
	configPath := flag.String("config", "config/pgqueue.example.yaml", "path to config file")
	role := flag.String("role", "all", "process role: migrate|worker|dispatcher|receiver|sync|all")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := registerHandlers(cfg); err != nil {
		log.Fatalf("register handlers failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := jobmanager.New(ctx, cfg, app.WithLogger(logger))
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Println(err.Error())
		}
	}()

	if _, err := container.RegisterMultiStepQueue("greetings", greetingSteps(logger)); err != nil {
		log.Fatalf("register multi-step queue failed: %v", err)
	}

	if err := run(ctx, container, *role); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("%s failed: %v", *role, err)
	}
}

func run(ctx context.Context, container *app.Container, role string) error {
	g, ctx := errgroup.WithContext(ctx)

	startWorker := func() {
		g.Go(func() error {
			return container.NewWorker().Run(ctx)
		})
		g.Go(func() error {
			reaper, err := container.NewReaper()
			if err != nil {
				return err
			}
			return reaper.Start(ctx)
		})
	}
	startDispatcher := func() {
		g.Go(func() error {
			d := container.NewDispatcher()
			for ctx.Err() == nil {
				stats, err := d.Run(ctx)
				if err != nil {
					return err
				}
				switch stats.StoppedBy {
				case client.StopNoEndpoints, client.StopCancelled:
					return nil
				case client.StopBackpressure:
					select {
					case <-ctx.Done():
					case <-time.After(backpressurePause):
					}
				}
			}
			return nil
		})
	}
	startReceiver := func() {
		g.Go(func() error {
			return container.NewReceiver().Serve(ctx)
		})
	}
	startSync := func() {
		g.Go(func() error {
			return container.JobManager.StartQueueAndStorageSyncWorker(ctx)
		})
	}

	switch role {
	case "migrate":
		// jobmanager.New already applied the migrations.
		log.Println("schema is up to date")
		return nil
	case "worker":
		startWorker()
	case "dispatcher":
		startDispatcher()
	case "receiver":
		startReceiver()
	case "sync":
		startSync()
	case "all":
		startWorker()
		startDispatcher()
		startReceiver()
		startSync()
	default:
		return fmt.Errorf("invalid role: %s (expected migrate|worker|dispatcher|receiver|sync|all)", role)
	}

	return g.Wait()
}

func registerHandlers(cfg *config.Config) error {
	return cfg.RegisterHandler(config.MethodHandler{
		QueueName: "send_sms",
		Func: func(ctx context.Context, job *types.Job) (types.ReleaseResult, error) {
			var sms struct {
				To      string `json:"to"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(job.Payload, &sms); err != nil {
				return "", err
			}
			log.Printf("Sending SMS to %s:\n%s\n", sms.To, sms.Message)
			return types.ReleaseComplete, nil
		},
	})
}

func greetingSteps(logger *slog.Logger) []client.Step {
	type greeting struct {
		Name string `json:"name"`
	}
	return []client.Step{
		{
			ID: "hello",
			Handler: func(ctx context.Context, payload client.MultiStepPayload, jobID int64) (types.ReleaseResult, error) {
				var g greeting
				if err := payload.Decode(&g); err != nil {
					return "", err
				}
				logger.Info("hello", "name", g.Name, "job_id", jobID)
				return "", nil
			},
		},
		{
			ID: "goodbye",
			Handler: func(ctx context.Context, payload client.MultiStepPayload, jobID int64) (types.ReleaseResult, error) {
				var g greeting
				if err := payload.Decode(&g); err != nil {
					return "", err
				}
				logger.Info("goodbye", "name", g.Name, "job_id", jobID)
				return "", nil
			},
		},
	}
}
