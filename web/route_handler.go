package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/RezaEskandarii/pgqueue/client"
	"github.com/RezaEskandarii/pgqueue/types"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/semaphore"
)

var (
	errMissingBearer = errors.New("missing Authorization Bearer token")
	errInvalidBearer = errors.New("invalid bearer token")
)

// HttpRouteHandler is the endpoint the Dispatcher pushes jobs to. Each job goes
// to the first processor that owns it.
type HttpRouteHandler struct {
	processors []client.Processor
	apiKeys    ApiKeyLookup
	inFlight   *semaphore.Weighted
	logger     *slog.Logger
	Port       uint
}

func NewRouteHandler(processors []client.Processor, apiKeys ApiKeyLookup, port uint, maxInFlight int, logger *slog.Logger) *HttpRouteHandler {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HttpRouteHandler{
		processors: processors,
		apiKeys:    apiKeys,
		inFlight:   semaphore.NewWeighted(int64(maxInFlight)),
		logger:     logger,
		Port:       port,
	}
}

// App builds the fiber application serving POST /jobs and GET /jobs?body=.
func (handler *HttpRouteHandler) App() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Post("/jobs", handler.handleJob(func(c *fiber.Ctx) []byte {
		return c.Body()
	}))
	app.Get("/jobs", handler.handleJob(func(c *fiber.Ctx) []byte {
		return []byte(c.Query("body"))
	}))
	return app
}

// Serve listens until ctx is cancelled.
func (handler *HttpRouteHandler) Serve(ctx context.Context) error {
	app := handler.App()
	addr := fmt.Sprintf(":%d", handler.Port)

	go func() {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			handler.logger.Warn("receiver shutdown failed", "error", err)
		}
	}()

	printBanner(addr)
	return app.Listen(addr)
}

func (handler *HttpRouteHandler) handleJob(body func(c *fiber.Ctx) []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !handler.inFlight.TryAcquire(1) {
			return writeError(c, fiber.StatusTooManyRequests, "too many jobs in flight")
		}
		defer handler.inFlight.Release(1)

		var job types.Job
		if err := json.Unmarshal(body(c), &job); err != nil || job.JobID == 0 || job.QueueName == "" {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(client.ProcessJobResponse{
				Status: client.StatusError,
				HadJob: true,
				Error: &client.ProcessJobError{
					Type:    client.ErrTypeBadJobFormat,
					Message: "body must be a job with job_id and queue_name",
				},
			})
		}

		if status, err := authorize(c, handler.apiKeys, job.QueueName); err != nil {
			if status == fiber.StatusInternalServerError {
				handler.logger.Error("api key lookup failed", "queue", job.QueueName, "error", err)
			}
			return writeError(c, status, err.Error())
		}

		var routing *client.ProcessJobError
		for _, p := range handler.processors {
			if perr := p.OwnsJob(&job); perr != nil {
				routing = perr
				continue
			}

			resp, err := p.ProcessJob(c.UserContext(), &job)
			if err != nil {
				handler.logger.Error("failed to process job", "job_id", job.JobID, "queue", job.QueueName, "error", err)
				return writeError(c, fiber.StatusInternalServerError, err.Error())
			}
			if resp.Status != client.StatusOK {
				return c.Status(fiber.StatusInternalServerError).JSON(resp)
			}
			return c.Status(fiber.StatusOK).JSON(resp)
		}

		if routing == nil {
			routing = &client.ProcessJobError{Type: client.ErrTypeJobNotOwned, Message: "no processor registered"}
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(client.ProcessJobResponse{
			Status: client.StatusError,
			HadJob: true,
			Error:  routing,
		})
	}
}
