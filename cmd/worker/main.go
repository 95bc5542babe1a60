package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tailor-backend/internal/bootstrap"
	"tailor-backend/internal/customizations"
	"tailor-backend/internal/jobqueue"
	"tailor-backend/internal/shared/config"
	"tailor-backend/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Renderer.Start(ctx); err != nil {
		log.Fatalf("start renderer: %v", err)
	}

	if err := app.Queue.RegisterHandler(customizations.JobTypeCustomize, func(ctx context.Context, job jobqueue.Job) error {
		return app.CustomizationsService.ProcessCustomization(ctx, job.Payload)
	}); err != nil {
		log.Fatalf("register handler: %v", err)
	}

	app.Queue.On(jobqueue.EventFailed, func(job jobqueue.Job, err error) {
		telemetry.Error("worker.job.exhausted", map[string]any{
			"job_id":   job.ID,
			"job_type": job.Type,
			"payload":  job.Payload,
			"attempts": job.Attempts,
			"error":    job.LastError,
		})
	})

	if err := app.Queue.Start(ctx); err != nil {
		log.Fatalf("start queue: %v", err)
	}

	log.Printf("worker started concurrency=%d max_attempts=%d", cfg.QueueConcurrency, cfg.QueueMaxAttempts)
	<-ctx.Done()

	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Queue.Stop(shutdownCtx); err != nil {
		log.Printf("queue stop: %v", err)
	}
	if err := app.Renderer.Stop(shutdownCtx); err != nil {
		log.Printf("renderer stop: %v", err)
	}
	if app.DB != nil {
		_ = app.DB.Close()
	}
}
