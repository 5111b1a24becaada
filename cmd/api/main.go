package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/replyflow/cmd/mainconfig"
	"github.com/wolfman30/replyflow/internal/app/bootstrap"
	appconfig "github.com/wolfman30/replyflow/internal/config"
	"github.com/wolfman30/replyflow/internal/conversation"
	"github.com/wolfman30/replyflow/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting replyflow API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"variant", cfg.WebhookVariant,
	)

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	rt, err := bootstrap.BuildRuntime(context.Background(), cfg, logger, bootstrap.Options{AWS: &awsCfg})
	if err != nil {
		logger.Error("failed to build runtime", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	// Jobs on the memory queue are drained in-process; SQS jobs belong to
	// cmd/conversation-worker.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	var worker *conversation.Worker
	if cfg.UseMemoryQueue {
		worker = rt.NewWorker()
		worker.Start(workerCtx)
		logger.Info("in-process relay worker started", "workers", cfg.WorkerCount)
	}

	srv := newServer(cfg, rt.Router())

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	stopWorker()
	if worker != nil && !waitForWorker(worker, 30*time.Second) {
		logger.Error("relay worker shutdown timed out")
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

type waiter interface {
	Wait()
}

// waitForWorker reports whether w finished before timeout.
func waitForWorker(w waiter, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
