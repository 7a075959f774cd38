package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/PabloGalante/docchat/internal/adapters/http"
	"github.com/PabloGalante/docchat/internal/adapters/llm"
	memstore "github.com/PabloGalante/docchat/internal/adapters/storage/memory"
	"github.com/PabloGalante/docchat/internal/app/chat"
	"github.com/PabloGalante/docchat/internal/config"
	"github.com/PabloGalante/docchat/internal/domain"
	"github.com/PabloGalante/docchat/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	log := observability.Logger()

	var (
		client domain.ConversationClient
		err    error
	)

	if cfg.UseMockLLM {
		log.Info("using mock conversation client")
		client = llm.NewMockClient()
	} else {
		log.Info("using Gemini conversation client", "backend", string(cfg.Backend))
		client, err = llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:    cfg.GoogleAPIKey,
			ProjectID: cfg.GCPProjectID,
			Location:  cfg.GCPLocation,
		})
		if err != nil {
			log.Error("error initializing Gemini client", "error", err)
			return
		}
	}

	store := memstore.NewSessionStore()
	go store.RunSweeper(ctx, domain.SweepInterval)

	svc := chat.NewService(client, store,
		chat.WithDefaults(cfg.DefaultModel, cfg.DefaultPreprompt),
		chat.WithUpstreamTimeout(cfg.UpstreamTimeout),
	)

	handler := httpadapter.NewServer(svc, cfg.APIKey, cfg.UploadDir)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	go func() {
		log.Info("docchat API listening", "port", cfg.Port, "default_model", cfg.DefaultModel)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}
