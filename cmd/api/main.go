package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"thesisengine/pkg/api"
	"thesisengine/pkg/core/config"
	"thesisengine/pkg/core/filings"
	"thesisengine/pkg/core/llm"
	"thesisengine/pkg/core/marketdata"
	"thesisengine/pkg/core/narrative"
	"thesisengine/pkg/core/pipeline"
	"thesisengine/pkg/core/snapshot"
	"thesisengine/pkg/core/storage"
	"thesisengine/pkg/core/store"
	"thesisengine/pkg/core/thesis"
)

func main() {
	godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("configuration", zap.Error(err))
	}
	if err := cfg.LoadModels("config/models.yaml"); err != nil {
		log.Warn("model config file ignored", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connect", zap.Error(err))
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		log.Fatal("database migrate", zap.Error(err))
	}

	gateway := marketdata.NewGateway(log, marketdata.NewFMPClient(cfg.FMPAPIKey, cfg.FMPBaseURL))
	gen := narrative.NewGenerator(newProvider(cfg, log), log)
	ingestor := snapshot.NewIngestor(st, gateway, log)

	var market thesis.MarketContextSource
	if cfg.AlphaVantageAPIKey != "" {
		market = marketdata.NewAlphaVantageClient(log, cfg.AlphaVantageAPIKey, cfg.AlphaVantageBaseURL)
	}
	thesisSvc := thesis.NewService(st, gen, market, log)

	sources := map[string]filings.Source{
		"edgar": filings.NewEDGARSource(cfg.EdgarUserAgent),
		"sedar": filings.NewSedarSource(),
	}
	sweeper := pipeline.NewSweeper(st, sources, cfg.MaxAttempts, log)

	var blobs storage.BlobStore
	if cfg.GCSBucket != "" {
		gcsStore, err := storage.NewGCSBlobStore(ctx, cfg.GCSBucket)
		if err != nil {
			log.Fatal("blob storage", zap.Error(err))
		}
		defer gcsStore.Close()
		blobs = gcsStore
	}

	srv := api.NewServer(st, ingestor, thesisSvc, sweeper, gateway, blobs, st.Pool().Ping, log)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("api server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

func newProvider(cfg *config.Config, log *zap.Logger) llm.Provider {
	switch cfg.LLM.Provider {
	case "groq":
		return llm.NewGroqProvider(cfg.LLM.GroqAPIKey, cfg.LLM.Model)
	default:
		if cfg.LLM.Provider != "gemini" {
			log.Warn("unknown llm provider, using gemini", zap.String("provider", cfg.LLM.Provider))
		}
		return llm.NewGeminiProvider(cfg.LLM.GeminiAPIKey, cfg.LLM.Model)
	}
}
