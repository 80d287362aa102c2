package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"thesisengine/pkg/core/config"
	"thesisengine/pkg/core/filings"
	"thesisengine/pkg/core/llm"
	"thesisengine/pkg/core/marketdata"
	"thesisengine/pkg/core/narrative"
	"thesisengine/pkg/core/pipeline"
	"thesisengine/pkg/core/snapshot"
	"thesisengine/pkg/core/storage"
	"thesisengine/pkg/core/store"
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

	sources := map[string]filings.Source{
		"edgar": filings.NewEDGARSource(cfg.EdgarUserAgent),
		"sedar": filings.NewSedarSource(),
	}

	var blobs storage.BlobStore
	if cfg.GCSBucket != "" {
		gcsStore, err := storage.NewGCSBlobStore(ctx, cfg.GCSBucket)
		if err != nil {
			log.Fatal("blob storage", zap.Error(err))
		}
		defer gcsStore.Close()
		blobs = gcsStore
	}

	orch := pipeline.NewOrchestrator(pipeline.StoreRunner{Store: st}, sources, ingestor, gen, blobs, log)
	worker := pipeline.NewWorker(st, orch, cfg.WorkerSlots, cfg.RetryDelay, cfg.RunTimeout, log)
	sweeper := pipeline.NewSweeper(st, sources, cfg.MaxAttempts, log)

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.SweepSchedule, func() {
		if _, err := sweeper.SweepForNewFilings(ctx); err != nil {
			log.Error("filing sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		log.Fatal("invalid sweep schedule", zap.String("schedule", cfg.SweepSchedule), zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Info("worker running",
		zap.Int("slots", cfg.WorkerSlots),
		zap.String("sweep_schedule", cfg.SweepSchedule))
	worker.Run(ctx)
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
