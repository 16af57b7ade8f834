package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"transparency-probe/internal/analytics"
	"transparency-probe/internal/config"
	"transparency-probe/internal/llm"
	"transparency-probe/internal/mirror"
	"transparency-probe/internal/scheduler"
	"transparency-probe/internal/server"
	"transparency-probe/internal/storage"
	"transparency-probe/internal/tts"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	m := newMirror(cfg)

	logger, err := storage.NewLogger(cfg.EventLogPath, cfg.QALogPath, cfg.MaxFieldLen, m)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	factory := llm.NewFactory(cfg)
	llmClient, err := factory.CreateClient(string(cfg.LLMProvider), cfg.OpenAIModel)
	if err != nil {
		log.Fatalf("failed to create llm client: %v", err)
	}

	var synth tts.Synthesizer
	if !cfg.TTSDisabled && cfg.OpenAIAPIKey != "" {
		synth = tts.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.TTSModel, cfg.TTSVoice)
	} else {
		log.Printf("TTS not configured, /api/tts_openai will answer 204")
	}

	var sched *scheduler.Scheduler
	if !cfg.ReportDisabled {
		sched = scheduler.New(cfg.ReportCron)
		sched.SetReportFunction(dailyReport(logger, m))
		if err := sched.Start(); err != nil {
			log.Printf("failed to start scheduler: %v", err)
		}
	}

	srv := server.New(llmClient, synth, logger, cfg.Port, cfg.StaticDir)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		log.Println("shutting down...")
		if sched != nil {
			sched.Stop()
		}
		if err := srv.Stop(); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Printf("server stopped: %v", err)
	}
}

// newMirror picks the mirror backend: an automation webhook when
// WEBHOOK_URL is set, a Google Sheet when sheet credentials are set, nil
// (mirroring disabled) otherwise.
func newMirror(cfg *config.Config) mirror.Mirror {
	if cfg.WebhookURL != "" {
		log.Printf("mirroring log rows to webhook")
		return mirror.NewWebhook(cfg.WebhookURL)
	}
	if cfg.SheetID != "" && cfg.GoogleCredentialsJSON != "" && cfg.GoogleRefreshToken != "" {
		m, err := mirror.NewSheets(context.Background(), cfg.GoogleCredentialsJSON, cfg.GoogleRefreshToken, cfg.SheetID, cfg.SheetRange)
		if err != nil {
			log.Printf("failed to init sheets mirror, mirroring disabled: %v", err)
			return nil
		}
		log.Printf("mirroring log rows to spreadsheet %s", cfg.SheetID)
		return m
	}
	log.Printf("mirroring disabled")
	return nil
}

// dailyReport summarizes the previous day of the event log and sends the
// summary through the same mirror the row payloads use.
func dailyReport(logger *storage.Logger, m mirror.Mirror) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		events, err := logger.LoadEvents()
		if err != nil {
			return err
		}
		stats := analytics.AnalyzeDailyEvents(events, time.Now().UTC())
		summary := stats.GenerateReportSummary()
		log.Printf("📊 daily report:\n%s", summary)

		if m != nil {
			body, err := stats.ToJSON()
			if err != nil {
				return err
			}
			mirror.Dispatch(m, mirror.Payload{
				Kind:   mirror.KindDailyReport,
				TS:     time.Now().UTC().Format(time.RFC3339),
				Row:    []string{stats.Date, summary},
				Fields: map[string]string{"date": stats.Date, "stats": body},
			})
		}
		return nil
	}
}
