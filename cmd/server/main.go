// cmd/server/main.go
package main

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/unclebandit/wabroadcast-backend/internal/activity"
	"github.com/unclebandit/wabroadcast-backend/internal/channel"
	"github.com/unclebandit/wabroadcast-backend/internal/config"
	"github.com/unclebandit/wabroadcast-backend/internal/controller"
	"github.com/unclebandit/wabroadcast-backend/internal/db"
	"github.com/unclebandit/wabroadcast-backend/internal/events"
	"github.com/unclebandit/wabroadcast-backend/internal/handler"
	"github.com/unclebandit/wabroadcast-backend/internal/repository"
	"github.com/unclebandit/wabroadcast-backend/internal/scheduler"
	"github.com/unclebandit/wabroadcast-backend/internal/service"
	"github.com/unclebandit/wabroadcast-backend/internal/store"
)

func main() {
	// Not fatal when absent: containers pass everything via the environment.
	_ = godotenv.Load()

	log := newLogger(os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}

	records, err := store.New(cfg.StoreDir, cfg.StoreSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("record store init failed")
	}
	campaignRecords, err := records.Collection("campaigns")
	if err != nil {
		log.Fatal().Err(err).Msg("record store init failed")
	}
	listRecords, err := records.Collection("recipient_lists")
	if err != nil {
		log.Fatal().Err(err).Msg("record store init failed")
	}

	campaignRepo := repository.NewCampaignRepository(campaignRecords)
	listRepo := repository.NewListRepository(listRecords)

	var sink activity.Sink = activity.NopSink{}
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("activity database unreachable")
		}
		pg, err := activity.NewPostgresSink(conn, log)
		if err != nil {
			log.Fatal().Err(err).Msg("activity schema init failed")
		}
		sink = pg
		log.Info().Msg("activity log writing to postgres")
	}

	bus := events.NewBus()
	if cfg.AMQPURL != "" {
		pub, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.Fatal().Err(err).Msg("amqp connect failed")
		}
		defer pub.Close()
		bus.AttachPublisher(pub)
		log.Info().Str("exchange", cfg.AMQPExchange).Msg("mirroring events to amqp")
	}

	gateway := channel.NewHTTPGateway(cfg.GatewayURL)

	sender := service.NewSender(campaignRepo, gateway, sink, bus, log)
	if cfg.SendRatePerMinute > 0 {
		sender.Limiter = rate.NewLimiter(rate.Limit(float64(cfg.SendRatePerMinute)/60.0), 1)
	}

	// Campaigns left in "sending" by a crash must not look alive.
	if err := sender.ReconcileInterrupted(); err != nil {
		log.Fatal().Err(err).Msg("startup reconciliation failed")
	}

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		ListRepo:     listRepo,
		Activity:     sink,
		Log:          log,
	}

	sched := scheduler.New(campaignRepo, sender, log)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("scheduler start failed")
	}
	defer sched.Stop()

	campaignController := &controller.CampaignController{
		CampaignRepo:    campaignRepo,
		CampaignService: campaignService,
		Sender:          sender,
	}
	listHandler := &handler.ListHandler{Repo: listRepo}

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaign)
	r.Put("/campaigns/{id}", campaignController.UpdateCampaign)
	r.Delete("/campaigns/{id}", campaignController.DeleteCampaign)
	r.Post("/campaigns/{id}/clone", campaignController.CloneCampaign)
	r.Post("/campaigns/{id}/start", campaignController.StartCampaign)
	r.Post("/campaigns/{id}/pause", campaignController.PauseCampaign)
	r.Post("/campaigns/{id}/resume", campaignController.ResumeCampaign)
	r.Post("/campaigns/{id}/stop", campaignController.StopCampaign)
	r.Post("/campaigns/{id}/retry", campaignController.RetryFailed)
	r.Get("/campaigns/{id}/status", campaignController.GetStatus)
	r.Get("/campaigns/{id}/export", campaignController.ExportResults)
	r.Post("/campaigns/{id}/personalized-preview", campaignController.PersonalizedPreview)

	// Recipient list routes
	r.Post("/lists", listHandler.CreateList)
	r.Get("/lists", listHandler.ListLists)
	r.Get("/lists/search", listHandler.SearchRecipients)
	r.Get("/lists/{id}", listHandler.GetList)
	r.Put("/lists/{id}", listHandler.UpdateList)
	r.Delete("/lists/{id}", listHandler.DeleteList)
	r.Post("/lists/{id}/clone", listHandler.CloneList)
	r.Post("/lists/{id}/recipients", listHandler.AddRecipient)
	r.Put("/lists/{id}/recipients/{number}", listHandler.UpdateRecipient)
	r.Delete("/lists/{id}/recipients/{number}", listHandler.RemoveRecipient)

	// CSV import helpers
	r.Post("/import", listHandler.ImportCSV)
	r.Get("/import/template", listHandler.DownloadTemplate)

	log.Info().Str("addr", cfg.ListenAddr).Msg("🚀 server running")
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	switch strings.ToLower(level) {
	case "trace":
		lvl = zerolog.TraceLevel
	case "debug":
		lvl = zerolog.DebugLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	}

	out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
