package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"barberbook/internal/catalog"
	"barberbook/internal/config"
	"barberbook/internal/database"
	"barberbook/internal/gateway"
	"barberbook/internal/logger"
	"barberbook/internal/middleware"
	"barberbook/internal/modules/approval"
	"barberbook/internal/modules/booking"
	"barberbook/internal/modules/conversation"
	"barberbook/internal/modules/provider"
	"barberbook/internal/modules/recovery"
	"barberbook/internal/modules/reschedule"
	"barberbook/internal/modules/timer"
	jwtsvc "barberbook/internal/pkg/jwt"
	"barberbook/internal/repository"
	"barberbook/internal/schedule"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger.InitLoggers(cfg.LogFile)

	loc, err := cfg.Location()
	if err != nil {
		logger.ErrorLogger.Fatalf("bad timezone %q: %v", cfg.Timezone, err)
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.ErrorLogger.Fatal(err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.ErrorLogger.Fatal(err)
	}
	if err := repository.Migrate(db); err != nil {
		logger.ErrorLogger.Fatal(err)
	}

	bookingRepo := repository.NewBookingRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	blockedRepo := repository.NewBlockedSlotRepository(db)
	timerRepo := repository.NewTimerRepository(db)
	configRepo := repository.NewScheduleConfigRepository(db)

	ctx := context.Background()

	settings := schedule.NewSettings(configRepo)
	if err := settings.Init(ctx); err != nil {
		logger.ErrorLogger.Fatal(err)
	}

	store := booking.NewStore(bookingRepo, customerRepo, blockedRepo, settings, loc)
	timers := timer.NewScheduler(timerRepo, store.Locker())
	defer timers.Shutdown()

	hub := gateway.NewHub()
	defer hub.Close()

	approvals := approval.NewService(store, timers, hub, cat, cfg.ProviderUserID)
	approvals.RegisterHandlers()

	dialogs := conversation.NewManager(store, approvals, cat, hub, cfg.DaysAhead)
	reschedules := reschedule.NewService(store, approvals, hub)

	// Rebuild projection and timers before any traffic is admitted.
	if err := recovery.NewCoordinator(store, timers, approvals).Run(ctx); err != nil {
		logger.ErrorLogger.Fatal(err)
	}

	j := jwtsvc.New(cfg.JWTSecret, 24*time.Hour)

	dispatcher := gateway.NewDispatcher(hub, dialogs, approvals, reschedules, store, cfg.ProviderUserID, cfg.DaysAhead)
	wsHandler := gateway.NewWSHandler(hub, j, dispatcher, cfg.ProviderUserID)

	providerService := provider.NewService(store, approvals, j, cfg.ProviderUserID, cfg.ProviderPasswordHash)
	providerHandler := provider.NewHandler(providerService)

	r := gin.Default()
	r.GET("/ws", wsHandler.HandleWebSocket)

	v1 := r.Group("/api/v1")
	{
		providerHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("/provider")
		protected.Use(middleware.Auth(j), middleware.RequireProvider())
		{
			providerHandler.RegisterRoutes(protected)
		}
	}

	logger.InfoLogger.Infof("listening on %s", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		logger.ErrorLogger.Fatal(err)
	}
}
