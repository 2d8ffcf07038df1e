package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"cookiecraze/backend/internal/cache"
	"cookiecraze/backend/internal/config"
	"cookiecraze/backend/internal/events"
	"cookiecraze/backend/internal/httpapi"
	"cookiecraze/backend/internal/mail"
	"cookiecraze/backend/internal/reporting"
	"cookiecraze/backend/internal/service"
	"cookiecraze/backend/internal/store"
	"cookiecraze/backend/internal/store/memory"
	pgstore "cookiecraze/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	settings, err := config.LoadStoreSettings(cfg.StoreSettingsFile)
	if err != nil {
		log.Fatalf("store settings: %v", err)
	}
	loc := cfg.Location()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 4)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if cfg.DBAutoMigrate {
			if err := pg.Migrate(ctx); err != nil {
				log.Fatalf("postgres migration failed: %v", err)
			}
			log.Println("repository: schema applied")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	var (
		reportCache cache.ReportCache = cache.NoopReportCache{}
		carts       cache.CartStore   = cache.NewMemoryCartStore()
		signalStore cache.OrderSignal = &cache.MemoryOrderSignal{}
	)
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using in-process cache", err)
		} else {
			reportCache, carts, signalStore = redisCache, redisCache, redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: in-process")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			log.Printf("amqp unavailable (%v), order events disabled", err)
		} else {
			publisher = amqpPublisher
			closers = append(closers, amqpPublisher.Close)
			log.Println("events: amqp")
		}
	} else {
		log.Println("events: noop")
	}

	var mailer mail.Sender = &mail.LogSender{}
	if cfg.ResendAPIKey != "" {
		resend, err := mail.NewResendSender(cfg.ResendAPIKey, cfg.MailFrom)
		if err != nil {
			log.Printf("resend mailer misconfigured (%v), logging verification links instead", err)
		} else {
			mailer = resend
			log.Println("mail: resend")
		}
	} else {
		log.Println("mail: log")
	}

	reports := reporting.NewEngine(reportCache, time.Duration(cfg.ReportCacheTTLSeconds)*time.Second, loc, settings.TopItemsLimit)
	svc := service.New(repo, service.Options{
		Reports:        reports,
		Carts:          carts,
		Signal:         signalStore,
		Events:         publisher,
		Mailer:         mailer,
		Settings:       settings,
		Location:       loc,
		CartTTL:        time.Duration(cfg.CartTTLMinutes) * time.Minute,
		VerifyTokenTTL: time.Duration(cfg.VerifyTokenTTLHours) * time.Hour,
		PublicBaseURL:  cfg.PublicBaseURL,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		log.Printf("%s backend listening on %s", settings.StoreName, cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Printf("%v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.PublicBaseURL != "" {
		parsed, err := url.Parse(cfg.PublicBaseURL)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("PUBLIC_BASE_URL must be an absolute http(s) URL")
		}
	}
	return nil
}
