// Command server runs the turf booking HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/turf-booking/internal/config"
	"github.com/iliyamo/turf-booking/internal/database"
	"github.com/iliyamo/turf-booking/internal/gateway"
	"github.com/iliyamo/turf-booking/internal/handler"
	"github.com/iliyamo/turf-booking/internal/logging"
	"github.com/iliyamo/turf-booking/internal/notify"
	"github.com/iliyamo/turf-booking/internal/queue"
	"github.com/iliyamo/turf-booking/internal/repository"
	"github.com/iliyamo/turf-booking/internal/router"
	"github.com/iliyamo/turf-booking/internal/service"
	"github.com/iliyamo/turf-booking/internal/utils"
)

type options struct {
	EnvFile     string `long:"env-file" default:".env" description:"dotenv file loaded before reading the environment"`
	SkipMigrate bool   `long:"skip-migrate" description:"do not apply the schema on startup"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warnf("could not load %s", opts.EnvFile)
	}

	cfg := config.Load()
	logging.Setup(cfg.Env, cfg.LogLevel)

	if err := run(cfg, opts); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}

func run(cfg config.Config, opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if !opts.SkipMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	if err := bootstrapAdmin(ctx, cfg, users); err != nil {
		return err
	}

	games := repository.NewGameRepo(db)
	slots := repository.NewSlotRepo(db)
	closures := repository.NewClosureRepo(db)
	bookings := repository.NewBookingRepo(db)
	scans := repository.NewScanEventRepo(db)
	loc := cfg.Location()

	bookingSvc := service.NewBookingService(games, slots, closures, bookings, service.BookingConfig{
		ScanSecret: cfg.Scan.Secret,
		ScanTTL:    cfg.Scan.ExpiresIn,
		Location:   loc,
	})
	slotSvc := service.NewSlotService(games, slots)
	closureSvc := service.NewClosureService(closures)
	scanSvc := service.NewScanService(bookings, scans, cfg.Scan.Secret, loc, nil)

	var gw gateway.Gateway
	if cfg.Gateway.Enabled() {
		gw = gateway.NewRazorpay(cfg.Gateway.KeyID, cfg.Gateway.KeySecret)
	} else {
		logrus.Warn("payment gateway keys missing; payment endpoints are disabled")
	}
	delivery := deliveryNotifier(cfg)
	var notifier notify.Notifier = delivery
	if cfg.AMQPURL != "" {
		notifier = queue.NewPublisher(cfg.AMQPURL)
	}
	paymentSvc := service.NewPaymentService(bookingSvc, repository.NewPaymentRepo(db), gw, notifier, cfg.Gateway.Currency)

	e := router.New(router.Handlers{
		Auth: handler.NewAuthHandler(handler.AuthSettings{
			JWTSecret:  cfg.JWTSecret,
			AccessTTL:  cfg.AccessTTL(),
			RefreshTTL: cfg.RefreshTTL(),
			BcryptCost: cfg.BcryptCost,
		}, users, repository.NewTokenRepo(db)),
		Catalog:  handler.NewCatalogHandler(games, bookingSvc, closureSvc),
		Bookings: handler.NewBookingHandler(bookingSvc),
		Payments: handler.NewPaymentHandler(paymentSvc),
		Admin:    handler.NewAdminHandler(bookingSvc, slotSvc, closureSvc, scanSvc, scans),
		DB:       db,
	}, router.Options{
		JWTSecret:        cfg.JWTSecret,
		CORSOrigins:      cfg.CORSOrigins,
		APIRateLimit:     config.LoadRateLimitConfig("RATE_LIMIT", config.DefaultAPIRateLimit),
		PaymentRateLimit: config.LoadRateLimitConfig("PAYMENT_RATE_LIMIT", config.DefaultPaymentRateLimit),
		Cache:            config.LoadCacheConfig(),
		Redis:            rdb,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logrus.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "tz": loc.String()}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.AMQPURL != "" {
		g.Go(func() error {
			return queue.StartBookingConsumer(gctx, cfg.AMQPURL, delivery)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logrus.Info("shutting down")
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// deliveryNotifier is the final sink for booking confirmations: SMTP when
// configured, otherwise the log.
func deliveryNotifier(cfg config.Config) notify.Notifier {
	if cfg.Mail.Enabled() {
		return notify.NewMailer(cfg.Mail)
	}
	return notify.LogNotifier{}
}

// bootstrapAdmin creates the admin account from ADMIN_EMAIL/ADMIN_PASSWORD
// the first time the server starts.
func bootstrapAdmin(ctx context.Context, cfg config.Config, users *repository.UserRepo) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	if len(cfg.AdminPassword) < utils.MinPasswordLength {
		logrus.Warn("ADMIN_PASSWORD too short; admin bootstrap skipped")
		return nil
	}
	hash, err := utils.HashPassword(cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		return err
	}
	created, err := users.EnsureAdmin(ctx, cfg.AdminEmail, hash)
	if err != nil {
		return err
	}
	if created {
		logrus.WithField("email", repository.NormalizeEmail(cfg.AdminEmail)).Info("admin account created")
	}
	return nil
}

var _ handler.Pinger = (*sqlx.DB)(nil)
