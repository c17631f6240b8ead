package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/joho/godotenv"

	"lamisys/internal/alarm"
	"lamisys/internal/auth"
	"lamisys/internal/config"
	"lamisys/internal/domain"
	"lamisys/internal/httpapi"
	"lamisys/internal/notifications"
	"lamisys/internal/service"
	"lamisys/internal/store/postgres"
)

func main() {
	// Missing .env is fine; the environment wins over the file.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	var (
		authSvc     *service.AuthService
		userSvc     *service.UserService
		materialSvc *service.MaterialService
		alarmSvc    *service.AlarmService
		emailSvc    *service.EmailService
		pushSvc     *service.PushService
		scheduler   *alarm.Scheduler
		dbPing      func(context.Context) error
	)

	if cfg.DBDSN != "" {
		pgPool, err := postgres.Open(context.Background(), cfg.DBDSN)
		if err != nil {
			logger.Error("db open failed", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		users := postgres.NewUsersStore(pgPool)
		sessions := postgres.NewSessionsStore(pgPool)
		materials := postgres.NewMaterialsStore(pgPool)
		alarmRules := postgres.NewAlarmRulesStore(pgPool)
		smtpSettings := postgres.NewSMTPSettingsStore(pgPool)
		devices := postgres.NewUserDevicesStore(pgPool)

		if err := bootstrapAdminUser(context.Background(), logger, users, cfg.AdminBootstrapEmail, cfg.AdminBootstrapName, cfg.AdminBootstrapPassword); err != nil {
			logger.Error("bootstrap admin failed", "err", err)
			os.Exit(1)
		}

		emailSvc = &service.EmailService{Settings: smtpSettings}
		authSvc = &service.AuthService{
			Users:      users,
			Sessions:   sessions,
			Mailer:     emailSvc,
			SessionTTL: cfg.SessionTTL,
			Logger:     logger,
		}
		userSvc = &service.UserService{
			Users:    users,
			Sessions: sessions,
			Mailer:   emailSvc,
			Logger:   logger,
		}
		materialSvc = &service.MaterialService{Materials: materials}

		pushSvc = &service.PushService{
			Devices: devices,
			Logger:  logger,
		}
		if cfg.FCMCredentialsPath != "" {
			sender, err := notifications.NewFCMSender(context.Background(), cfg.FCMProjectID, cfg.FCMCredentialsPath)
			if err != nil {
				logger.Error("fcm init failed", "err", err)
				os.Exit(1)
			}
			pushSvc.Sender = sender
			logger.Info("push notifications enabled")
		} else {
			logger.Info("push notifications disabled: APP_FCM_CREDENTIALS not set")
		}

		scheduler = &alarm.Scheduler{
			Rules:     alarmRules,
			Materials: materials,
			Engine:    &alarm.Engine{Logger: logger},
			Notifier:  emailSvc,
			Push:      pushSvc,
			Logger:    logger,
		}
		alarmSvc = &service.AlarmService{
			Rules:     alarmRules,
			Scheduler: scheduler,
			Interval:  cfg.AlarmInterval,
		}

		if cfg.AlarmAutoStart {
			scheduler.Start(cfg.AlarmInterval)
		}

		dbPing = pgPool.Ping
	} else {
		logger.Warn("running without a database: APP_DB_DSN not set")
	}

	router := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:       logger,
		IsProd:       cfg.IsProd(),
		DBPing:       dbPing,
		Auth:         authSvc,
		Users:        userSvc,
		Materials:    materialSvc,
		Alarms:       alarmSvc,
		Email:        emailSvc,
		Push:         pushSvc,
		CookieCodec:  auth.NewCookieCodec([]byte(cfg.CookieSecret)),
		CookieSecure: cfg.CookieSecure(),
		SessionTTL:   cfg.SessionTTL,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		if scheduler != nil {
			scheduler.Stop()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

func bootstrapAdminUser(ctx context.Context, logger *slog.Logger, users *postgres.UsersStore, email, name, password string) error {
	if password == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if len(password) < 12 {
		return errors.New("APP_ADMIN_BOOTSTRAP_PASSWORD: must be at least 12 characters")
	}

	_, err := users.GetUserByEmail(ctx, email)
	if err == nil {
		logger.Info("admin bootstrap: user already exists", "email", email)
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("admin bootstrap: lookup user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("admin bootstrap: hash password: %w", err)
	}

	_, err = users.CreateUser(ctx, domain.User{
		Name:  name,
		Email: email,
		Role:  domain.RoleAdmin,
	}, hash)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			logger.Info("admin bootstrap: user already exists", "email", email)
			return nil
		}
		return fmt.Errorf("admin bootstrap: create user: %w", err)
	}

	logger.Info("admin bootstrap: created admin user", "email", email)
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
