// Command accounts-server starts the accounts gRPC server.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/goph-accounts/internal/config"
	"github.com/and161185/goph-accounts/internal/crypto"
	"github.com/and161185/goph-accounts/internal/limiter"
	"github.com/and161185/goph-accounts/internal/migrate"
	"github.com/and161185/goph-accounts/internal/notify"
	"github.com/and161185/goph-accounts/internal/otp"
	"github.com/and161185/goph-accounts/internal/repository/postgres"
	grpcserver "github.com/and161185/goph-accounts/internal/server/grpc"
	"github.com/and161185/goph-accounts/internal/service"
	"github.com/and161185/goph-accounts/internal/telemetry"
	"github.com/and161185/goph-accounts/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const serviceName = "accounts"

// main loads configuration, runs migrations, and starts the gRPC server.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		// logger is not configured yet
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, version, cfg.OTelEndpoint)
	if err != nil {
		logger.Fatal("telemetry setup", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("postgres pool", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		logger.Fatal("postgres ping", zap.Error(err))
	}

	// Repositories
	accountRepo := postgres.NewAccountRepo(db)
	otpRepo := postgres.NewOTPRepo(db)
	lim := limiter.NewPG(db.Pool, cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlockFor)

	tokens, err := token.New(token.Config{
		AccessSecret:  []byte(cfg.AccessSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		Issuer:        cfg.Issuer,
	})
	if err != nil {
		logger.Fatal("token service", zap.Error(err))
	}
	otpEngine, err := otp.New(otpRepo, otp.Config{
		Secret: cfg.OTPSecret,
		Digits: cfg.OTPDigits,
		Window: cfg.OTPWindow,
	})
	if err != nil {
		logger.Fatal("otp engine", zap.Error(err))
	}

	// Notifications
	var profiles notify.ProfileSender
	if cfg.ProfileURL != "" {
		profiles = notify.NewProfileClient(cfg.ProfileURL, &http.Client{Timeout: 10 * time.Second})
	}
	var mailer notify.MailSender
	if cfg.SMTP.Host != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	dispatcher := notify.NewDispatcher(logger.Named("notify"), profiles, mailer, notify.Options{
		Workers: cfg.NotifyWorkers,
		Queue:   cfg.NotifyQueue,
		Rate:    cfg.NotifyRate,
	})
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := dispatcher.Close(dctx); err != nil {
			logger.Warn("notify drain", zap.Error(err))
		}
	}()

	// Services
	accountSvc := service.NewAccountService(service.Deps{
		Accounts: accountRepo,
		Hasher:   crypto.NewHasher(cfg.BcryptCost),
		Tokens:   tokens,
		OTP:      otpEngine,
		Limiter:  lim,
		Notifier: dispatcher,
		Logger:   logger.Named("accounts"),
	})

	// gRPC server with interceptors
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.AuthUnary(accountSvc),
		),
	}
	if cfg.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	} else {
		logger.Warn("TLS disabled, serving plaintext")
	}
	s := grpc.NewServer(opts...)

	grpcserver.RegisterAccountsServer(s, grpcserver.New(accountSvc))

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_SERVING)
	if cfg.Dev {
		reflection.Register(s)
	}

	// Listen
	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.TLSCert != ""))
		errCh <- s.Serve(lis)
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		hs.Shutdown()
		// graceful shutdown
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func newLogger(cfg config.Config) *zap.Logger {
	zc := zap.NewProductionConfig()
	if cfg.Dev {
		zc = zap.NewDevelopmentConfig()
	}
	if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil && !cfg.Dev {
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zc.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
