package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"flag"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/presence/adapters/encoder"
	"github.com/layer-3/presence/adapters/events"
	"github.com/layer-3/presence/adapters/locker"
	"github.com/layer-3/presence/adapters/store"
	"github.com/layer-3/presence/adapters/submitter"
	"github.com/layer-3/presence/adapters/tokenizer"
	"github.com/layer-3/presence/config"
	"github.com/layer-3/presence/internal/eth"
	"github.com/layer-3/presence/service"
	"github.com/layer-3/presence/transport/http"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Attestation signing key. An ephemeral key only makes sense for local
	// development; attestations signed with it cannot be verified later.
	var key eth.SigningKey
	if cfg.Signing.PrivateKey != "" {
		key, err = eth.ParseSigningKey(cfg.Signing.PrivateKey)
	} else {
		key, err = eth.GenerateSigningKey()
		if err == nil {
			logger.Warn("no signing key configured, generated an ephemeral one", "address", key.Address())
		}
	}
	if err != nil {
		logger.Error("failed to initialize signing key", "error", err)
		os.Exit(1)
	}

	signer, err := eth.NewSigner(key, eth.Scheme(cfg.Signing.Scheme))
	if err != nil {
		logger.Error("failed to create signer", "error", err)
		os.Exit(1)
	}
	logger.Info("attestation signer ready", "address", signer.Address(), "scheme", signer.Scheme())

	// Key pair for presence tokens. These are short-lived, so a fresh key
	// per process is fine.
	tokenKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		logger.Error("failed to generate token key", "error", err)
		os.Exit(1)
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("failed to parse Redis URL", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(opts)

	wmLogger := watermill.NewStdLogger(false, false)
	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: redisClient},
		wmLogger,
	)
	if err != nil {
		logger.Error("failed to create event publisher", "error", err)
		os.Exit(1)
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	voiceEncoder := encoder.NewHTTPEncoder(cfg.Encoder.URL, cfg.Backend.Timeout.Std())

	enrollmentService := service.NewEnrollmentService(st, voiceEncoder, logger)
	verificationService := service.NewVerificationService(cfg.Verification, nil, service.Dependencies{
		Store:  st,
		Locker: locker.NewRedisLocker(redisClient),
		Events: events.NewWatermillPublisher(publisher),
		Submitter: submitter.NewHTTPSubmitter(
			cfg.Backend.BaseURL, cfg.Backend.APIKey,
			cfg.Backend.Timeout.Std(), cfg.Backend.MaxRetries, cfg.Backend.RetryDelay.Std(),
			logger),
		Encoder:        voiceEncoder,
		Signer:         signer,
		FallbackSecret: []byte(cfg.Signing.FallbackSecret),
		Logger:         logger,
	})

	router := http.SetupRouter(enrollmentService, verificationService, st, tokenizer.NewJWTTokenizer(tokenKey))

	logger.Info("starting server", "addr", cfg.Server.Addr)
	if err := router.Run(cfg.Server.Addr); err != nil {
		logger.Error("server terminated", "error", err)
		os.Exit(1)
	}
}
