package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/layer-3/walletlink/adapters/events"
	"github.com/layer-3/walletlink/adapters/session"
	"github.com/layer-3/walletlink/adapters/store"
	"github.com/layer-3/walletlink/adapters/tokenizer"
	"github.com/layer-3/walletlink/config"
	"github.com/layer-3/walletlink/ports"
	"github.com/layer-3/walletlink/service"
	transporthttp "github.com/layer-3/walletlink/transport/http"
	"github.com/layer-3/walletlink/transport/telegram"
)

// infra is the messaging and storage backend, Redis or in process
type infra struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	nonces     ports.NonceStore
	close      func()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, reading from environment")
	}

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Generate the attestation signing key (you would normally load this from somewhere secure)
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate attestation key")
	}

	backend, err := setupInfra(cfg, watermill.NewStdLogger(false, false))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up messaging")
	}
	defer backend.close()

	tok := tokenizer.NewJWTTokenizer(privateKey)
	eventPub := events.NewWatermillPublisher(backend.publisher)

	opener := session.NewStreamOpener(backend.publisher, session.Config{
		ChainID:   cfg.WCChainID,
		ProjectID: cfg.WCProjectID,
	})
	if err := opener.Start(ctx, backend.subscriber); err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe to wallet session events")
	}

	correlator := service.NewSessionCorrelator(opener,
		service.WithPairingTimeout(cfg.PairingTimeout),
		service.WithEventPublisher(eventPub),
		service.WithTokenizer(tok),
	)
	verifier := service.NewChallengeVerifier(backend.nonces, correlator, cfg.PairingTimeout)

	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Telegram bot")
	}

	queue := service.NewDeliveryQueue(ctx, telegram.NewSender(botAPI))
	pairing := service.NewPairingService(correlator, queue, cfg.BackendURL)
	bot := telegram.NewBot(botAPI, pairing)

	// Setup Gin router
	limiter := transporthttp.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	server := &http.Server{
		Addr:              ":" + cfg.AppServerPort,
		Handler:           transporthttp.SetupRouter(verifier, tok, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server failed")
			stop()
		}
	}()

	go func() {
		if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Telegram bot stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down server")
	}
	<-queue.Done()
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
}

// setupInfra connects to Redis when REDIS_URL is set and falls back to an
// in-process pub/sub and nonce store otherwise
func setupInfra(cfg *config.Config, logger watermill.LoggerAdapter) (*infra, error) {
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set, using in-process messaging and nonce store")
		// Blocking publish keeps session events in order for the single subscriber
		pubSub := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		}, logger)
		return &infra{
			publisher:  pubSub,
			subscriber: pubSub,
			nonces:     store.NewMemoryStore(),
			close: func() {
				if err := pubSub.Close(); err != nil {
					log.Error().Err(err).Msg("Failed to close pub/sub")
				}
			},
		}, nil
	}

	// Parse Redis URL and create client
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	redisClient := redis.NewClient(opts)

	// Initialize Watermill Redis publisher
	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient,
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	// No consumer group: every instance reads the whole event stream and
	// keeps the events for the attempts it owns
	subscriber, err := redisstream.NewSubscriber(
		redisstream.SubscriberConfig{
			Client: redisClient,
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	return &infra{
		publisher:  publisher,
		subscriber: subscriber,
		nonces:     store.NewRedisStore(redisClient),
		close: func() {
			if err := subscriber.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close subscriber")
			}
			if err := publisher.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close publisher")
			}
			if err := redisClient.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Redis client")
			}
		},
	}, nil
}
