package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"decompress/internal/adapters/httpapi"
	"decompress/internal/adapters/llm"
	"decompress/internal/adapters/mailer"
	"decompress/internal/adapters/repo"
	"decompress/internal/adapters/supabase"
	"decompress/internal/domain"
	"decompress/internal/infra/cache"
	"decompress/internal/infra/config"
	"decompress/internal/infra/db"
	httpinfra "decompress/internal/infra/http"
	applog "decompress/internal/infra/log"
	"decompress/internal/infra/metrics"
	"decompress/internal/infra/queue"
	"decompress/internal/usecase/channels"
	"decompress/internal/usecase/chat"
	"decompress/internal/usecase/digest"
	"decompress/internal/usecase/threads"
	"decompress/internal/usecase/usage"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.PGDSN, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()
	store := repo.NewPostgres(pool)

	var (
		authenticator domain.Authenticator = supabase.NewAuth(cfg.Supabase.URL, cfg.Supabase.AnonKey, 10*time.Second)
		locker        domain.RunLocker
	)
	if cfg.Supabase.URL == "" {
		logger.Warn().Msg("api: SUPABASE_URL не задан, пользовательские запросы будут отклонены")
	}
	if cfg.RedisAddr != "" {
		redisCache, err := cache.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error().Err(err).Msg("api: Redis недоступен, работаем без кэша и блокировок")
		} else {
			defer redisCache.Close()
			authenticator = supabase.NewCachedAuth(authenticator, redisCache, time.Minute, applog.Component(logger, "auth"))
			locker = redisCache
		}
	}

	var publisher domain.EventPublisher
	if cfg.AMQPURL != "" {
		rabbit, err := queue.NewRabbitPublisher(cfg.AMQPURL, "")
		if err != nil {
			logger.Error().Err(err).Msg("api: RabbitMQ недоступен, события заявок не публикуются")
		} else {
			defer rabbit.Close()
			publisher = rabbit
		}
	}

	mail := newMailer(cfg)
	if mail == nil {
		logger.Warn().Msg("api: RESEND_API_KEY не задан, письма не отправляются")
	}

	models, err := llm.NewRegistry(ctx, llm.Config{
		DefaultProvider: cfg.AI.Provider,
		Model:           cfg.AI.Model,
		AnthropicAPIKey: cfg.AI.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.AI.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.AI.OpenAIBaseURL,
		GoogleAPIKey:    cfg.AI.GoogleAPIKey,
		Timeout:         cfg.AI.Timeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось настроить LLM провайдеров")
	}

	sender := digest.NewSender(store, mail, cfg.AppURL, applog.Component(logger, "digest_sender"))
	orchestrator := digest.NewOrchestrator(store, sender, locker, digest.OrchestratorConfig{
		BatchSize:   cfg.Digest.BatchSize,
		Concurrency: cfg.Digest.Concurrency,
		BatchDelay:  cfg.Digest.BatchDelay,
		LockTTL:     cfg.Digest.LockTTL,
	}, applog.Component(logger, "digest"))
	quota := usage.NewService(store, cfg.Limits.MonthlyQueries, cfg.Location(), applog.Component(logger, "usage"))
	relay := chat.NewRelay(quota, models, store, cfg.Limits.MaxOutput, applog.Component(logger, "chat"))
	channelService := channels.NewService(store, mail, publisher, channels.Config{
		AdminEmail: cfg.Channels.AdminEmail,
		RoutingKey: cfg.Channels.RoutingKey,
	}, applog.Component(logger, "channels"))

	server := httpinfra.NewServer(applog.Component(logger, "http"), cfg.CORSOrigins)
	httpapi.New(httpapi.Deps{
		Digest:         orchestrator,
		Weekly:         digest.NewWeekly(store),
		Chat:           relay,
		Threads:        threads.NewService(store),
		Channels:       channelService,
		Auth:           authenticator,
		DigestSecrets:  []string{cfg.Digest.APIKey, cfg.Digest.CronSecret},
		RequestTimeout: 30 * time.Second,
		Logger:         applog.Component(logger, "api"),
	}).Mount(server.Router)

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)
	go func() {
		if err := server.Start(":" + strconv.Itoa(cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: ошибка остановки сервера")
	}
}

// newMailer возвращает nil-интерфейс, если доставка не настроена.
func newMailer(cfg config.AppConfig) domain.Mailer {
	m := mailer.NewResend(cfg.Resend.APIKey, cfg.Resend.FromName, cfg.Resend.FromEmail, 30*time.Second)
	if m == nil {
		return nil
	}
	return m
}
