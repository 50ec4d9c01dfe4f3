package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"decompress/internal/adapters/mailer"
	"decompress/internal/adapters/repo"
	"decompress/internal/domain"
	"decompress/internal/infra/cache"
	"decompress/internal/infra/config"
	"decompress/internal/infra/db"
	applog "decompress/internal/infra/log"
	"decompress/internal/infra/metrics"
	"decompress/internal/usecase/digest"
	"decompress/internal/usecase/schedule"
)

func main() {
	once := flag.String("once", "", "выполнить одну рассылку (daily или weekly) и выйти")
	flag.Parse()

	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.PGDSN, int32(max(cfg.Digest.Concurrency, 5)))
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()
	store := repo.NewPostgres(pool)

	var locker domain.RunLocker
	if cfg.RedisAddr != "" {
		redisCache, err := cache.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error().Err(err).Msg("scheduler: Redis недоступен, прогоны без блокировки")
		} else {
			defer redisCache.Close()
			locker = redisCache
		}
	}

	var mail domain.Mailer
	if m := mailer.NewResend(cfg.Resend.APIKey, cfg.Resend.FromName, cfg.Resend.FromEmail, 30*time.Second); m != nil {
		mail = m
	} else {
		logger.Warn().Msg("scheduler: RESEND_API_KEY не задан, все отправки будут неуспешны")
	}

	sender := digest.NewSender(store, mail, cfg.AppURL, applog.Component(logger, "digest_sender"))
	orchestrator := digest.NewOrchestrator(store, sender, locker, digest.OrchestratorConfig{
		BatchSize:   cfg.Digest.BatchSize,
		Concurrency: cfg.Digest.Concurrency,
		BatchDelay:  cfg.Digest.BatchDelay,
		LockTTL:     cfg.Digest.LockTTL,
	}, applog.Component(logger, "digest"))

	scheduler, err := schedule.NewService(orchestrator, cfg.TZ, applog.Component(logger, "schedule"))
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: неверный часовой пояс")
	}

	if *once != "" {
		freq, err := domain.ParseFrequency(*once)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler: неверная периодичность")
		}
		if _, err := scheduler.RunOnce(ctx, freq); err != nil {
			logger.Fatal().Err(err).Msg("scheduler: прогон не выполнен")
		}
		return
	}

	if err := scheduler.Add(ctx, cfg.Digest.DailySchedule, domain.FrequencyDaily); err != nil {
		logger.Fatal().Err(err).Msg("scheduler: ошибка расписания")
	}
	if err := scheduler.Add(ctx, cfg.Digest.WeeklySchedule, domain.FrequencyWeekly); err != nil {
		logger.Fatal().Err(err).Msg("scheduler: ошибка расписания")
	}

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)
	logger.Info().Msg("scheduler: старт")
	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("scheduler: остановлен с ошибкой")
	}
	logger.Info().Msg("scheduler: остановка")
}
