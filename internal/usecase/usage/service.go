package usage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"decompress/internal/domain"
)

// DefaultMonthlyLimit лимит запросов к чату в месяц.
const DefaultMonthlyLimit = 200

// Service считает запросы к чату и решает, можно ли задать ещё один.
type Service struct {
	repo  domain.UsageRepo
	limit int
	loc   *time.Location
	now   func() time.Time
	log   zerolog.Logger
}

// NewService создаёт сервис квоты. Месяц отсчитывается в часовом поясе loc.
func NewService(repo domain.UsageRepo, limit int, loc *time.Location, logger zerolog.Logger) *Service {
	if limit <= 0 {
		limit = DefaultMonthlyLimit
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, limit: limit, loc: loc, now: time.Now, log: logger}
}

// MonthStart возвращает полночь первого дня месяца для t в loc.
func MonthStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// Usage возвращает использование за текущий месяц. При ошибке хранилища
// считает лимит исчерпанным.
func (s *Service) Usage(ctx context.Context, userID string) domain.QueryUsage {
	used, err := s.repo.CountQueriesSince(ctx, userID, MonthStart(s.now(), s.loc))
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("usage: не удалось посчитать запросы")
		return domain.QueryUsage{QueriesUsed: s.limit, QueriesRemaining: 0, LimitReached: true}
	}
	remaining := max(s.limit-used, 0)
	return domain.QueryUsage{QueriesUsed: used, QueriesRemaining: remaining, LimitReached: used >= s.limit}
}

// Record сохраняет запрос. Ошибка только логируется.
func (s *Service) Record(ctx context.Context, userID string, rec domain.QueryRecord) {
	if err := s.repo.InsertQuery(ctx, userID, rec); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Str("provider", string(rec.Provider)).Msg("usage: не удалось записать запрос")
	}
}
