package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"decompress/internal/domain"
)

type stubRepo struct {
	count    int
	err      error
	since    time.Time
	inserted []domain.QueryRecord
	insErr   error
}

func (s *stubRepo) CountQueriesSince(_ context.Context, _ string, since time.Time) (int, error) {
	s.since = since
	return s.count, s.err
}

func (s *stubRepo) InsertQuery(_ context.Context, _ string, rec domain.QueryRecord) error {
	s.inserted = append(s.inserted, rec)
	return s.insErr
}

func newService(repo *stubRepo, now time.Time, loc *time.Location) *Service {
	s := NewService(repo, 0, loc, zerolog.Nop())
	s.now = func() time.Time { return now }
	return s
}

func TestUsageBoundary(t *testing.T) {
	now := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

	u := newService(&stubRepo{count: 199}, now, time.UTC).Usage(context.Background(), "u1")
	if u.LimitReached || u.QueriesRemaining != 1 || u.QueriesUsed != 199 {
		t.Fatalf("при 199 запросах лимит не достигнут: %+v", u)
	}

	u = newService(&stubRepo{count: 200}, now, time.UTC).Usage(context.Background(), "u1")
	if !u.LimitReached || u.QueriesRemaining != 0 {
		t.Fatalf("при 200 запросах лимит достигнут: %+v", u)
	}

	u = newService(&stubRepo{count: 250}, now, time.UTC).Usage(context.Background(), "u1")
	if u.QueriesRemaining != 0 {
		t.Fatalf("остаток не может быть отрицательным: %+v", u)
	}
}

func TestUsageFailsClosed(t *testing.T) {
	u := newService(&stubRepo{err: errors.New("db down")}, time.Now(), time.UTC).Usage(context.Background(), "u1")
	if !u.LimitReached || u.QueriesRemaining != 0 || u.QueriesUsed != DefaultMonthlyLimit {
		t.Fatalf("при ошибке ожидали исчерпанный лимит: %+v", u)
	}
}

func TestUsageCountsFromLocalMonthStart(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	now := time.Date(2025, 5, 31, 22, 30, 0, 0, time.UTC)
	repo := &stubRepo{}
	newService(repo, now, loc).Usage(context.Background(), "u1")

	want := time.Date(2025, 6, 1, 0, 0, 0, 0, loc)
	if !repo.since.Equal(want) {
		t.Fatalf("ожидали начало месяца %s, получили %s", want, repo.since)
	}
}

func TestRecordSwallowsError(t *testing.T) {
	repo := &stubRepo{insErr: errors.New("insert failed")}
	s := newService(repo, time.Now(), time.UTC)
	s.Record(context.Background(), "u1", domain.QueryRecord{Provider: domain.ProviderOpenAI, Model: "gpt-4o"})
	if len(repo.inserted) != 1 {
		t.Fatalf("ожидали попытку записи")
	}
}
