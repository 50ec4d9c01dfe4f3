package domain

import (
	"errors"
	"time"
)

var (
	// ErrNotFound сущность не найдена или принадлежит другому пользователю.
	ErrNotFound = errors.New("не найдено")
	// ErrRunInProgress рассылка этой периодичности уже идёт.
	ErrRunInProgress = errors.New("рассылка уже выполняется")
	// ErrRateLimited провайдер ограничил частоту запросов.
	ErrRateLimited = errors.New("превышен лимит запросов провайдера")
	// ErrUnauthorized токен отсутствует или недействителен.
	ErrUnauthorized = errors.New("не авторизован")
	// ErrQuotaExceeded исчерпан месячный лимит запросов.
	ErrQuotaExceeded = errors.New("Monthly query limit reached")
	// ErrMailerNotConfigured не задан ключ почтового провайдера.
	ErrMailerNotConfigured = errors.New("email delivery not configured")
)

// RateLimitError ошибка ограничения частоты с подсказкой паузы.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return ErrRateLimited.Error()
	}
	return e.Message
}

// Is позволяет сравнивать через errors.Is(err, ErrRateLimited).
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// ValidationError ошибка входных данных.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
