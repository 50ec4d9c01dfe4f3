package threads

import (
	"context"
	"fmt"
	"strings"

	"decompress/internal/domain"
)

const (
	// DefaultTitle заголовок нового треда без названия.
	DefaultTitle = "New Chat"
	listLimit    = 50
	maxTitleLen  = 200
	maxVideos    = 50
)

// Service управляет чат-тредами пользователя.
type Service struct {
	repo domain.ThreadRepo
}

// NewService создаёт сервис тредов.
func NewService(repo domain.ThreadRepo) *Service {
	return &Service{repo: repo}
}

// List возвращает последние треды, при videoID только с этим видео.
func (s *Service) List(ctx context.Context, userID, videoID string) ([]domain.Thread, error) {
	threads, err := s.repo.ListThreads(ctx, userID, strings.TrimSpace(videoID), listLimit)
	if err != nil {
		return nil, fmt.Errorf("список тредов: %w", err)
	}
	if threads == nil {
		threads = []domain.Thread{}
	}
	return threads, nil
}

// Create создаёт тред. Пустой заголовок заменяется на DefaultTitle.
func (s *Service) Create(ctx context.Context, userID, title string, videoIDs []string) (domain.Thread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	if err := checkTitle(title); err != nil {
		return domain.Thread{}, err
	}
	if len(videoIDs) > maxVideos {
		return domain.Thread{}, &domain.ValidationError{Message: fmt.Sprintf("at most %d videoIds allowed", maxVideos)}
	}
	thread, err := s.repo.CreateThread(ctx, userID, title, dedupe(videoIDs))
	if err != nil {
		return domain.Thread{}, fmt.Errorf("создание треда: %w", err)
	}
	return thread, nil
}

// Get возвращает тред с сообщениями и видео.
func (s *Service) Get(ctx context.Context, userID, threadID string) (domain.ThreadDetail, error) {
	return s.repo.GetThread(ctx, userID, threadID)
}

// Rename меняет заголовок.
func (s *Service) Rename(ctx context.Context, userID, threadID, title string) (domain.Thread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Thread{}, &domain.ValidationError{Message: "title is required"}
	}
	if err := checkTitle(title); err != nil {
		return domain.Thread{}, err
	}
	return s.repo.RenameThread(ctx, userID, threadID, title)
}

// Delete удаляет тред вместе с сообщениями.
func (s *Service) Delete(ctx context.Context, userID, threadID string) error {
	return s.repo.DeleteThread(ctx, userID, threadID)
}

// AddMessage сохраняет сообщение пользователя или ассистента.
func (s *Service) AddMessage(ctx context.Context, userID, threadID string, role domain.ChatRole, content string) (domain.ThreadMessage, error) {
	if !role.Valid() {
		return domain.ThreadMessage{}, &domain.ValidationError{Message: "role must be user or assistant"}
	}
	if strings.TrimSpace(content) == "" {
		return domain.ThreadMessage{}, &domain.ValidationError{Message: "content is required"}
	}
	return s.repo.AddMessage(ctx, userID, threadID, role, content)
}

// SetVideos заменяет набор видео треда.
func (s *Service) SetVideos(ctx context.Context, userID, threadID string, videoIDs []string) error {
	if len(videoIDs) > maxVideos {
		return &domain.ValidationError{Message: fmt.Sprintf("at most %d videoIds allowed", maxVideos)}
	}
	return s.repo.ReplaceThreadVideos(ctx, userID, threadID, dedupe(videoIDs))
}

func checkTitle(title string) error {
	if len([]rune(title)) > maxTitleLen {
		return &domain.ValidationError{Message: fmt.Sprintf("title must be at most %d characters", maxTitleLen)}
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
