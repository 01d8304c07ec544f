package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// ResolvedStore хранилище отметок "кадр разрешен". Отметка — пара
// (кадр -> количество объектов на момент разрешения), живет отдельно
// от документа аннотаций.
type ResolvedStore interface {
	GetMarks(ctx context.Context, videoName string) (map[int]int, error)
	SetMark(ctx context.Context, videoName string, frame, objectCount int) error
	DeleteMark(ctx context.Context, videoName string, frame int) error
}

// redisResolvedStore реализация ResolvedStore поверх Redis.
// Отметки одного видео лежат в одном хеше.
type redisResolvedStore struct {
	client *redis.Client
}

// NewResolvedStore создает хранилище отметок поверх Redis
func NewResolvedStore(client *redis.Client) ResolvedStore {
	return &redisResolvedStore{
		client: client,
	}
}

func resolvedKey(videoName string) string {
	return "resolved:" + videoName
}

// GetMarks читает все отметки видео
func (s *redisResolvedStore) GetMarks(ctx context.Context, videoName string) (map[int]int, error) {
	raw, err := s.client.HGetAll(ctx, resolvedKey(videoName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read resolved marks: %w", err)
	}

	marks := make(map[int]int, len(raw))
	for frameStr, countStr := range raw {
		frame, err := strconv.Atoi(frameStr)
		if err != nil {
			continue
		}
		count, err := strconv.Atoi(countStr)
		if err != nil {
			continue
		}
		marks[frame] = count
	}
	return marks, nil
}

// SetMark записывает отметку разрешения кадра
func (s *redisResolvedStore) SetMark(ctx context.Context, videoName string, frame, objectCount int) error {
	err := s.client.HSet(ctx, resolvedKey(videoName), strconv.Itoa(frame), strconv.Itoa(objectCount)).Err()
	if err != nil {
		return fmt.Errorf("failed to set resolved mark: %w", err)
	}
	return nil
}

// DeleteMark удаляет отметку разрешения кадра
func (s *redisResolvedStore) DeleteMark(ctx context.Context, videoName string, frame int) error {
	err := s.client.HDel(ctx, resolvedKey(videoName), strconv.Itoa(frame)).Err()
	if err != nil {
		return fmt.Errorf("failed to delete resolved mark: %w", err)
	}
	return nil
}
