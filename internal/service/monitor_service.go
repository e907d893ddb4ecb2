package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
)

// ProgressReader reads the per-student progress of an exam.
type ProgressReader interface {
	GetProgress(ctx context.Context, examID uuid.UUID) ([]repository.StudentProgress, error)
}

// MonitorService backs the live exam monitor.
type MonitorService struct {
	exams    ExamStore
	progress ProgressReader
	rdb      *redis.Client
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(exams ExamStore, progress ProgressReader, rdb *redis.Client) *MonitorService {
	return &MonitorService{exams: exams, progress: progress, rdb: rdb}
}

// Snapshot returns the current progress of every student with a session.
// Staff only.
func (s *MonitorService) Snapshot(ctx context.Context, examID uuid.UUID, caller model.CallerIdentity) ([]repository.StudentProgress, error) {
	if !caller.IsStaff() {
		return nil, ErrForbidden
	}
	if _, err := loadExam(ctx, s.exams, examID); err != nil {
		return nil, err
	}
	rows, err := s.progress.GetProgress(ctx, examID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []repository.StudentProgress{}
	}
	return rows, nil
}

// Subscribe opens a PubSub on the exam's monitor channel. The caller must
// close it.
func (s *MonitorService) Subscribe(ctx context.Context, examID uuid.UUID) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID.String()))
}

// RedisEventPublisher publishes monitor events on the exam's channel.
type RedisEventPublisher struct {
	rdb *redis.Client
}

// NewRedisEventPublisher creates a new RedisEventPublisher.
func NewRedisEventPublisher(rdb *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{rdb: rdb}
}

func (p *RedisEventPublisher) Publish(ctx context.Context, ev model.MonitorEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(ev.ExamID.String()), raw).Err()
}
