// Package activity: журнал изменений, которые пользователи вносят в Freshdesk.
// Содержимое тикетов не хранится, только кто, что сделал и что ответил Freshdesk.
package activity

import (
	"context"
	"fmt"

	"github.com/psds-microservice/freshdesk-service/internal/model"
	"gorm.io/gorm"
)

// Recorder сохраняет одну запись на каждую изменяющую операцию.
type Recorder interface {
	Record(ctx context.Context, a *model.Activity) error
}

// Nop используется, когда журнал выключен.
type Nop struct{}

func (Nop) Record(context.Context, *model.Activity) error { return nil }

// Store: реализация Recorder поверх GORM/Postgres.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Record(ctx context.Context, a *model.Activity) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("activity: insert: %w", err)
	}
	return nil
}

// Ping используется проверкой готовности (/ready).
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
