package repository

import (
	"context"
	"time"

	"cartengine/internal/domain/model"
)

// 注文イベントのアウトボックス
type OutboxRepository interface {
	Create(ctx context.Context, event model.OutboxEvent) error
	ListUnpublished(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkPublished(ctx context.Context, eventID string, publishedAt time.Time) error
}
