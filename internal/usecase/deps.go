package usecase

import (
	"context"
	"time"

	"cartengine/internal/domain/model"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type IDGenerator interface {
	NewID() string
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// カート表示のキャッシュ。DBが正で、ここは読み取りを軽くするだけ。
// 所有者ごとに世代を持ち、Deleteのたびに進める。古い世代で読んだ表示は保存しない。
type CartViewCache interface {
	Get(ctx context.Context, owner model.Owner) (CartView, bool, error)
	Version(ctx context.Context, owner model.Owner) (int64, error)
	// 世代が version のままなら保存して true
	SetIfVersion(ctx context.Context, owner model.Owner, version int64, view CartView) (bool, error)
	Delete(ctx context.Context, owners ...model.Owner) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, model.Owner) (CartView, bool, error) {
	return CartView{}, false, nil
}
func (noopCache) Version(context.Context, model.Owner) (int64, error) { return 0, nil }
func (noopCache) SetIfVersion(context.Context, model.Owner, int64, CartView) (bool, error) {
	return true, nil
}
func (noopCache) Delete(context.Context, ...model.Owner) error { return nil }

var tracer = otel.Tracer("cartengine/usecase")

// endSpan はエラーをspanに残して閉じる
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if !IsBusinessError(err) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
