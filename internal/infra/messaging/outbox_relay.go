package messaging

import (
	"context"
	"fmt"
	"time"

	"cartengine/internal/domain/model"
	repo "cartengine/internal/repository"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// *kafka.Writer を満たす。テストではフェイクに差し替える
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// OutboxRelay は未送信のoutboxイベントをKafkaへ流す。
// 取得(SKIP LOCKED)・送信・送信済みマークを1つのTxで行うので、複数台で動かしても二重に拾わない
type OutboxRelay struct {
	tx        repo.TransactionManager
	writer    MessageWriter
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewOutboxRelay(tx repo.TransactionManager, writer MessageWriter, interval time.Duration, logger *zap.Logger) *OutboxRelay {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxRelay{
		tx:        tx,
		writer:    writer,
		logger:    logger,
		interval:  interval,
		batchSize: 100,
		now:       time.Now,
	}
}

// Run はctxが終わるまでポーリングする
func (p *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("outbox relay started", zap.Duration("interval", p.interval))
	for {
		select {
		case <-ticker.C:
			if _, err := p.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox relay failed", zap.Error(err))
			}
		case <-ctx.Done():
			p.logger.Info("outbox relay stopped")
			return
		}
	}
}

// RelayOnce は1バッチ送って、送れた件数を返す。
// 送信に失敗したらそのバッチは全部未送信のまま残る（次の周期で再送、at-least-once）
func (p *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	sent := 0
	err := p.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		events, err := r.Outbox().ListUnpublished(ctx, p.batchSize)
		if err != nil {
			return fmt.Errorf("list unpublished: %w", err)
		}
		if len(events) == 0 {
			return nil
		}

		msgs := make([]kafka.Message, 0, len(events))
		for _, ev := range events {
			msgs = append(msgs, toMessage(ev))
		}
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("publish %d events: %w", len(msgs), err)
		}

		now := p.now()
		for _, ev := range events {
			if err := r.Outbox().MarkPublished(ctx, ev.ID, now); err != nil {
				return fmt.Errorf("mark published %s: %w", ev.ID, err)
			}
		}
		sent = len(events)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if sent > 0 {
		p.logger.Debug("outbox events relayed", zap.Int("count", sent))
	}
	return sent, nil
}

func toMessage(ev model.OutboxEvent) kafka.Message {
	return kafka.Message{
		// 同じ注文のイベントは同じパーティションへ
		Key:   []byte(ev.AggregateID),
		Value: ev.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.ID)},
			{Key: "event_type", Value: []byte(ev.EventType)},
		},
		Time: ev.CreatedAt,
	}
}
