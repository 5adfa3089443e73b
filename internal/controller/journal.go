package controller

import (
	"context"
	"encoding/json"
	"time"

	"collectivewatch/internal/controller/informer"
	"collectivewatch/internal/model"
	"collectivewatch/internal/repository"
	"collectivewatch/pkg/log"
	"collectivewatch/pkg/sid"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// JournalRelay 把集合 topic 上的变化事件批量写入变更日志
type JournalRelay struct {
	*relay
	repo       repository.ChangeJournalRepository
	sid        *sid.Sid
	batchSize  int
	flushEvery time.Duration
	retention  time.Duration
}

type JournalOption func(r *JournalRelay)

func WithBatch(size int, flushEvery time.Duration) JournalOption {
	return func(r *JournalRelay) {
		if size > 0 {
			r.batchSize = size
		}
		if flushEvery > 0 {
			r.flushEvery = flushEvery
		}
	}
}

// WithRetention 为 0 时不清理
func WithRetention(retention time.Duration) JournalOption {
	return func(r *JournalRelay) {
		r.retention = retention
	}
}

func NewJournalRelay(repo repository.ChangeJournalRepository, idGen *sid.Sid, buffer int, logger *log.Logger, opts ...JournalOption) *JournalRelay {
	r := &JournalRelay{
		relay:      newRelay("journal", buffer, logger),
		repo:       repo,
		sid:        idGen,
		batchSize:  100,
		flushEvery: time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run ctx 结束时写入剩余的事件后返回
func (r *JournalRelay) Run(ctx context.Context, bus *informer.Bus) error {
	if err := r.attach(bus, CollectionTopics()); err != nil {
		return err
	}
	defer r.detach()

	if r.retention > 0 {
		scheduler := gocron.NewScheduler(time.UTC)
		if _, err := scheduler.Every(time.Hour).Do(func() { r.prune(ctx) }); err != nil {
			return err
		}
		scheduler.StartAsync()
		defer scheduler.Stop()
	}

	ticker := time.NewTicker(r.flushEvery)
	defer ticker.Stop()

	batch := make([]*model.ChangeRecord, 0, r.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := r.repo.Append(ctx, batch); err != nil {
			r.logger.Error("append change journal failed", zap.Int("records", len(batch)), zap.Error(err))
		}
		batch = make([]*model.ChangeRecord, 0, r.batchSize)
	}

	r.logger.Info("change journal started", zap.Int("batch", r.batchSize), zap.Duration("retention", r.retention))
	for {
		select {
		case <-ctx.Done():
			r.drain(&batch)
			flush(context.Background())
			return nil
		case msg := <-r.queue:
			if rec := r.record(msg); rec != nil {
				batch = append(batch, rec)
			}
			if len(batch) >= r.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

// drain 取出队列中已有的事件
func (r *JournalRelay) drain(batch *[]*model.ChangeRecord) {
	for {
		select {
		case msg := <-r.queue:
			if rec := r.record(msg); rec != nil {
				*batch = append(*batch, rec)
			}
		default:
			return
		}
	}
}

func (r *JournalRelay) record(msg RelayMessage) *model.ChangeRecord {
	id, err := r.sid.GenInt64()
	if err != nil {
		r.logger.Error("generate journal id failed", zap.Error(err))
		return nil
	}
	payload, err := json.Marshal(msg.Event)
	if err != nil {
		r.logger.Error("marshal change event failed", zap.Error(err))
		return nil
	}
	return &model.ChangeRecord{
		Id:         id,
		Cycle:      msg.Event.Cycle,
		Type:       string(msg.Event.Type),
		ResourceID: msg.Event.ID,
		Topic:      string(msg.Topic),
		Payload:    string(payload),
		CreateTime: time.Now(),
	}
}

func (r *JournalRelay) prune(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	n, err := r.repo.DeleteBefore(ctx, time.Now().Add(-r.retention))
	if err != nil {
		r.logger.Warn("prune change journal failed", zap.Error(err))
		return
	}
	if n > 0 {
		r.logger.Info("change journal pruned", zap.Int64("records", n))
	}
}
