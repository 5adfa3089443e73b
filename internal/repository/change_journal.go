package repository

import (
	"context"
	"time"

	"collectivewatch/internal/model"
)

// JournalQuery 变更日志查询条件，零值字段不参与过滤
type JournalQuery struct {
	Type       string
	ResourceID string
	SinceCycle uint64
	Limit      int
}

type ChangeJournalRepository interface {
	Append(ctx context.Context, records []*model.ChangeRecord) error
	List(ctx context.Context, q JournalQuery) ([]*model.ChangeRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// NewChangeJournalRepository 未配置数据库时返回 nil
func NewChangeJournalRepository(r *Repository) ChangeJournalRepository {
	if r.db == nil {
		return nil
	}
	return &changeJournalRepository{Repository: r}
}

type changeJournalRepository struct {
	*Repository
}

func (r *changeJournalRepository) Append(ctx context.Context, records []*model.ChangeRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.DB(ctx).CreateInBatches(records, 100).Error
}

func (r *changeJournalRepository) List(ctx context.Context, q JournalQuery) ([]*model.ChangeRecord, error) {
	db := r.DB(ctx).Model(&model.ChangeRecord{})
	if q.Type != "" {
		db = db.Where("resource_type = ?", q.Type)
	}
	if q.ResourceID != "" {
		db = db.Where("resource_id = ?", q.ResourceID)
	}
	if q.SinceCycle > 0 {
		db = db.Where("cycle >= ?", q.SinceCycle)
	}
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var records []*model.ChangeRecord
	if err := db.Order("cycle ASC, id ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *changeJournalRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.DB(ctx).Where("gmt_create < ?", before).Delete(&model.ChangeRecord{})
	return res.RowsAffected, res.Error
}
