package model

import (
	"time"
)

// ChangeRecord 持久化到变更日志的一条变化事件
type ChangeRecord struct {
	Id         int64     `json:"id" gorm:"column:id;primaryKey;autoIncrement:false"`
	Cycle      uint64    `json:"cycle" gorm:"column:cycle;index"`
	Type       string    `json:"type" gorm:"column:resource_type;index:idx_type_resource"`
	ResourceID string    `json:"resource_id" gorm:"column:resource_id;index:idx_type_resource"`
	Topic      string    `json:"topic" gorm:"column:topic"`
	Payload    string    `json:"payload" gorm:"column:payload;type:text"` // ChangeEvent 的 JSON
	CreateTime time.Time `json:"create_time" gorm:"column:gmt_create;index"`
}

func (ChangeRecord) TableName() string {
	return "change_record"
}
