package v1

import (
	"encoding/json"
	"time"

	"collectivewatch/internal/model"
)

type EngineStateResponseData struct {
	State       string               `json:"state"`
	Cycle       uint64               `json:"cycle"`
	LastVersion string               `json:"last_version,omitempty"`
	LastError   string               `json:"last_error,omitempty"`
	LastCycleAt *time.Time           `json:"last_cycle_at,omitempty"`
	Order       []model.ResourceType `json:"order"`
	Watching    int                  `json:"watching"`
}

type EngineStateResponse struct {
	Response
	Data EngineStateResponseData
}

type TickResponseData struct {
	Diffed bool   `json:"diffed"`
	Cycle  uint64 `json:"cycle"`
}

type CacheEntry struct {
	Type      model.ResourceType `json:"type"`
	ID        string             `json:"id,omitempty"`
	Tallies   *model.Tallies     `json:"tallies,omitempty"`
	Counts    model.Counts       `json:"counts,omitempty"`
	MemberIDs []string           `json:"member_ids"`
	Cycle     uint64             `json:"last_updated_at_cycle"`
}

type CacheListResponseData struct {
	Type  model.ResourceType `json:"type"`
	Total int                `json:"total"`
	List  []CacheEntry       `json:"list"`
}

type CacheListResponse struct {
	Response
	Data CacheListResponseData
}

type CacheEntryResponse struct {
	Response
	Data CacheEntry
}

type MembersResponseData struct {
	ParentType model.ResourceType `json:"parent_type"`
	ParentID   string             `json:"parent_id"`
	MemberType model.ResourceType `json:"member_type"`
	Tallies    model.Tallies      `json:"tallies"`
	Members    []*model.Resource  `json:"members"`
	Pending    []string           `json:"pending,omitempty"`
}

type MembersResponse struct {
	Response
	Data MembersResponseData
}

// MembersEventMessage 派生集合变化通过 websocket 推送的消息
type MembersEventMessage struct {
	Kind      string            `json:"kind"`
	Tallies   model.Tallies     `json:"tallies"`
	MemberIDs []string          `json:"member_ids"`
	Added     []*model.Resource `json:"added,omitempty"`
	Removed   []string          `json:"removed,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type ListEventsRequest struct {
	Type       string `form:"type"`
	ID         string `form:"id"`
	SinceCycle uint64 `form:"since_cycle"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

type JournalEvent struct {
	ID         int64           `json:"id,string"`
	Cycle      uint64          `json:"cycle"`
	Type       string          `json:"type"`
	ResourceID string          `json:"resource_id,omitempty"`
	Topic      string          `json:"topic"`
	Event      json.RawMessage `json:"event"`
	CreateTime time.Time       `json:"create_time"`
}

type ListEventsResponseData struct {
	Total int            `json:"total"`
	List  []JournalEvent `json:"list"`
}

type ListEventsResponse struct {
	Response
	Data ListEventsResponseData
}
