package model

import (
	"time"
)

// ResourceSnapshot 一个资源在某一轮轮询中的快照，构造后不再修改
// ID 为空表示该类型的集合级快照，MemberIDs 即该类型的完整列表
type ResourceSnapshot struct {
	Type      ResourceType `json:"type"`
	ID        string       `json:"id,omitempty"`
	Tallies   Tallies      `json:"tallies"`
	MemberIDs []string     `json:"member_ids"`
}

func NewResourceSnapshot(t ResourceType, id string, tallies Tallies, memberIDs []string) *ResourceSnapshot {
	return &ResourceSnapshot{
		Type:      t,
		ID:        id,
		Tallies:   tallies,
		MemberIDs: copyIDs(memberIDs),
	}
}

func (s *ResourceSnapshot) IsCollection() bool {
	return s.ID == ""
}

// Digest 服务端计算的汇总（summary）或告警（alerts）摘要
// summary 的计数以 "<type>.<field>" 为 key，alerts 以分类为 key
type Digest struct {
	Type      ResourceType `json:"type"`
	Counts    Counts       `json:"counts"`
	MemberIDs []string     `json:"member_ids,omitempty"`
}

func NewDigest(t ResourceType, counts Counts, memberIDs []string) *Digest {
	if counts == nil {
		counts = Counts{}
	}
	return &Digest{
		Type:      t,
		Counts:    counts.Clone(),
		MemberIDs: copyIDs(memberIDs),
	}
}

// TypeListing 一个资源类型的完整列表
type TypeListing struct {
	Collection *ResourceSnapshot   `json:"collection"`
	Resources  []*ResourceSnapshot `json:"resources"`
}

// IDs 按列表顺序返回资源 ID
func (l *TypeListing) IDs() []string {
	ids := make([]string, 0, len(l.Resources))
	for _, r := range l.Resources {
		if r != nil {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// Snapshot 一次轮询取回的完整拓扑文档
type Snapshot struct {
	Listings  map[ResourceType]*TypeListing `json:"listings"`
	Summary   *Digest                       `json:"summary"`
	Alerts    *Digest                       `json:"alerts"`
	FetchedAt time.Time                     `json:"fetched_at"`
}

func (s *Snapshot) Listing(t ResourceType) *TypeListing {
	if s == nil || s.Listings == nil {
		return nil
	}
	return s.Listings[t]
}

func (s *Snapshot) Digest(t ResourceType) *Digest {
	if s == nil {
		return nil
	}
	switch t {
	case TypeSummary:
		return s.Summary
	case TypeAlerts:
		return s.Alerts
	}
	return nil
}

func copyIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
