package model

// Topic 通知总线上的地址
type Topic string

// CollectionTopic 某资源类型集合的 topic
func CollectionTopic(t ResourceType) Topic {
	return Topic(t)
}

// ResourceTopic 单个资源的 topic，id 为空时退化为集合 topic
func ResourceTopic(t ResourceType, id string) Topic {
	if id == "" {
		return CollectionTopic(t)
	}
	return Topic(string(t) + "/" + id)
}

// ChangeEvent 差异计算产生的变化通知
type ChangeEvent struct {
	Type            ResourceType `json:"type"`
	ID              string       `json:"id,omitempty"`
	Cycle           uint64       `json:"cycle"`
	ChangedTallies  TallyDelta   `json:"changed_tallies,omitempty"`
	Added           []string     `json:"added,omitempty"`
	Removed         []string     `json:"removed,omitempty"`
	RemovedEntirely bool         `json:"removed_entirely,omitempty"`
	// Seed 首次观察到集合时的种子事件，Added 为空
	Seed bool `json:"seed,omitempty"`
}

func (e ChangeEvent) Topic() Topic {
	return ResourceTopic(e.Type, e.ID)
}

// HasChanges 至少有一个字段发生变化
func (e ChangeEvent) HasChanges() bool {
	return len(e.ChangedTallies) > 0 || len(e.Added) > 0 || len(e.Removed) > 0 || e.RemovedEntirely
}

func (e ChangeEvent) MembershipChanged() bool {
	return len(e.Added) > 0 || len(e.Removed) > 0
}
