package informer

import (
	"collectivewatch/internal/model"
	"collectivewatch/pkg/log"

	"github.com/duke-git/lancet/v2/slice"
	"go.uber.org/zap"
)

// ResourceDifferencer 计算某一资源类型的缓存快照与新快照之间的差异
// 一个资源类型对应一个实例，由 PollDriver 按固定顺序调用
type ResourceDifferencer struct {
	resourceType model.ResourceType
	cache        *SnapshotCache
	bus          *Bus
	logger       *log.Logger
	seed         bool
}

type DifferOption func(d *ResourceDifferencer)

// WithSeedEvent 首次观察到集合时发布一个 Added 为空的种子事件
func WithSeedEvent(seed bool) DifferOption {
	return func(d *ResourceDifferencer) {
		d.seed = seed
	}
}

func NewResourceDifferencer(t model.ResourceType, cache *SnapshotCache, bus *Bus, logger *log.Logger, opts ...DifferOption) *ResourceDifferencer {
	d := &ResourceDifferencer{
		resourceType: t,
		cache:        cache,
		bus:          bus,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *ResourceDifferencer) Type() model.ResourceType {
	return d.resourceType
}

// Run 先整体校验，校验失败时本类型本轮不做任何修改；返回产生的事件数
func (d *ResourceDifferencer) Run(cycle uint64, snap *model.Snapshot) (int, error) {
	listing := snap.Listing(d.resourceType)
	if err := d.validate(listing); err != nil {
		return 0, err
	}

	published := 0

	// 集合级快照
	if ev, ok := d.diff(cycle, listing.Collection); ok {
		d.bus.Publish(ev, model.CollectionTopic(d.resourceType))
		published++
	}

	// 单个资源，同时镜像到集合 topic
	current := make(map[string]struct{}, len(listing.Resources))
	for _, res := range listing.Resources {
		current[res.ID] = struct{}{}
		if ev, ok := d.diff(cycle, res); ok {
			d.bus.Publish(ev, ev.Topic(), model.CollectionTopic(d.resourceType))
			published++
		}
	}

	// 上一轮存在、本轮消失的资源
	for _, id := range d.cache.ResourceIDs(d.resourceType) {
		if _, ok := current[id]; ok {
			continue
		}
		ev := model.ChangeEvent{
			Type:            d.resourceType,
			ID:              id,
			Cycle:           cycle,
			RemovedEntirely: true,
		}
		d.cache.Evict(d.resourceType, id)
		d.logger.Debug("resource removed entirely",
			zap.String("type", string(d.resourceType)),
			zap.String("id", id),
			zap.Uint64("cycle", cycle))
		d.bus.Publish(ev, ev.Topic())
		published++
	}

	return published, nil
}

// diff 比较并写回缓存，返回需要发布的事件
func (d *ResourceDifferencer) diff(cycle uint64, snapshot *model.ResourceSnapshot) (model.ChangeEvent, bool) {
	entry, exists := d.cache.Get(d.resourceType, snapshot.ID)
	d.cache.Put(d.resourceType, snapshot.ID, snapshot, cycle)

	if !exists || entry.Snapshot == nil {
		// 首次观察不是变化
		if d.seed && snapshot.IsCollection() {
			return model.ChangeEvent{Type: d.resourceType, Cycle: cycle, Added: []string{}, Seed: true}, true
		}
		return model.ChangeEvent{}, false
	}

	added, removed := diffMembers(entry.Snapshot.MemberIDs, snapshot.MemberIDs)
	ev := model.ChangeEvent{
		Type:           d.resourceType,
		ID:             snapshot.ID,
		Cycle:          cycle,
		ChangedTallies: diffCounts(entry.Snapshot.Tallies.Counts(), snapshot.Tallies.Counts()),
		Added:          added,
		Removed:        removed,
	}
	return ev, ev.HasChanges()
}

func (d *ResourceDifferencer) validate(listing *model.TypeListing) error {
	t := d.resourceType
	if listing == nil {
		return integrityError(t, "", ErrMissingField, "listing is absent")
	}
	if listing.Collection == nil {
		return integrityError(t, "", ErrMissingField, "collection snapshot is absent")
	}
	if err := validateSnapshot(t, listing.Collection); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(listing.Resources))
	for i, res := range listing.Resources {
		if res == nil {
			return integrityError(t, "", ErrMissingField, "resource #%d is null", i)
		}
		if res.ID == "" {
			return integrityError(t, "", ErrMissingField, "resource #%d has no id", i)
		}
		if _, dup := seen[res.ID]; dup {
			return integrityError(t, res.ID, ErrDuplicateID, "id listed more than once")
		}
		seen[res.ID] = struct{}{}
		if err := validateSnapshot(t, res); err != nil {
			return err
		}
	}
	return nil
}

func validateSnapshot(t model.ResourceType, s *model.ResourceSnapshot) error {
	if s.Type != t {
		return integrityError(t, s.ID, ErrTypeMismatch, "got type %q", s.Type)
	}
	if !s.Tallies.NonNegative() {
		return integrityError(t, s.ID, ErrNegativeTally, "tallies %+v", s.Tallies)
	}
	return validateMembers(t, s.ID, s.MemberIDs)
}

func validateMembers(t model.ResourceType, id string, members []string) error {
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		if m == "" {
			return integrityError(t, id, ErrMissingField, "empty member id")
		}
		if _, dup := seen[m]; dup {
			return integrityError(t, id, ErrDuplicateID, "member %q listed more than once", m)
		}
		seen[m] = struct{}{}
	}
	return nil
}

// diffMembers 与顺序无关的集合差，空结果返回 nil
func diffMembers(oldIDs, newIDs []string) (added, removed []string) {
	added = slice.Difference(newIDs, oldIDs)
	removed = slice.Difference(oldIDs, newIDs)
	if len(added) == 0 {
		added = nil
	}
	if len(removed) == 0 {
		removed = nil
	}
	return added, removed
}

// diffCounts 返回数值发生变化的字段及其新值；任一侧缺失的字段按 0 处理
func diffCounts(oldCounts, newCounts model.Counts) model.TallyDelta {
	var delta model.TallyDelta
	for key, v := range newCounts {
		if oldCounts[key] != v {
			if delta == nil {
				delta = make(model.TallyDelta)
			}
			delta[key] = v
		}
	}
	for key := range oldCounts {
		if _, ok := newCounts[key]; !ok && oldCounts[key] != 0 {
			if delta == nil {
				delta = make(model.TallyDelta)
			}
			delta[key] = 0
		}
	}
	return delta
}
