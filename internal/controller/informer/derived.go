package informer

import (
	"context"
	"fmt"
	"sync"

	"collectivewatch/internal/model"
	"collectivewatch/pkg/log"

	"github.com/duke-git/lancet/v2/slice"
	"go.uber.org/zap"
)

var _ Observer = (*DerivedCollection)(nil)

type CollectionEventKind string

const (
	TallyChanged  CollectionEventKind = "tally_changed"
	ListChanged   CollectionEventKind = "list_changed"
	ResolveFailed CollectionEventKind = "resolve_failed"
	Destroyed     CollectionEventKind = "destroyed"
)

// CollectionEvent 派生集合通知自身订阅者的事件
type CollectionEvent struct {
	Kind       CollectionEventKind
	NewTallies model.Tallies
	OldTallies model.Tallies
	NewList    []*model.Resource
	OldList    []*model.Resource
	Added      []*model.Resource
	Removed    []string
	// Err 仅 ResolveFailed 时有值
	Err error
}

type CollectionListener func(ev CollectionEvent)

// DerivedCollection 某个父资源下某类成员的实时视图
// 订阅父资源的 topic，成员变化时只解析新增的 ID，不重新拉取整个列表
type DerivedCollection struct {
	parentType model.ResourceType
	parentID   string
	memberType model.ResourceType
	resolver   Resolver
	logger     *log.Logger

	// listMu 串行化 OnListChange，包括其中的异步解析
	listMu sync.Mutex

	mu              sync.RWMutex
	members         []*model.Resource
	parentMembers   []string
	pending         []string
	tallies         model.Tallies
	since           uint64
	parentDestroyed bool
	disposed        bool
	nextListener    uint64
	listeners       map[uint64]CollectionListener

	sub    *Subscription
	queue  *eventQueue
	ctx    context.Context
	cancel context.CancelFunc
}

// InitialLoader 加载父资源与初始成员，cycle 为父资源状态对应的轮次，0 表示未知
type InitialLoader func(ctx context.Context) (parent *model.Resource, initial []*model.Resource, cycle uint64, err error)

func NewDerivedCollection(
	bus *Bus,
	parent *model.Resource,
	initial []*model.Resource,
	memberType model.ResourceType,
	resolver Resolver,
	logger *log.Logger,
) (*DerivedCollection, error) {
	if err := validateInitial(parent, initial, memberType, resolver); err != nil {
		return nil, err
	}
	return WatchDerived(context.Background(), bus, parent.Type, parent.ID, memberType, resolver, logger,
		func(context.Context) (*model.Resource, []*model.Resource, uint64, error) {
			return parent, initial, 0, nil
		})
}

// WatchDerived 先订阅父资源 topic 再调用 load，加载期间到达的事件暂存在队列中
// 加载完成后只处理 cycle 大于 load 返回轮次的事件，其余已包含在初始状态里
func WatchDerived(
	ctx context.Context,
	bus *Bus,
	parentType model.ResourceType,
	parentID string,
	memberType model.ResourceType,
	resolver Resolver,
	logger *log.Logger,
	load InitialLoader,
) (*DerivedCollection, error) {
	if resolver == nil {
		return nil, fmt.Errorf("%w: resolver", ErrMissingField)
	}

	collCtx, cancel := context.WithCancel(context.Background())
	c := &DerivedCollection{
		parentType: parentType,
		parentID:   parentID,
		memberType: memberType,
		resolver:   resolver,
		logger:     logger,
		listeners:  make(map[uint64]CollectionListener),
		ctx:        collCtx,
		cancel:     cancel,
	}
	c.queue = newHeldEventQueue(c.dispatch)

	sub, err := bus.Subscribe(model.ResourceTopic(parentType, parentID), c.handle)
	if err != nil {
		cancel()
		return nil, err
	}
	c.sub = sub

	parent, initial, cycle, err := load(ctx)
	if err == nil {
		err = validateInitial(parent, initial, memberType, resolver)
	}
	if err == nil && (parent.Type != parentType || parent.ID != parentID) {
		err = fmt.Errorf("%w: loaded %s %q, want %s %q", ErrTypeMismatch, parent.Type, parent.ID, parentType, parentID)
	}
	if err != nil {
		_ = c.Destroy()
		return nil, err
	}

	c.mu.Lock()
	c.members = append(make([]*model.Resource, 0, len(initial)), initial...)
	c.parentMembers = append([]string(nil), parent.MemberIDs...)
	c.tallies = parent.Tallies
	c.since = cycle
	c.mu.Unlock()

	c.queue.Resume()
	return c, nil
}

func validateInitial(parent *model.Resource, initial []*model.Resource, memberType model.ResourceType, resolver Resolver) error {
	if parent == nil {
		return ErrNoParent
	}
	if initial == nil {
		return ErrNoInitialList
	}
	if resolver == nil {
		return fmt.Errorf("%w: resolver", ErrMissingField)
	}
	for i, m := range initial {
		if m == nil {
			return fmt.Errorf("%w: initial member #%d", ErrMissingField, i)
		}
		if m.Type != memberType {
			return fmt.Errorf("%w: initial member %q is a %s, want %s", ErrTypeMismatch, m.ID, m.Type, memberType)
		}
		if !slice.Contain(parent.MemberIDs, m.ID) {
			return fmt.Errorf("%w: %s %q is not in %s %q", ErrNotMember, memberType, m.ID, parent.Type, parent.ID)
		}
	}
	return nil
}

// handle 总线回调，只入队
func (c *DerivedCollection) handle(ev model.ChangeEvent) {
	if ev.Type != c.parentType || ev.ID != c.parentID {
		c.logger.Debug("ignore event for another resource",
			zap.String("type", string(ev.Type)),
			zap.String("id", ev.ID),
			zap.String("parent", c.parentID))
		return
	}
	c.queue.Add(ev)
}

func (c *DerivedCollection) dispatch(ev model.ChangeEvent) {
	if c.isDisposed() {
		return
	}
	if c.since > 0 && ev.Cycle <= c.since {
		// 初始状态已包含该轮的变化
		c.logger.Debug("skip event older than initial state",
			zap.String("parent", c.parentID),
			zap.Uint64("cycle", ev.Cycle),
			zap.Uint64("since", c.since))
		return
	}
	if ev.RemovedEntirely {
		c.OnParentDestroyed()
		return
	}
	if len(ev.ChangedTallies) > 0 {
		c.OnTallyChange(c.Tallies().Apply(ev.ChangedTallies))
	}
	if ev.MembershipChanged() {
		if err := c.OnListChange(c.ctx, ev.Added, ev.Removed); err != nil {
			c.logger.Warn("derived collection list change failed",
				zap.String("parent_type", string(c.parentType)),
				zap.String("parent", c.parentID),
				zap.Uint64("cycle", ev.Cycle),
				zap.Error(err))
		}
	}
}

func (c *DerivedCollection) OnTallyChange(newTallies model.Tallies) {
	c.mu.Lock()
	old := c.tallies
	if c.disposed || old == newTallies {
		c.mu.Unlock()
		return
	}
	c.tallies = newTallies
	c.mu.Unlock()

	c.notify(CollectionEvent{Kind: TallyChanged, NewTallies: newTallies, OldTallies: old})
}

// OnListChange 移除 removed，解析 added（连同上次解析失败的 ID）后一次性追加
// 只有新增的这一批是全有或全无：解析失败时 removed 照常移除，新增一个都不追加，
// 失败的 ID 留待下次重试；只有新增没有移除的通知失败后成员列表不变
func (c *DerivedCollection) OnListChange(ctx context.Context, added, removed []string) error {
	c.listMu.Lock()
	defer c.listMu.Unlock()

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrAlreadyDestroyed
	}
	c.parentMembers = append(slice.Difference(c.parentMembers, removed), slice.Difference(added, c.parentMembers)...)
	candidates := slice.Union(c.pending, added)
	oldList := append([]*model.Resource(nil), c.members...)
	c.mu.Unlock()

	var toResolve []string
	for _, id := range candidates {
		if slice.Contain(removed, id) || indexOf(oldList, id) >= 0 {
			continue
		}
		toResolve = append(toResolve, id)
	}
	var removedIDs []string
	for _, id := range removed {
		if indexOf(oldList, id) >= 0 {
			removedIDs = append(removedIDs, id)
		}
	}
	if len(toResolve) == 0 && len(removedIDs) == 0 {
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
		return nil
	}

	var resolved []*model.Resource
	var resolveErr error
	if len(toResolve) > 0 {
		resolved, resolveErr = c.resolve(ctx, toResolve)
	}

	c.mu.Lock()
	if c.disposed {
		// 解析期间已被销毁，结果作废
		c.mu.Unlock()
		return nil
	}
	newList := make([]*model.Resource, 0, len(c.members)+len(resolved))
	for _, m := range c.members {
		if !slice.Contain(removedIDs, m.ID) {
			newList = append(newList, m)
		}
	}
	if resolveErr != nil {
		c.pending = toResolve
	} else {
		c.pending = nil
		newList = append(newList, resolved...)
	}
	c.members = newList
	c.mu.Unlock()

	ev := CollectionEvent{
		Kind:    ListChanged,
		NewList: append([]*model.Resource(nil), newList...),
		OldList: oldList,
		Removed: removedIDs,
	}
	if resolveErr != nil {
		ev.Kind = ResolveFailed
		ev.Err = resolveErr
	} else {
		ev.Added = resolved
	}
	c.notify(ev)
	return resolveErr
}

// resolve 要么全部解析成功，要么返回错误
func (c *DerivedCollection) resolve(ctx context.Context, ids []string) ([]*model.Resource, error) {
	objects, err := c.resolver.Resolve(ctx, c.memberType, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve %s %v: %w", c.memberType, ids, err)
	}
	byID := make(map[string]*model.Resource, len(objects))
	for _, obj := range objects {
		if obj != nil {
			byID[obj.ID] = obj
		}
	}
	result := make([]*model.Resource, 0, len(ids))
	for _, id := range ids {
		obj, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("resolve %s %q: %w", c.memberType, id, ErrNotFound)
		}
		result = append(result, obj)
	}
	return result, nil
}

// Retry 重新解析上次失败的新增成员
func (c *DerivedCollection) Retry(ctx context.Context) error {
	return c.OnListChange(ctx, nil, nil)
}

// OnParentDestroyed 只通知一次；不会自动退订，由创建者调用 Destroy
func (c *DerivedCollection) OnParentDestroyed() {
	c.mu.Lock()
	if c.parentDestroyed || c.disposed {
		c.mu.Unlock()
		return
	}
	c.parentDestroyed = true
	c.mu.Unlock()

	c.notify(CollectionEvent{Kind: Destroyed})
}

// Destroy 立即退订父资源 topic，进行中的解析结果将被丢弃；重复调用返回 ErrAlreadyDestroyed
func (c *DerivedCollection) Destroy() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrAlreadyDestroyed
	}
	c.disposed = true
	c.listeners = nil
	c.mu.Unlock()

	c.sub.Unsubscribe()
	c.cancel()
	c.queue.Close()
	return nil
}

// AddListener 返回的函数用于移除该监听
func (c *DerivedCollection) AddListener(l CollectionListener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || l == nil {
		return func() {}
	}
	c.nextListener++
	id := c.nextListener
	c.listeners[id] = l
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *DerivedCollection) notify(ev CollectionEvent) {
	c.mu.RLock()
	ids := make([]uint64, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	slice.Sort(ids)
	listeners := make([]CollectionListener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, c.listeners[id])
	}
	c.mu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}

func (c *DerivedCollection) Members() []*model.Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*model.Resource(nil), c.members...)
}

func (c *DerivedCollection) MemberIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.members))
	for _, m := range c.members {
		ids = append(ids, m.ID)
	}
	return ids
}

// ParentMemberIDs 最近一次观察到的父资源成员
func (c *DerivedCollection) ParentMemberIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.parentMembers...)
}

func (c *DerivedCollection) Pending() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.pending...)
}

func (c *DerivedCollection) Tallies() model.Tallies {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tallies
}

func (c *DerivedCollection) Parent() (model.ResourceType, string) {
	return c.parentType, c.parentID
}

func (c *DerivedCollection) MemberType() model.ResourceType {
	return c.memberType
}

// IsDestroyed 父资源已被移除或已被 Destroy
func (c *DerivedCollection) IsDestroyed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parentDestroyed || c.disposed
}

func (c *DerivedCollection) isDisposed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disposed
}

func indexOf(list []*model.Resource, id string) int {
	for i, m := range list {
		if m.ID == id {
			return i
		}
	}
	return -1
}
