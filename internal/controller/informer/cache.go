package informer

import (
	"sort"
	"sync"

	"collectivewatch/internal/model"
)

// CachedEntry 某个 (type, id) 最近一次被接受的快照
type CachedEntry struct {
	Type     model.ResourceType      `json:"type"`
	ID       string                  `json:"id,omitempty"`
	Snapshot *model.ResourceSnapshot `json:"snapshot,omitempty"`
	// Digest 仅 summary/alerts 条目使用
	Digest             *model.Digest `json:"digest,omitempty"`
	LastUpdatedAtCycle uint64        `json:"last_updated_at_cycle"`
}

// SnapshotCache 线程安全的快照缓存，按 type -> id 两级索引
// 只由 Differencer 写入；条目不会自动过期，只会被覆盖或显式驱逐
type SnapshotCache struct {
	lock  sync.RWMutex
	items map[model.ResourceType]map[string]*CachedEntry
}

func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{
		items: make(map[model.ResourceType]map[string]*CachedEntry),
	}
}

// Get 条目不存在不是错误，表示首次观察
func (c *SnapshotCache) Get(t model.ResourceType, id string) (*CachedEntry, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	entry, exists := c.items[t][id]
	return entry, exists
}

// Put 无条件覆盖；lastUpdatedAtCycle 只增不减
func (c *SnapshotCache) Put(t model.ResourceType, id string, snapshot *model.ResourceSnapshot, cycle uint64) {
	c.put(&CachedEntry{Type: t, ID: id, Snapshot: snapshot, LastUpdatedAtCycle: cycle})
}

func (c *SnapshotCache) PutDigest(digest *model.Digest, cycle uint64) {
	c.put(&CachedEntry{Type: digest.Type, Digest: digest, LastUpdatedAtCycle: cycle})
}

func (c *SnapshotCache) put(entry *CachedEntry) {
	c.lock.Lock()
	defer c.lock.Unlock()
	byID, ok := c.items[entry.Type]
	if !ok {
		byID = make(map[string]*CachedEntry)
		c.items[entry.Type] = byID
	}
	if old, exists := byID[entry.ID]; exists && old.LastUpdatedAtCycle > entry.LastUpdatedAtCycle {
		entry.LastUpdatedAtCycle = old.LastUpdatedAtCycle
	}
	byID[entry.ID] = entry
}

func (c *SnapshotCache) Evict(t model.ResourceType, id string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	byID, ok := c.items[t]
	if !ok {
		return
	}
	delete(byID, id)
	if len(byID) == 0 {
		delete(c.items, t)
	}
}

// ResourceIDs 返回某类型已缓存的单资源 ID（不含集合条目），按字典序
func (c *SnapshotCache) ResourceIDs(t model.ResourceType) []string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	ids := make([]string, 0, len(c.items[t]))
	for id := range c.items[t] {
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// List 返回某类型的全部条目
func (c *SnapshotCache) List(t model.ResourceType) []*CachedEntry {
	c.lock.RLock()
	defer c.lock.RUnlock()
	list := make([]*CachedEntry, 0, len(c.items[t]))
	for _, entry := range c.items[t] {
		list = append(list, entry)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func (c *SnapshotCache) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	n := 0
	for _, byID := range c.items {
		n += len(byID)
	}
	return n
}

// Reset 清空缓存，Poll Driver 启动和停止时调用
func (c *SnapshotCache) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.items = make(map[model.ResourceType]map[string]*CachedEntry)
}
