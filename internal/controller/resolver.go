package controller

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"collectivewatch/internal/controller/informer"
	"collectivewatch/internal/model"
	"collectivewatch/pkg/collective"
	"collectivewatch/pkg/log"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var _ informer.Resolver = (*SearchResolver)(nil)

// SearchResolver 先查本地对象表，缺失的 ID 再通过 search API 批量查询
// 相同 (type, ids) 的并发查询只发一次请求
type SearchResolver struct {
	client  *collective.Client
	logger  *log.Logger
	group   singleflight.Group
	timeout time.Duration

	lock    sync.RWMutex
	objects map[model.ResourceType]map[string]*model.Resource
}

func NewSearchResolver(client *collective.Client, logger *log.Logger) *SearchResolver {
	return &SearchResolver{
		client:  client,
		logger:  logger,
		timeout: 30 * time.Second,
		objects: make(map[model.ResourceType]map[string]*model.Resource),
	}
}

func (r *SearchResolver) Resolve(ctx context.Context, t model.ResourceType, ids []string) ([]*model.Resource, error) {
	found := make(map[string]*model.Resource, len(ids))
	var missing []string
	for _, id := range ids {
		if obj, ok := r.Cached(t, id); ok {
			found[id] = obj
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		key := searchKey(t, missing)
		// 共享的查询不随发起者的 ctx 取消，每个调用方只等待自己的 ctx
		ch := r.group.DoChan(key, func() (interface{}, error) {
			searchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
			defer cancel()
			return r.search(searchCtx, t, missing)
		})
		var res singleflight.Result
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res = <-ch:
		}
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			r.logger.Debug("resolve shared in-flight search", zap.String("key", key))
		}
		for _, obj := range res.Val.([]*model.Resource) {
			found[obj.ID] = obj
		}
	}

	result := make([]*model.Resource, 0, len(ids))
	for _, id := range ids {
		obj, ok := found[id]
		if !ok {
			return nil, fmt.Errorf("%s %q: %w", t, id, informer.ErrNotFound)
		}
		result = append(result, obj)
	}
	return result, nil
}

func (r *SearchResolver) search(ctx context.Context, t model.ResourceType, ids []string) ([]*model.Resource, error) {
	res, err := r.client.Search(ctx, string(t), ids)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", t.Plural(), err)
	}

	list := res.ListOf(t.Plural())
	objects := make([]*model.Resource, 0, len(list))
	for _, item := range list {
		if item == nil || item.ID == "" {
			continue
		}
		objects = append(objects, ConvertResource(t, item))
	}

	r.lock.Lock()
	byID, ok := r.objects[t]
	if !ok {
		byID = make(map[string]*model.Resource)
		r.objects[t] = byID
	}
	for _, obj := range objects {
		byID[obj.ID] = obj
	}
	r.lock.Unlock()

	r.logger.Debug("resolved resources by search",
		zap.String("type", string(t)),
		zap.Int("requested", len(ids)),
		zap.Int("found", len(objects)))
	return objects, nil
}

func (r *SearchResolver) Cached(t model.ResourceType, id string) (*model.Resource, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	obj, ok := r.objects[t][id]
	return obj, ok
}

// Store 把已有的完整对象放进对象表，例如派生集合的初始成员
func (r *SearchResolver) Store(objects ...*model.Resource) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, obj := range objects {
		if obj == nil {
			continue
		}
		byID, ok := r.objects[obj.Type]
		if !ok {
			byID = make(map[string]*model.Resource)
			r.objects[obj.Type] = byID
		}
		byID[obj.ID] = obj
	}
}

func (r *SearchResolver) Forget(t model.ResourceType, ids ...string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, id := range ids {
		delete(r.objects[t], id)
	}
}

// Invalidate 订阅集合 topic：集合移除的资源和发生变化的资源都从对象表中删除，下次解析重新查询
func (r *SearchResolver) Invalidate(ev model.ChangeEvent) {
	if ev.ID == "" {
		if len(ev.Removed) > 0 {
			r.Forget(ev.Type, ev.Removed...)
		}
		return
	}
	r.Forget(ev.Type, ev.ID)
}

func (r *SearchResolver) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	n := 0
	for _, byID := range r.objects {
		n += len(byID)
	}
	return n
}

func searchKey(t model.ResourceType, ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return string(t) + "|" + strings.Join(sorted, "|")
}
