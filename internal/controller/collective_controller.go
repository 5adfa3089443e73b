package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"collectivewatch/internal/controller/informer"
	"collectivewatch/internal/model"
	"collectivewatch/internal/repository"
	"collectivewatch/pkg/collective"
	"collectivewatch/pkg/log"
	"collectivewatch/pkg/sid"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var ErrNoMembers = errors.New("resource type has no members")

// CollectiveController 组装快照缓存、通知总线、差异计算流水线和轮询驱动
type CollectiveController struct {
	cache    *informer.SnapshotCache
	bus      *informer.Bus
	pipeline *informer.Pipeline
	driver   *informer.PollDriver
	resolver *SearchResolver
	reporter *MetricsReporter
	relay    *RedisRelay
	journal  *JournalRelay
	logger   *log.Logger

	lock          sync.Mutex
	collections   map[*informer.DerivedCollection]struct{}
	invalidations []*informer.Subscription
}

func NewCollectiveController(
	conf *viper.Viper,
	logger *log.Logger,
	client *collective.Client,
	rdb *redis.Client,
	reporter *MetricsReporter,
	journal repository.ChangeJournalRepository,
	idGen *sid.Sid,
) (*CollectiveController, error) {
	var seedTypes []model.ResourceType
	for _, s := range conf.GetStringSlice("engine.seed_types") {
		t, ok := model.ParseResourceType(s)
		if !ok || !t.IsResource() {
			return nil, fmt.Errorf("engine.seed_types: unknown resource type %q", s)
		}
		seedTypes = append(seedTypes, t)
	}

	cache := informer.NewSnapshotCache()
	bus := informer.NewBus(logger)
	pipeline, err := informer.NewDefaultPipeline(cache, bus, logger, seedTypes...)
	if err != nil {
		return nil, err
	}

	driver := informer.NewPollDriver(
		NewCollectiveSource(client, logger),
		pipeline,
		cache,
		logger,
		informer.WithInterval(conf.GetDuration("engine.poll_interval")),
		informer.WithSkipUnchanged(conf.GetBool("engine.skip_unchanged")),
		informer.WithReporter(reporter),
	)

	c := &CollectiveController{
		cache:       cache,
		bus:         bus,
		pipeline:    pipeline,
		driver:      driver,
		resolver:    NewSearchResolver(client, logger),
		reporter:    reporter,
		logger:      logger,
		collections: make(map[*informer.DerivedCollection]struct{}),
	}
	if rdb != nil {
		c.relay = NewRedisRelay(rdb, conf.GetString("relay.redis.channel"), conf.GetInt("relay.redis.buffer"), logger)
	}
	if journal != nil {
		if idGen == nil {
			return nil, errors.New("change journal requires an id generator")
		}
		c.journal = NewJournalRelay(journal, idGen, conf.GetInt("journal.buffer"), logger,
			WithBatch(conf.GetInt("journal.batch_size"), conf.GetDuration("journal.flush_interval")),
			WithRetention(conf.GetDuration("journal.retention")),
		)
	}
	return c, nil
}

// Start 阻塞直到 ctx 结束
func (c *CollectiveController) Start(ctx context.Context) error {
	c.logger.Info("starting collective controller")

	c.lock.Lock()
	for _, topic := range CollectionTopics() {
		sub, err := c.bus.Subscribe(topic, c.resolver.Invalidate)
		if err != nil {
			c.lock.Unlock()
			return err
		}
		c.invalidations = append(c.invalidations, sub)
	}
	c.lock.Unlock()

	if err := c.driver.Start(ctx); err != nil {
		return err
	}

	if c.relay != nil {
		go func() {
			if err := c.relay.Run(ctx, c.bus); err != nil {
				c.logger.Error("redis relay stopped", zap.Error(err))
			}
		}()
	}
	if c.journal != nil {
		go func() {
			if err := c.journal.Run(ctx, c.bus); err != nil {
				c.logger.Error("change journal stopped", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	return nil
}

func (c *CollectiveController) Stop(ctx context.Context) error {
	c.logger.Info("stopping collective controller")
	c.driver.Stop()

	c.lock.Lock()
	defer c.lock.Unlock()
	for _, sub := range c.invalidations {
		sub.Unsubscribe()
	}
	c.invalidations = nil
	for coll := range c.collections {
		_ = coll.Destroy()
	}
	c.collections = make(map[*informer.DerivedCollection]struct{})
	return nil
}

func (c *CollectiveController) Bus() *informer.Bus {
	return c.bus
}

func (c *CollectiveController) Status() informer.DriverStatus {
	return c.driver.Status()
}

// Tick 立即执行一轮轮询，与定时轮询重叠时被丢弃
func (c *CollectiveController) Tick(ctx context.Context) bool {
	return c.driver.Tick(ctx)
}

func (c *CollectiveController) Order() []model.ResourceType {
	return c.pipeline.Types()
}

// Cached 最近一次被接受的快照，id 为空时返回集合或摘要
func (c *CollectiveController) Cached(t model.ResourceType, id string) (*informer.CachedEntry, bool) {
	return c.cache.Get(t, id)
}

func (c *CollectiveController) CachedList(t model.ResourceType) []*informer.CachedEntry {
	return c.cache.List(t)
}

// WatchMembers 创建某个父资源的派生集合，用完后调用 Release
func (c *CollectiveController) WatchMembers(ctx context.Context, parentType model.ResourceType, parentID string) (*informer.DerivedCollection, error) {
	memberType, ok := model.MemberTypes[parentType]
	if !ok {
		return nil, fmt.Errorf("%s: %w", parentType, ErrNoMembers)
	}

	// 先订阅再读缓存，读缓存之后发生的变化由订阅补上
	coll, err := informer.WatchDerived(ctx, c.bus, parentType, parentID, memberType, c.resolver, c.logger,
		func(ctx context.Context) (*model.Resource, []*model.Resource, uint64, error) {
			parents, err := c.resolver.Resolve(ctx, parentType, []string{parentID})
			if err != nil {
				return nil, nil, 0, fmt.Errorf("resolve parent %s %q: %w", parentType, parentID, err)
			}
			parent := *parents[0]
			var cycle uint64
			// 以缓存中的快照为准，后续事件都是相对它计算的差异
			if entry, ok := c.cache.Get(parentType, parentID); ok && entry.Snapshot != nil {
				parent.MemberIDs = append([]string(nil), entry.Snapshot.MemberIDs...)
				parent.Tallies = entry.Snapshot.Tallies
				cycle = entry.LastUpdatedAtCycle
			}

			initial, err := c.resolver.Resolve(ctx, memberType, parent.MemberIDs)
			if err != nil {
				return nil, nil, 0, fmt.Errorf("resolve members of %s %q: %w", parentType, parentID, err)
			}
			return &parent, initial, cycle, nil
		})
	if err != nil {
		return nil, err
	}

	c.lock.Lock()
	c.collections[coll] = struct{}{}
	c.lock.Unlock()
	return coll, nil
}

// Release 销毁派生集合并退订
func (c *CollectiveController) Release(coll *informer.DerivedCollection) error {
	c.lock.Lock()
	delete(c.collections, coll)
	c.lock.Unlock()
	return coll.Destroy()
}

func (c *CollectiveController) ServersOnCluster(ctx context.Context, clusterID string) (*informer.DerivedCollection, error) {
	return c.WatchMembers(ctx, model.TypeCluster, clusterID)
}

func (c *CollectiveController) ServersOnHost(ctx context.Context, hostID string) (*informer.DerivedCollection, error) {
	return c.WatchMembers(ctx, model.TypeHost, hostID)
}

func (c *CollectiveController) ServersOnRuntime(ctx context.Context, runtimeID string) (*informer.DerivedCollection, error) {
	return c.WatchMembers(ctx, model.TypeRuntime, runtimeID)
}

func (c *CollectiveController) AppsOnServer(ctx context.Context, serverID string) (*informer.DerivedCollection, error) {
	return c.WatchMembers(ctx, model.TypeServer, serverID)
}

// InstancesOfApp 应用所在的 server
func (c *CollectiveController) InstancesOfApp(ctx context.Context, appID string) (*informer.DerivedCollection, error) {
	return c.WatchMembers(ctx, model.TypeApplication, appID)
}

func (c *CollectiveController) Watching() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.collections)
}
