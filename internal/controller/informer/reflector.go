package informer

import (
	"context"
	"errors"
	"sync"
	"time"

	"collectivewatch/pkg/hash"
	"collectivewatch/pkg/log"

	"github.com/duke-git/lancet/v2/cryptor"
	"github.com/duke-git/lancet/v2/random"
	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

var ErrDriverRunning = errors.New("poll driver already running")

// DriverStatus 只读的诊断信息
type DriverStatus struct {
	State       State     `json:"state"`
	Cycle       uint64    `json:"cycle"`
	LastVersion string    `json:"last_version,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastCycleAt time.Time `json:"last_cycle_at,omitempty"`
}

// PollDriver 按固定周期取回快照并驱动 Pipeline
// 状态机 idle -> fetching -> diffing -> idle，另有 stopped
type PollDriver struct {
	source        SnapshotSource
	pipeline      *Pipeline
	cache         *SnapshotCache
	reporter      Reporter
	logger        *log.Logger
	interval      time.Duration
	skipUnchanged bool
	initialTick   bool

	mu          sync.Mutex
	state       State
	cycle       uint64
	generation  uint64
	lastVersion string
	lastErr     error
	lastCycleAt time.Time
	scheduler   *gocron.Scheduler

	// 同一时刻只有一轮在执行差异计算
	diffMu sync.Mutex
}

type DriverOption func(p *PollDriver)

func WithInterval(interval time.Duration) DriverOption {
	return func(p *PollDriver) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithSkipUnchanged 内容版本未变化时跳过差异计算
func WithSkipUnchanged(skip bool) DriverOption {
	return func(p *PollDriver) {
		p.skipUnchanged = skip
	}
}

// WithInitialTick 启动时立即执行一轮，而不是等到第一个周期
func WithInitialTick(immediate bool) DriverOption {
	return func(p *PollDriver) {
		p.initialTick = immediate
	}
}

func WithReporter(reporter Reporter) DriverOption {
	return func(p *PollDriver) {
		p.reporter = reporter
	}
}

func NewPollDriver(
	source SnapshotSource,
	pipeline *Pipeline,
	cache *SnapshotCache,
	logger *log.Logger,
	opts ...DriverOption,
) *PollDriver {
	p := &PollDriver{
		source:      source,
		pipeline:    pipeline,
		cache:       cache,
		logger:      logger,
		interval:    10 * time.Second,
		initialTick: true,
		state:       StateStopped,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start 清空缓存并开始调度；ctx 传给每一次取数
func (p *PollDriver) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateStopped {
		p.mu.Unlock()
		return ErrDriverRunning
	}
	p.generation++
	p.state = StateIdle
	p.lastVersion = ""
	p.lastErr = nil
	p.resetCache()

	scheduler := gocron.NewScheduler(time.UTC)
	if _, err := scheduler.Every(p.interval).WaitForSchedule().Do(func() {
		p.Tick(ctx)
	}); err != nil {
		p.state = StateStopped
		p.mu.Unlock()
		return err
	}
	p.scheduler = scheduler
	p.mu.Unlock()

	scheduler.StartAsync()
	if p.initialTick {
		go p.Tick(ctx)
	}
	p.logger.Info("poll driver started",
		zap.Duration("interval", p.interval),
		zap.Any("order", p.pipeline.Types()))
	return nil
}

// Stop 停止调度；正在进行的取数不会被取消，其结果到达后直接丢弃
func (p *PollDriver) Stop() {
	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return
	}
	p.state = StateStopped
	p.generation++
	scheduler := p.scheduler
	p.scheduler = nil
	p.resetCache()
	p.mu.Unlock()

	if scheduler != nil {
		scheduler.Stop()
	}
	p.logger.Info("poll driver stopped")
}

// resetCache 差异计算进行中时由该轮在结束时清理
func (p *PollDriver) resetCache() {
	if p.diffMu.TryLock() {
		p.cache.Reset()
		p.diffMu.Unlock()
	}
}

// Tick 执行一轮；上一轮未结束时直接丢弃，返回本轮是否完成了差异计算
func (p *PollDriver) Tick(ctx context.Context) bool {
	p.mu.Lock()
	if p.state != StateIdle {
		state := p.state
		p.mu.Unlock()
		p.logger.Debug("tick discarded", zap.String("state", string(state)))
		return false
	}
	p.state = StateFetching
	generation := p.generation
	p.mu.Unlock()

	start := time.Now()
	snap, err := p.source.Fetch(ctx)

	p.mu.Lock()
	if generation != p.generation {
		p.mu.Unlock()
		p.logger.Info("fetch result discarded after stop")
		return false
	}
	if err == nil && snap == nil {
		err = errors.New("snapshot source returned no document")
	}
	if err != nil {
		p.state = StateIdle
		p.lastErr = err
		p.mu.Unlock()
		p.logger.Error("snapshot fetch failed", zap.Error(err))
		if p.reporter != nil {
			p.reporter.FetchFailed(err)
		}
		return false
	}

	version, err := hash.CalculateVersion(snap)
	if err != nil {
		p.logger.Warn("calculate snapshot version failed", zap.Error(err))
	} else if p.skipUnchanged && version == p.lastVersion {
		p.state = StateIdle
		p.lastErr = nil
		p.mu.Unlock()
		p.logger.Debug("snapshot unchanged", zap.String("version", version))
		return false
	}
	p.lastVersion = version
	p.lastErr = nil
	p.cycle++
	cycle := p.cycle
	p.state = StateDiffing
	p.mu.Unlock()

	p.diffMu.Lock()
	defer p.diffMu.Unlock()

	logger := p.logger.With(zap.Uint64("cycle", cycle), zap.String("trace", newTrace()))
	events := p.pipeline.Run(cycle, snap, p.reporter)

	p.mu.Lock()
	if generation != p.generation {
		// 差异计算期间被停止或重启
		p.mu.Unlock()
		p.cache.Reset()
		logger.Info("cycle abandoned after stop", zap.Int("events", events))
		return true
	}
	p.state = StateIdle
	p.lastCycleAt = time.Now()
	p.mu.Unlock()

	elapsed := time.Since(start)
	logger.Debug("cycle completed",
		zap.String("version", version),
		zap.Int("events", events),
		zap.Duration("elapsed", elapsed))
	if p.reporter != nil {
		p.reporter.CycleCompleted(cycle, events, elapsed)
	}
	return true
}

func newTrace() string {
	uuid, err := random.UUIdV4()
	if err != nil {
		return ""
	}
	return cryptor.Md5String(uuid)
}

func (p *PollDriver) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *PollDriver) Cycle() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cycle
}

func (p *PollDriver) Status() DriverStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	status := DriverStatus{
		State:       p.state,
		Cycle:       p.cycle,
		LastVersion: p.lastVersion,
		LastCycleAt: p.lastCycleAt,
	}
	if p.lastErr != nil {
		status.LastError = p.lastErr.Error()
	}
	return status
}
