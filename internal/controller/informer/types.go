package informer

import (
	"context"
	"time"

	"collectivewatch/internal/model"
)

// SnapshotSource 一次请求取回完整的拓扑快照
type SnapshotSource interface {
	Fetch(ctx context.Context) (*model.Snapshot, error)
}

// Resolver 把资源 ID 解析成完整的资源对象
// 任意一个 ID 不存在时返回错误，不返回部分结果
type Resolver interface {
	Resolve(ctx context.Context, t model.ResourceType, ids []string) ([]*model.Resource, error)
}

// Reporter 接收取数和差异计算的失败，以及每轮的完成情况
type Reporter interface {
	FetchFailed(err error)
	DiffFailed(t model.ResourceType, err error)
	CycleCompleted(cycle uint64, events int, elapsed time.Duration)
}

// Observer 父资源变化的观察者
type Observer interface {
	// OnTallyChange 覆盖自身计数，同步执行，无 I/O
	OnTallyChange(newTallies model.Tallies)
	// OnListChange 先移除 removed，再解析 added 并追加；同一实例上不可重入
	OnListChange(ctx context.Context, added, removed []string) error
	// OnParentDestroyed 父资源已被整体移除
	OnParentDestroyed()
}

// Handler 总线订阅者的回调
type Handler func(ev model.ChangeEvent)

// Stage 轮询周期中的一个差异计算步骤
type Stage interface {
	Type() model.ResourceType
	// Run 对本轮快照计算差异并发布，返回发布的事件数
	Run(cycle uint64, snap *model.Snapshot) (int, error)
}

// State Poll Driver 的状态
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateDiffing  State = "diffing"
	StateStopped  State = "stopped"
)
