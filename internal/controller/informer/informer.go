package informer

import (
	"fmt"

	"collectivewatch/internal/model"
	"collectivewatch/pkg/log"

	"go.uber.org/zap"
)

// Pipeline 显式声明的差异计算顺序：资源类型按 model.ResourceTypes，之后是摘要
type Pipeline struct {
	stages []Stage
	logger *log.Logger
}

func NewPipeline(logger *log.Logger, stages ...Stage) (*Pipeline, error) {
	if err := ValidateOrder(stages); err != nil {
		return nil, err
	}
	return &Pipeline{
		stages: stages,
		logger: logger,
	}, nil
}

// NewDefaultPipeline 五个资源类型加 summary、alerts
func NewDefaultPipeline(cache *SnapshotCache, bus *Bus, logger *log.Logger, seedTypes ...model.ResourceType) (*Pipeline, error) {
	seeded := make(map[model.ResourceType]bool, len(seedTypes))
	for _, t := range seedTypes {
		seeded[t] = true
	}

	stages := make([]Stage, 0, len(model.ResourceTypes)+len(model.DigestTypes))
	for _, t := range model.ResourceTypes {
		stages = append(stages, NewResourceDifferencer(t, cache, bus, logger, WithSeedEvent(seeded[t])))
	}
	for _, t := range model.DigestTypes {
		stages = append(stages, NewDigestDifferencer(t, cache, bus, logger))
	}
	return NewPipeline(logger, stages...)
}

// ValidateOrder 资源类型不可重复且须按声明顺序出现，摘要只能排在所有资源类型之后
func ValidateOrder(stages []Stage) error {
	rank := make(map[model.ResourceType]int)
	for i, t := range model.ResourceTypes {
		rank[t] = i
	}
	for i, t := range model.DigestTypes {
		rank[t] = len(model.ResourceTypes) + i
	}

	last := -1
	for _, stage := range stages {
		if stage == nil {
			return fmt.Errorf("%w: nil stage", ErrStageOrder)
		}
		r, ok := rank[stage.Type()]
		if !ok {
			return fmt.Errorf("%w: unknown type %q", ErrStageOrder, stage.Type())
		}
		if r <= last {
			return fmt.Errorf("%w: %s must not run after %s", ErrStageOrder, stage.Type(), typeAtRank(rank, last))
		}
		last = r
	}
	return nil
}

func typeAtRank(rank map[model.ResourceType]int, r int) model.ResourceType {
	for t, v := range rank {
		if v == r {
			return t
		}
	}
	return ""
}

func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

func (p *Pipeline) Types() []model.ResourceType {
	types := make([]model.ResourceType, 0, len(p.stages))
	for _, stage := range p.stages {
		types = append(types, stage.Type())
	}
	return types
}

// Run 顺序执行所有 stage；某个类型失败不影响其余类型，返回本轮发布的事件数
func (p *Pipeline) Run(cycle uint64, snap *model.Snapshot, reporter Reporter) int {
	events := 0
	for _, stage := range p.stages {
		n, err := stage.Run(cycle, snap)
		events += n
		if err != nil {
			p.logger.Warn("diff skipped",
				zap.String("type", string(stage.Type())),
				zap.Uint64("cycle", cycle),
				zap.Error(err))
			if reporter != nil {
				reporter.DiffFailed(stage.Type(), err)
			}
		}
	}
	return events
}
