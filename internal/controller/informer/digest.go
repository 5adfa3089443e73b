package informer

import (
	"collectivewatch/internal/model"
	"collectivewatch/pkg/log"

	"go.uber.org/zap"
)

// DigestDifferencer summary/alerts 摘要的差异计算
// 读取的是服务端基于全部资源类型算出的结果，必须排在所有 ResourceDifferencer 之后
type DigestDifferencer struct {
	digestType model.ResourceType
	cache      *SnapshotCache
	bus        *Bus
	logger     *log.Logger
}

func NewDigestDifferencer(t model.ResourceType, cache *SnapshotCache, bus *Bus, logger *log.Logger) *DigestDifferencer {
	return &DigestDifferencer{
		digestType: t,
		cache:      cache,
		bus:        bus,
		logger:     logger,
	}
}

func (d *DigestDifferencer) Type() model.ResourceType {
	return d.digestType
}

func (d *DigestDifferencer) Run(cycle uint64, snap *model.Snapshot) (int, error) {
	digest := snap.Digest(d.digestType)
	if digest == nil {
		return 0, integrityError(d.digestType, "", ErrMissingField, "digest is absent")
	}
	if digest.Type != d.digestType {
		return 0, integrityError(d.digestType, "", ErrTypeMismatch, "got type %q", digest.Type)
	}
	if !digest.Counts.NonNegative() {
		return 0, integrityError(d.digestType, "", ErrNegativeTally, "counts %v", digest.Counts)
	}
	if err := validateMembers(d.digestType, "", digest.MemberIDs); err != nil {
		return 0, err
	}

	entry, exists := d.cache.Get(d.digestType, "")
	d.cache.PutDigest(digest, cycle)
	if !exists || entry.Digest == nil {
		d.logger.Debug("digest observed for the first time",
			zap.String("type", string(d.digestType)),
			zap.Uint64("cycle", cycle))
		return 0, nil
	}

	added, removed := diffMembers(entry.Digest.MemberIDs, digest.MemberIDs)
	ev := model.ChangeEvent{
		Type:           d.digestType,
		Cycle:          cycle,
		ChangedTallies: diffCounts(entry.Digest.Counts, digest.Counts),
		Added:          added,
		Removed:        removed,
	}
	if !ev.HasChanges() {
		return 0, nil
	}
	d.bus.Publish(ev, model.CollectionTopic(d.digestType))
	return 1, nil
}
