package controller

import (
	"context"
	"fmt"
	"time"

	"collectivewatch/internal/controller/informer"
	"collectivewatch/internal/model"
	"collectivewatch/pkg/collective"
	"collectivewatch/pkg/log"

	"go.uber.org/zap"
)

var _ informer.SnapshotSource = (*CollectiveSource)(nil)

// CollectiveSource 从 collective controller 取回快照并转换为内部模型
type CollectiveSource struct {
	client *collective.Client
	logger *log.Logger
}

func NewCollectiveSource(client *collective.Client, logger *log.Logger) *CollectiveSource {
	return &CollectiveSource{
		client: client,
		logger: logger,
	}
}

func (s *CollectiveSource) Fetch(ctx context.Context) (*model.Snapshot, error) {
	payload, err := s.client.GetSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch collective snapshot: %w", err)
	}
	snap := ConvertSnapshot(payload)
	s.logger.Debug("collective snapshot fetched",
		zap.Int("types", len(snap.Listings)),
		zap.Bool("summary", snap.Summary != nil),
		zap.Bool("alerts", snap.Alerts != nil))
	return snap, nil
}

// ConvertSnapshot 缺失的类型不生成 listing，由差异计算按数据完整性错误处理
func ConvertSnapshot(payload *collective.Snapshot) *model.Snapshot {
	snap := &model.Snapshot{
		Listings:  make(map[model.ResourceType]*model.TypeListing),
		FetchedAt: time.Now(),
	}
	collections := map[model.ResourceType]*collective.Collection{
		model.TypeHost:        payload.Hosts,
		model.TypeRuntime:     payload.Runtimes,
		model.TypeServer:      payload.Servers,
		model.TypeCluster:     payload.Clusters,
		model.TypeApplication: payload.Applications,
	}
	for t, c := range collections {
		if c != nil {
			snap.Listings[t] = convertCollection(t, c)
		}
	}
	if payload.Summary != nil {
		snap.Summary = convertSummary(payload.Summary)
	}
	if payload.Alerts != nil {
		snap.Alerts = convertAlerts(payload.Alerts)
	}
	return snap
}

func convertCollection(t model.ResourceType, c *collective.Collection) *model.TypeListing {
	listing := &model.TypeListing{
		Resources: make([]*model.ResourceSnapshot, 0, len(c.List)),
	}
	ids := c.IDs
	if ids == nil {
		ids = make([]string, 0, len(c.List))
	}
	for _, r := range c.List {
		if r == nil {
			// 保留空项，交给校验报告
			listing.Resources = append(listing.Resources, nil)
			continue
		}
		listing.Resources = append(listing.Resources, model.NewResourceSnapshot(t, r.ID, convertTally(r.Tally), r.Members))
		if c.IDs == nil {
			ids = append(ids, r.ID)
		}
	}
	listing.Collection = model.NewResourceSnapshot(t, "", convertTally(c.Tally), ids)
	return listing
}

func convertTally(t collective.Tally) model.Tallies {
	return model.Tallies{
		Up:      t.Up,
		Down:    t.Down,
		Unknown: t.Unknown,
		Partial: t.Partial,
		Empty:   t.Empty,
	}
}

// convertSummary 以 "<type>.<field>" 为 key 展开各类型的计数
func convertSummary(s *collective.Summary) *model.Digest {
	counts := model.Counts{}
	put := func(t model.ResourceType, tally model.Tallies) {
		for field, v := range tally.Counts() {
			counts[string(t)+"."+field] = v
		}
	}
	put(model.TypeHost, convertTally(s.Hosts.Tally()))
	put(model.TypeRuntime, convertTally(s.Runtimes.Tally()))
	put(model.TypeServer, convertTally(s.Servers))
	put(model.TypeCluster, convertTally(s.Clusters))
	put(model.TypeApplication, convertTally(s.Applications))
	return model.NewDigest(model.TypeSummary, counts, nil)
}

// convertAlerts 成员为告警对象，unknown 为 "<type>/<id>"，应用告警为 "application/<name>"
func convertAlerts(a *collective.Alerts) *model.Digest {
	members := make([]string, 0, len(a.Unknown)+len(a.App))
	for _, u := range a.Unknown {
		if u != nil {
			members = append(members, u.Type+"/"+u.ID)
		}
	}
	for _, app := range a.App {
		if app != nil {
			members = append(members, string(model.TypeApplication)+"/"+app.Name)
		}
	}
	counts := model.Counts{
		"count":   a.Count,
		"unknown": len(a.Unknown),
		"app":     len(a.App),
	}
	return model.NewDigest(model.TypeAlerts, counts, members)
}

// ConvertResource 转换为 resolver 返回的完整资源对象
func ConvertResource(t model.ResourceType, r *collective.Resource) *model.Resource {
	return &model.Resource{
		Type:      t,
		ID:        r.ID,
		Name:      r.Name,
		State:     r.State,
		Tallies:   convertTally(r.Tally),
		MemberIDs: append([]string(nil), r.Members...),
		Metadata: model.Metadata{
			Tags:     r.Tags,
			Owner:    r.Owner,
			Contacts: r.Contacts,
			Note:     r.Note,
		},
	}
}
