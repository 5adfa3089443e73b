package controller

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"collectivewatch/internal/controller/informer"
	"collectivewatch/internal/model"
	"collectivewatch/internal/repository"
	"collectivewatch/pkg/sid"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) (repository.ChangeJournalRepository, *sid.Sid) {
	conf := viper.New()
	conf.Set("journal.enabled", true)
	conf.Set("journal.auto_migrate", true)
	conf.Set("env", "prod")
	conf.Set("data.db.driver", "sqlite")
	conf.Set("data.db.dsn", filepath.Join(t.TempDir(), "journal.db"))
	conf.Set("sid.machine_id", 1)

	db, cleanup, err := repository.NewDB(conf, nopLogger())
	require.NoError(t, err)
	t.Cleanup(cleanup)

	idGen, err := sid.NewSid(conf)
	require.NoError(t, err)
	return repository.NewChangeJournalRepository(repository.NewRepository(nopLogger(), db)), idGen
}

func TestJournalRelay_Run(t *testing.T) {
	repo, idGen := newTestJournal(t)
	bus := informer.NewBus(testLogger(t))
	relay := NewJournalRelay(repo, idGen, 16, testLogger(t), WithBatch(2, 10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx, bus) }()
	require.Eventually(t, func() bool { return bus.SubscriberCount("server") == 1 }, time.Second, 5*time.Millisecond)

	ev := model.ChangeEvent{Type: model.TypeCluster, ID: "C1", Cycle: 3, Added: []string{"S3"}}
	bus.Publish(ev, ev.Topic(), model.CollectionTopic(model.TypeCluster))
	bus.Publish(model.ChangeEvent{Type: model.TypeServer, Cycle: 3, Added: []string{"S3"}}, "server")

	require.Eventually(t, func() bool {
		records, err := repo.List(context.Background(), repository.JournalQuery{})
		return err == nil && len(records) == 2
	}, 2*time.Second, 10*time.Millisecond)

	records, err := repo.List(context.Background(), repository.JournalQuery{Type: "cluster"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	// 资源 topic 不在订阅范围内，只记录集合 topic 上的镜像
	assert.Equal(t, "cluster", records[0].Topic)
	assert.Equal(t, "C1", records[0].ResourceID)
	var got model.ChangeEvent
	require.NoError(t, json.Unmarshal([]byte(records[0].Payload), &got))
	assert.Equal(t, ev, got)

	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, 0, bus.SubscriberCount("server"))
}

func TestJournalRelay_FlushOnStop(t *testing.T) {
	repo, idGen := newTestJournal(t)
	bus := informer.NewBus(testLogger(t))
	// 批量和周期都足够大，只有停止时才会写入
	relay := NewJournalRelay(repo, idGen, 16, testLogger(t), WithBatch(100, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx, bus) }()
	require.Eventually(t, func() bool { return bus.SubscriberCount("alerts") == 1 }, time.Second, 5*time.Millisecond)

	bus.Publish(model.ChangeEvent{Type: model.TypeAlerts, Cycle: 9, ChangedTallies: model.TallyDelta{"count": 2}}, "alerts")
	cancel()
	require.NoError(t, <-done)

	records, err := repo.List(context.Background(), repository.JournalQuery{SinceCycle: 9})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "alerts", records[0].Type)
}

func TestJournalRelay_Prune(t *testing.T) {
	repo, idGen := newTestJournal(t)
	relay := NewJournalRelay(repo, idGen, 16, testLogger(t), WithRetention(time.Hour))

	require.NoError(t, repo.Append(context.Background(), []*model.ChangeRecord{
		{Id: 1, Cycle: 1, Type: "server", Topic: "server", Payload: "{}", CreateTime: time.Now().Add(-2 * time.Hour)},
		{Id: 2, Cycle: 2, Type: "server", Topic: "server", Payload: "{}", CreateTime: time.Now()},
	}))
	relay.prune(context.Background())

	records, err := repo.List(context.Background(), repository.JournalQuery{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0].Id)
}
