package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"collectivewatch/internal/controller/informer"
	"collectivewatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchResolver_Resolve(t *testing.T) {
	fake := newFakeCollective()
	fake.put("servers", server("S1", "S1,shop"), server("S2"), server("S3"))
	r := NewSearchResolver(newFakeClient(t, fake), testLogger(t))

	got, err := r.Resolve(context.Background(), model.TypeServer, []string{"S3", "S1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	// 按请求顺序返回
	assert.Equal(t, "S3", got[0].ID)
	assert.Equal(t, "S1", got[1].ID)
	assert.Equal(t, []string{"S1,shop"}, got[1].MemberIDs)
	assert.Equal(t, int32(1), fake.searches.Load())

	// 命中对象表的 ID 不再查询
	_, err = r.Resolve(context.Background(), model.TypeServer, []string{"S1", "S3"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.searches.Load())

	_, err = r.Resolve(context.Background(), model.TypeServer, []string{"S1", "S2"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.searches.Load())
	assert.Equal(t, 3, r.Len())
}

func TestSearchResolver_AllOrNothing(t *testing.T) {
	fake := newFakeCollective()
	fake.put("servers", server("S1"))
	r := NewSearchResolver(newFakeClient(t, fake), testLogger(t))

	got, err := r.Resolve(context.Background(), model.TypeServer, []string{"S1", "S9"})
	assert.ErrorIs(t, err, informer.ErrNotFound)
	assert.Nil(t, got)

	// 找到的部分仍然进入对象表
	_, ok := r.Cached(model.TypeServer, "S1")
	assert.True(t, ok)
}

func TestSearchResolver_EmptyRequest(t *testing.T) {
	fake := newFakeCollective()
	r := NewSearchResolver(newFakeClient(t, fake), testLogger(t))

	got, err := r.Resolve(context.Background(), model.TypeServer, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(0), fake.searches.Load())
}

func TestSearchResolver_SharesInFlightSearch(t *testing.T) {
	fake := newFakeCollective()
	fake.put("servers", server("S1"), server("S2"))
	fake.gate = make(chan struct{})
	r := NewSearchResolver(newFakeClient(t, fake), testLogger(t))

	var wg sync.WaitGroup
	results := make([][]*model.Resource, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids := []string{"S1", "S2"}
			if i%2 == 1 {
				ids = []string{"S2", "S1"}
			}
			got, err := r.Resolve(context.Background(), model.TypeServer, ids)
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}

	require.Eventually(t, func() bool { return fake.searches.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(fake.gate)
	wg.Wait()

	assert.Equal(t, int32(1), fake.searches.Load())
	for _, got := range results {
		assert.Len(t, got, 2)
	}
}

func TestSearchResolver_Invalidate(t *testing.T) {
	r := NewSearchResolver(mustClient(t, "http://127.0.0.1:1"), testLogger(t))
	r.Store(
		&model.Resource{Type: model.TypeServer, ID: "S1"},
		&model.Resource{Type: model.TypeServer, ID: "S2"},
		&model.Resource{Type: model.TypeCluster, ID: "C1"},
		nil,
	)
	require.Equal(t, 3, r.Len())

	r.Invalidate(model.ChangeEvent{Type: model.TypeServer, Removed: []string{"S2"}})
	_, ok := r.Cached(model.TypeServer, "S2")
	assert.False(t, ok)

	r.Invalidate(model.ChangeEvent{Type: model.TypeCluster, ID: "C1", ChangedTallies: model.TallyDelta{"up": 1}})
	_, ok = r.Cached(model.TypeCluster, "C1")
	assert.False(t, ok)

	// 只有新增的集合事件不影响已有对象
	r.Invalidate(model.ChangeEvent{Type: model.TypeServer, Added: []string{"S3"}})
	_, ok = r.Cached(model.TypeServer, "S1")
	assert.True(t, ok)
}

func TestSearchKey(t *testing.T) {
	assert.Equal(t, searchKey(model.TypeServer, []string{"b", "a"}), searchKey(model.TypeServer, []string{"a", "b"}))
	assert.NotEqual(t, searchKey(model.TypeServer, []string{"a"}), searchKey(model.TypeCluster, []string{"a"}))
}

func TestSearchResolver_CallerCancelDoesNotFailSharedSearch(t *testing.T) {
	fake := newFakeCollective()
	fake.put("servers", server("S1"))
	fake.gate = make(chan struct{})
	r := NewSearchResolver(newFakeClient(t, fake), testLogger(t))

	ctx1, cancel1 := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx1, model.TypeServer, []string{"S1"})
		first <- err
	}()
	require.Eventually(t, func() bool { return fake.searches.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		got []*model.Resource
		err error
	}
	second := make(chan result, 1)
	go func() {
		got, err := r.Resolve(context.Background(), model.TypeServer, []string{"S1"})
		second <- result{got, err}
	}()
	time.Sleep(20 * time.Millisecond)

	// 发起者取消后立即返回，另一个调用方继续等待同一次查询
	cancel1()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(fake.gate)
	res := <-second
	require.NoError(t, res.err)
	require.Len(t, res.got, 1)
	assert.Equal(t, "S1", res.got[0].ID)
	assert.Equal(t, int32(1), fake.searches.Load())
	_, ok := r.Cached(model.TypeServer, "S1")
	assert.True(t, ok)
}
