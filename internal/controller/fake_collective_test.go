package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"collectivewatch/pkg/collective"
	"collectivewatch/pkg/log"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func testLogger(t *testing.T) *log.Logger {
	return log.NewWithZap(zaptest.NewLogger(t))
}

func nopLogger() *log.Logger {
	return log.NewWithZap(zap.NewNop())
}

// fakeCollective 模拟 collective REST API 的 snapshot 与 search
type fakeCollective struct {
	lock      sync.Mutex
	snapshot  *collective.Snapshot
	resources map[string]map[string]*collective.Resource

	snapshots atomic.Int32
	searches  atomic.Int32
	// gate 不为空时 search 请求等待它关闭
	gate chan struct{}
}

func newFakeCollective() *fakeCollective {
	return &fakeCollective{
		snapshot:  &collective.Snapshot{},
		resources: make(map[string]map[string]*collective.Resource),
	}
}

func (f *fakeCollective) setSnapshot(snap *collective.Snapshot) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.snapshot = snap
}

func (f *fakeCollective) put(plural string, resources ...*collective.Resource) {
	f.lock.Lock()
	defer f.lock.Unlock()
	byID, ok := f.resources[plural]
	if !ok {
		byID = make(map[string]*collective.Resource)
		f.resources[plural] = byID
	}
	for _, r := range resources {
		byID[r.ID] = r
	}
}

func (f *fakeCollective) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch strings.TrimPrefix(r.URL.Path, "/ibm/api/collective/v1") {
	case "/snapshot":
		f.snapshots.Add(1)
		f.lock.Lock()
		defer f.lock.Unlock()
		_ = json.NewEncoder(w).Encode(f.snapshot)
	case "/search":
		f.searches.Add(1)
		if f.gate != nil {
			<-f.gate
		}
		plural := r.URL.Query().Get("type") + "s"
		f.lock.Lock()
		defer f.lock.Unlock()
		var list []*collective.Resource
		for _, id := range r.URL.Query()["id"] {
			if res, ok := f.resources[plural][strings.TrimPrefix(id, "~eq~")]; ok {
				list = append(list, res)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{plural: map[string]interface{}{"list": list}})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
	}
}

func newFakeClient(t *testing.T, f *fakeCollective) *collective.Client {
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := collective.NewClient(srv.URL, "admin", "secret")
	require.NoError(t, err)
	return c
}

func server(id string, apps ...string) *collective.Resource {
	return &collective.Resource{ID: id, Name: id, State: "STARTED", Tally: collective.Tally{Up: len(apps)}, Members: apps}
}

func cluster(id string, up, down int, servers ...string) *collective.Resource {
	return &collective.Resource{ID: id, Name: id, Tally: collective.Tally{Up: up, Down: down}, Members: servers}
}

func collectionOf(resources ...*collective.Resource) *collective.Collection {
	c := &collective.Collection{IDs: []string{}, List: []*collective.Resource{}}
	for _, r := range resources {
		c.IDs = append(c.IDs, r.ID)
		c.List = append(c.List, r)
	}
	c.Up = len(resources)
	return c
}

// topology 一个 cluster 与它的 server
func topology(clusterID string, servers ...*collective.Resource) *collective.Snapshot {
	ids := make([]string, 0, len(servers))
	for _, s := range servers {
		ids = append(ids, s.ID)
	}
	return &collective.Snapshot{
		Hosts:        collectionOf(),
		Runtimes:     collectionOf(),
		Servers:      collectionOf(servers...),
		Clusters:     collectionOf(cluster(clusterID, len(servers), 0, ids...)),
		Applications: collectionOf(),
		Summary:      &collective.Summary{Servers: collective.Tally{Up: len(servers)}, Clusters: collective.Tally{Up: 1}},
		Alerts:       &collective.Alerts{Unknown: []*collective.AlertRef{}, App: []*collective.AppAlert{}},
	}
}
