package collective

// Tally 成员状态计数
type Tally struct {
	Up      int `json:"up"`
	Down    int `json:"down"`
	Unknown int `json:"unknown"`
	Partial int `json:"partial,omitempty"`
	Empty   int `json:"empty,omitempty"`
}

// HostTally host/runtime 的计数按其下 server 的运行情况划分
type HostTally struct {
	AllServersRunning  int `json:"allServersRunning"`
	AllServersStopped  int `json:"allServersStopped"`
	AllServersUnknown  int `json:"allServersUnknown"`
	SomeServersRunning int `json:"someServersRunning"`
	NoServers          int `json:"noServers"`
}

func (t HostTally) Tally() Tally {
	return Tally{
		Up:      t.AllServersRunning,
		Down:    t.AllServersStopped,
		Unknown: t.AllServersUnknown,
		Partial: t.SomeServersRunning,
		Empty:   t.NoServers,
	}
}

// Resource 单个资源
// Members 含义随类型不同：host/runtime/cluster 为 server ID，server 为应用 ID，application 为所在 server ID
type Resource struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state,omitempty"`
	Tally
	Members  []string `json:"members"`
	Tags     []string `json:"tags,omitempty"`
	Owner    string   `json:"owner,omitempty"`
	Contacts []string `json:"contacts,omitempty"`
	Note     string   `json:"note,omitempty"`
}

// Collection 某一类型的完整列表
type Collection struct {
	Tally
	IDs  []string    `json:"ids"`
	List []*Resource `json:"list"`
}

// Summary GET /ibm/api/collective/v1/summary
type Summary struct {
	Name         string    `json:"name,omitempty"`
	UUID         string    `json:"uuid,omitempty"`
	Hosts        HostTally `json:"hosts"`
	Runtimes     HostTally `json:"runtimes"`
	Servers      Tally     `json:"servers"`
	Clusters     Tally     `json:"clusters"`
	Applications Tally     `json:"applications"`
}

type AlertRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type AppAlert struct {
	Name    string   `json:"name"`
	Servers []string `json:"servers"`
}

// Alerts GET /ibm/api/collective/v1/alerts
type Alerts struct {
	Count   int         `json:"count"`
	Unknown []*AlertRef `json:"unknown"`
	App     []*AppAlert `json:"app"`
}

// Snapshot GET /ibm/api/collective/v1/snapshot，一次请求返回全部类型
type Snapshot struct {
	Hosts        *Collection `json:"hosts"`
	Runtimes     *Collection `json:"runtimes"`
	Servers      *Collection `json:"servers"`
	Clusters     *Collection `json:"clusters"`
	Applications *Collection `json:"applications"`
	Summary      *Summary    `json:"summary"`
	Alerts       *Alerts     `json:"alerts"`
}

type searchList struct {
	List []*Resource `json:"list"`
}

// SearchResult GET /ibm/api/collective/v1/search，按类型的复数名分组
type SearchResult struct {
	Hosts        *searchList `json:"hosts,omitempty"`
	Runtimes     *searchList `json:"runtimes,omitempty"`
	Servers      *searchList `json:"servers,omitempty"`
	Clusters     *searchList `json:"clusters,omitempty"`
	Applications *searchList `json:"applications,omitempty"`
}

// ListOf 返回某类型（复数名）的搜索结果
func (r *SearchResult) ListOf(plural string) []*Resource {
	var l *searchList
	switch plural {
	case "hosts":
		l = r.Hosts
	case "runtimes":
		l = r.Runtimes
	case "servers":
		l = r.Servers
	case "clusters":
		l = r.Clusters
	case "applications":
		l = r.Applications
	}
	if l == nil {
		return nil
	}
	return l.List
}
