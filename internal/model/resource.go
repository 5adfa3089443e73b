package model

import (
	"strings"
)

// ResourceType 资源类型
type ResourceType string

const (
	TypeHost        ResourceType = "host"
	TypeRuntime     ResourceType = "runtime"
	TypeServer      ResourceType = "server"
	TypeCluster     ResourceType = "cluster"
	TypeApplication ResourceType = "application"

	// 服务端计算的汇总与告警摘要
	TypeSummary ResourceType = "summary"
	TypeAlerts  ResourceType = "alerts"
)

// ResourceTypes 资源差异计算的固定顺序，下游聚合依赖上游先完成
var ResourceTypes = []ResourceType{
	TypeHost,
	TypeRuntime,
	TypeServer,
	TypeCluster,
	TypeApplication,
}

// DigestTypes 摘要差异计算的固定顺序，必须在所有资源类型之后
var DigestTypes = []ResourceType{
	TypeSummary,
	TypeAlerts,
}

// MemberTypes 每种资源的 memberIds 所指向的资源类型
var MemberTypes = map[ResourceType]ResourceType{
	TypeHost:        TypeServer,
	TypeRuntime:     TypeServer,
	TypeCluster:     TypeServer,
	TypeServer:      TypeApplication,
	TypeApplication: TypeServer,
}

func (t ResourceType) IsResource() bool {
	for _, rt := range ResourceTypes {
		if rt == t {
			return true
		}
	}
	return false
}

func (t ResourceType) IsDigest() bool {
	return t == TypeSummary || t == TypeAlerts
}

// Plural 集合名，与 collective REST API 的路径一致
func (t ResourceType) Plural() string {
	if t.IsDigest() {
		return string(t)
	}
	return string(t) + "s"
}

// ParseResourceType 同时接受单数和复数形式
func ParseResourceType(s string) (ResourceType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range append(append([]ResourceType{}, ResourceTypes...), DigestTypes...) {
		if s == string(t) || s == t.Plural() {
			return t, true
		}
	}
	return "", false
}

// Metadata 资源的用户元数据
type Metadata struct {
	Tags     []string `json:"tags,omitempty"`
	Owner    string   `json:"owner,omitempty"`
	Contacts []string `json:"contacts,omitempty"`
	Note     string   `json:"note,omitempty"`
}

// Resource 由 resolver 解析出的完整资源对象
type Resource struct {
	Type      ResourceType `json:"type"`
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	State     string       `json:"state,omitempty"`
	Tallies   Tallies      `json:"tallies"`
	MemberIDs []string     `json:"member_ids,omitempty"`
	Metadata  Metadata     `json:"metadata"`
}

// AppNameFromID 从 "{server|cluster},{appName}" 形式的应用 ID 中取出应用名
func AppNameFromID(id string) string {
	return id[strings.LastIndex(id, ",")+1:]
}

// ParentFromAppID 从应用 ID 中取出所属 server 或 cluster 的 ID
func ParentFromAppID(id string) string {
	idx := strings.LastIndex(id, ",")
	if idx < 0 {
		return ""
	}
	return id[:idx]
}
