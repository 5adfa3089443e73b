package model

import (
	"sort"
)

const (
	FieldUp      = "up"
	FieldDown    = "down"
	FieldUnknown = "unknown"
	FieldPartial = "partial"
	FieldEmpty   = "empty"
)

// Tallies 成员状态的聚合计数
type Tallies struct {
	Up      int `json:"up"`
	Down    int `json:"down"`
	Unknown int `json:"unknown"`
	Partial int `json:"partial,omitempty"`
	Empty   int `json:"empty,omitempty"`
}

// Counts 通用计数，key 为字段名
type Counts map[string]int

// TallyDelta 只包含数值发生变化的字段（新值）
type TallyDelta map[string]int

func (t Tallies) Counts() Counts {
	return Counts{
		FieldUp:      t.Up,
		FieldDown:    t.Down,
		FieldUnknown: t.Unknown,
		FieldPartial: t.Partial,
		FieldEmpty:   t.Empty,
	}
}

// Apply 用 delta 覆盖对应字段，返回新值
func (t Tallies) Apply(delta TallyDelta) Tallies {
	for field, v := range delta {
		switch field {
		case FieldUp:
			t.Up = v
		case FieldDown:
			t.Down = v
		case FieldUnknown:
			t.Unknown = v
		case FieldPartial:
			t.Partial = v
		case FieldEmpty:
			t.Empty = v
		}
	}
	return t
}

func (t Tallies) NonNegative() bool {
	return t.Counts().NonNegative()
}

func (c Counts) NonNegative() bool {
	for _, v := range c {
		if v < 0 {
			return false
		}
	}
	return true
}

func (c Counts) Clone() Counts {
	out := make(Counts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Keys 按字典序返回
func (c Counts) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
