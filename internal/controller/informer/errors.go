package informer

import (
	"errors"
	"fmt"

	"collectivewatch/internal/model"
)

var (
	ErrDuplicateID      = errors.New("duplicate id")
	ErrMissingField     = errors.New("missing required field")
	ErrNegativeTally    = errors.New("negative tally")
	ErrTypeMismatch     = errors.New("resource type mismatch")
	ErrNoParent         = errors.New("derived collection requires a parent resource")
	ErrNoInitialList    = errors.New("derived collection requires an initial member list")
	ErrNotMember        = errors.New("member does not belong to parent")
	ErrAlreadyDestroyed = errors.New("derived collection already destroyed")
	ErrNotFound         = errors.New("resource not found")
	ErrStageOrder       = errors.New("invalid stage order")
	ErrNilHandler       = errors.New("nil handler")
)

// IntegrityError 上游快照的数据完整性错误，该类型本轮的差异计算会被跳过
type IntegrityError struct {
	Type   model.ResourceType
	ID     string
	Reason string
	Err    error
}

func (e *IntegrityError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("malformed %s snapshot %q: %s", e.Type, e.ID, e.Reason)
	}
	return fmt.Sprintf("malformed %s snapshot: %s", e.Type, e.Reason)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

func integrityError(t model.ResourceType, id string, err error, format string, args ...interface{}) *IntegrityError {
	return &IntegrityError{
		Type:   t,
		ID:     id,
		Reason: fmt.Sprintf(format, args...),
		Err:    err,
	}
}
