package timeline

import (
	"errors"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
)

// DefaultSnapshotInterval is how many entries apart seek snapshots are recorded
const DefaultSnapshotInterval = 100

// ErrOutOfOrder is returned when an entry does not extend the sequence.
// Duplicate deliveries from the upstream end up here.
var ErrOutOfOrder = errors.New("entry sequence index is not after the last stored entry")

// ChangeKind identifies which mutator produced a change notification
type ChangeKind int

const (
	ChangeAppend ChangeKind = iota
	ChangeCursor
	ChangeMode
	ChangeClear
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAppend:
		return "append"
	case ChangeCursor:
		return "cursor"
	case ChangeMode:
		return "mode"
	case ChangeClear:
		return "clear"
	default:
		return "unknown"
	}
}

// Change describes a store mutation after it has been applied
type Change struct {
	Kind    ChangeKind
	Version uint64
	Cursor  int
	Mode    model.Mode
	Len     int
}

// Listener receives change notifications synchronously, outside the store lock
type Listener func(Change)
