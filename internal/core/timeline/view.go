package timeline

import (
	"strings"
	"sync"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
)

// RecentEdgeCount is how many trailing visible entries count as recent
const RecentEdgeCount = 8

// Filter narrows the timeline. Zero-valued fields do not constrain.
type Filter struct {
	SessionID string
	Category  model.Category
	Actor     model.Actor
	ToolName  string
	Search    string
}

// IsEmpty reports whether the filter lets everything through
func (f Filter) IsEmpty() bool {
	return f == Filter{}
}

// Match reports whether the entry passes every set constraint
func (f Filter) Match(entry *model.TimelineEntry) bool {
	if f.SessionID != "" && entry.SessionID != f.SessionID {
		return false
	}
	if f.Category != "" && entry.Category != f.Category {
		return false
	}
	if f.Actor != "" && !entry.Involves(f.Actor) {
		return false
	}
	if f.ToolName != "" && entry.ToolName() != f.ToolName {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		haystacks := []string{entry.Label, entry.ShortLabel, entry.ToolName(), entry.ErrorText()}
		found := false
		for _, h := range haystacks {
			if h != "" && strings.Contains(strings.ToLower(h), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Projection is what a consumer renders for one store state and filter
type Projection struct {
	Filtered     []model.TimelineEntry
	Visible      []model.TimelineEntry
	Current      *model.TimelineEntry
	RecentEdges  []model.TimelineEntry
	ActiveActors []model.Actor
	SessionIDs   []string
	Cursor       int
	Mode         model.Mode
	Total        int
}

// Project derives the filtered and visible entries. It has no side effects.
//
// Without a session filter visibility follows the global cursor index. With
// one, it compares sequence indexes against the entry under the cursor, since
// the cursor may sit on an entry of another session.
func Project(state model.TimelineState, filter Filter) Projection {
	p := Projection{
		Cursor: state.Cursor,
		Mode:   state.Mode,
		Total:  len(state.Entries),
	}

	seenSessions := make(map[string]bool)
	for i := range state.Entries {
		sid := state.Entries[i].SessionID
		if !seenSessions[sid] {
			seenSessions[sid] = true
			p.SessionIDs = append(p.SessionIDs, sid)
		}
	}

	cursorEntry := state.CursorEntry()
	for i := range state.Entries {
		entry := &state.Entries[i]
		if !filter.Match(entry) {
			continue
		}
		p.Filtered = append(p.Filtered, *entry)

		switch {
		case cursorEntry == nil:
			p.Visible = append(p.Visible, *entry)
		case filter.SessionID != "":
			if entry.SequenceIndex <= cursorEntry.SequenceIndex {
				p.Visible = append(p.Visible, *entry)
			}
		case i <= state.Cursor:
			p.Visible = append(p.Visible, *entry)
		}
	}

	if n := len(p.Visible); n > 0 {
		p.Current = &p.Visible[n-1]
		start := n - RecentEdgeCount
		if start < 0 {
			start = 0
		}
		p.RecentEdges = p.Visible[start:]
	}

	active := make(map[model.Actor]bool)
	for i := range p.Visible {
		active[p.Visible[i].From] = true
		active[p.Visible[i].To] = true
	}
	for _, a := range model.Actors {
		if active[a] {
			p.ActiveActors = append(p.ActiveActors, a)
		}
	}
	return p
}

// View caches the projection of a store under a filter, recomputing only when
// the store version or the filter changed since the last read.
type View struct {
	store *Store

	mu            sync.Mutex
	filter        Filter
	filterVersion uint64
	cached        *Projection
	cachedStore   uint64
	cachedFilter  uint64
}

func NewView(store *Store) *View {
	return &View{store: store}
}

// SetFilter replaces the filter
func (v *View) SetFilter(filter Filter) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if filter == v.filter {
		return
	}
	v.filter = filter
	v.filterVersion++
}

func (v *View) Filter() Filter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

// Projection returns the current projection, recomputing if stale
func (v *View) Projection() Projection {
	state := v.store.Snapshot()

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cached != nil && v.cachedStore == state.Version && v.cachedFilter == v.filterVersion {
		return *v.cached
	}
	p := Project(state, v.filter)
	v.cached = &p
	v.cachedStore = state.Version
	v.cachedFilter = v.filterVersion
	return p
}
