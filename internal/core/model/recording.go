package model

import "sort"

// RecordingMeta summarizes a recording. EndTime stays zero until the first
// event arrives; Finalized is set once the connection leaves connected.
type RecordingMeta struct {
	ID         string   `json:"id"`
	StartTime  int64    `json:"startTime"`
	EndTime    int64    `json:"endTime"`
	SessionIDs []string `json:"sessionIDs"`
	EventCount int      `json:"eventCount"`
	Finalized  bool     `json:"finalized"`
}

// Observe folds one appended entry into the metadata
func (m *RecordingMeta) Observe(entry TimelineEntry) {
	m.EventCount++
	if entry.Timestamp > m.EndTime {
		m.EndTime = entry.Timestamp
	}
	m.AddSession(entry.SessionID)
}

// AddSession records a session ID, keeping SessionIDs sorted and unique
func (m *RecordingMeta) AddSession(id string) {
	if id == "" {
		return
	}
	i := sort.SearchStrings(m.SessionIDs, id)
	if i < len(m.SessionIDs) && m.SessionIDs[i] == id {
		return
	}
	m.SessionIDs = append(m.SessionIDs, "")
	copy(m.SessionIDs[i+1:], m.SessionIDs[i:])
	m.SessionIDs[i] = id
}

// Recording is the self-describing export unit
type Recording struct {
	Meta   RecordingMeta   `json:"meta"`
	Events []TimelineEntry `json:"events"`
}
