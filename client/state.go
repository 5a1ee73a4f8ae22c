package client

import (
	"sync"

	"VChat/module/chat/model"
)

// ConvState holds the selected counterpart, the visible history with them
// and the per-counterpart unseen counters. Reconciliation rule for pushes:
// append when the sender is the selected counterpart, otherwise bump that
// sender's unseen counter and leave history alone.
type ConvState struct {
	mu       sync.Mutex
	selected string
	history  []*model.Message
	unseen   map[string]int64
}

func NewConvState() *ConvState {
	return &ConvState{unseen: make(map[string]int64)}
}

// Select makes id the active counterpart and replaces the visible history
// outright with the fetched list (last fetch wins, no merge). The server
// marked the fetched messages seen, so the counter resets with it.
func (s *ConvState) Select(id string, history []*model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = id
	s.history = append([]*model.Message(nil), history...)
	delete(s.unseen, id)
}

// Deselect clears the active counterpart and history.
func (s *ConvState) Deselect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = ""
	s.history = nil
}

func (s *ConvState) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// ApplyIncoming reconciles one pushed message; reports whether it was
// appended to the visible history.
func (s *ConvState) ApplyIncoming(msg *model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != "" && msg.SenderID == s.selected {
		s.history = append(s.history, msg)
		return true
	}
	s.unseen[msg.SenderID]++
	return false
}

// AppendLocal appends the caller's own persisted message to the history.
func (s *ConvState) AppendLocal(msg *model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msg)
}

// History returns a copy of the visible history.
func (s *ConvState) History() []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Message(nil), s.history...)
}

func (s *ConvState) Unseen(id string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unseen[id]
}

// UnseenAll returns a copy of the counters.
func (s *ConvState) UnseenAll() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.unseen))
	for k, v := range s.unseen {
		out[k] = v
	}
	return out
}

// SeedUnseen overwrites the counters with the server-computed map from a
// users fetch.
func (s *ConvState) SeedUnseen(counts map[string]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unseen = make(map[string]int64, len(counts))
	for k, v := range counts {
		s.unseen[k] = v
	}
}

// ClearUnseen zeroes one counterpart's counter.
func (s *ConvState) ClearUnseen(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unseen, id)
}

// Reset drops all conversation state, used at logout.
func (s *ConvState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = ""
	s.history = nil
	s.unseen = make(map[string]int64)
}
