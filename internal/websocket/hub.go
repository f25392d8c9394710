package websocket

import (
	"encoding/json"
	"sync"
	"sync/atomic"
)

// BalanceUpdate is pushed to the owner of an account after a ledger commit.
type BalanceUpdate struct {
	AccountID string `json:"account_id"`
	UserID    string `json:"user_id"`
	Balance   int64  `json:"balance"`
	Amount    int64  `json:"amount"`
	EntryID   int64  `json:"entry_id"`
	Category  string `json:"category"`
}

// Hub fans balance updates out to the sockets a user has open in this process.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string][]*Client
	dropped  atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string][]*Client)}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[userID] = append(h.sessions[userID], client)
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	open := h.sessions[userID]
	for i, c := range open {
		if c != client {
			continue
		}
		open = append(open[:i], open[i+1:]...)
		break
	}
	if len(open) == 0 {
		delete(h.sessions, userID)
		return
	}
	h.sessions[userID] = open
}

// BroadcastBalance never blocks: a session whose buffer is full misses the update.
func (h *Hub) BroadcastBalance(userID string, update BalanceUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.sessions[userID] {
		select {
		case client.send <- payload:
		default:
			h.dropped.Add(1)
		}
	}
}

// Sessions counts open sockets across all users.
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, open := range h.sessions {
		total += len(open)
	}
	return total
}

// Dropped counts updates skipped because a session was too slow.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
