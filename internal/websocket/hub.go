package websocket

import (
	"encoding/json"
	"sync"
)

type WalletUpdate struct {
	Type         string `json:"type"`
	Spendable    int64  `json:"spendable"`
	Withdrawable int64  `json:"withdrawable"`
}

type MatchUpdate struct {
	Type        string `json:"type"`
	MatchID     string `json:"match_id"`
	Status      string `json:"status"`
	FilledSlots int    `json:"filled_slots"`
}

// Hub fans out updates to every open session of a user. Pushes are hints;
// clients re-fetch authoritative state over HTTP.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

func (h *Hub) BroadcastWallet(userID string, update WalletUpdate) {
	update.Type = "wallet"
	h.broadcast(userID, update)
}

func (h *Hub) BroadcastMatch(userID string, update MatchUpdate) {
	update.Type = "match"
	h.broadcast(userID, update)
}

func (h *Hub) broadcast(userID string, payload any) {
	data, _ := json.Marshal(payload)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- data:
		default:
		}
	}
}
