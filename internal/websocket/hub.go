package websocket

import (
	"sync"

	"chatify-realtime/internal/metrics"
)

// Hub tracks websocket clients and the room channels they listen to.
// Subscription changes take effect before the call returns, so
// SubscriberCount is exact when the registry asks whether a room is idle.
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client (for cleanup)
	clients map[string]*Client

	// channels maps channel name to set of clients subscribed to it
	channels map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		channels: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	n := len(h.clients)
	h.mu.Unlock()
	metrics.ConnectedClients.Set(float64(n))
}

// Unregister removes the client from every channel, closes its send queue and
// returns the channels it was subscribed to.
func (h *Hub) Unregister(client *Client) []string {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return nil
	}
	channels := client.Channels()
	for _, channel := range channels {
		h.removeSubscriber(channel, client)
		client.unsubscribe(channel)
	}
	delete(h.clients, client.ID)
	n := len(h.clients)
	h.mu.Unlock()

	client.closeSend()
	metrics.ConnectedClients.Set(float64(n))
	return channels
}

func (h *Hub) Subscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
	client.subscribe(channel)
}

func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeSubscriber(channel, client)
	client.unsubscribe(channel)
}

// Broadcast queues payload for every subscriber of channel. Slow clients drop
// messages rather than block the publisher.
func (h *Hub) Broadcast(channel string, payload []byte) {
	h.mu.RLock()
	for c := range h.channels[channel] {
		c.SendMessage(payload)
	}
	h.mu.RUnlock()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) removeSubscriber(channel string, client *Client) {
	if subscribers, ok := h.channels[channel]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.channels, channel)
		}
	}
}
