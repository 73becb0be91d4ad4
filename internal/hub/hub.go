// Package hub tracks the open notification channels and fans storage-change
// events out to them. It is transport-agnostic: the gRPC Connect handler
// registers one Peer per stream.
//
// Channels named message.PopupChannel double as the popup liveness signal:
// the hub reports "open" while at least one of them is registered.
package hub

import (
	"log/slog"
	"sync"
	"time"

	"go.klb.dev/clipstash/internal/message"
)

// Peer is anything that can receive change events from the hub.
type Peer interface {
	ID() string
	Info() message.PeerInfo
	// Send delivers an event to the peer. Must be non-blocking.
	Send(message.Change)
}

// PresenceListener is told when popup presence flips.
type PresenceListener interface {
	SetPopupOpen(open bool)
}

// Hub routes change events to every registered peer.
type Hub struct {
	mu     sync.RWMutex
	peers  map[string]Peer
	popups int
	key    string

	listenerMu sync.RWMutex
	listener   PresenceListener
}

// New returns an empty Hub whose events name key as the changed storage key.
func New(key string) *Hub {
	return &Hub{
		peers: make(map[string]Peer),
		key:   key,
	}
}

// SetPresenceListener registers the listener for popup presence. Only one
// listener is supported; calling again replaces it.
func (h *Hub) SetPresenceListener(l PresenceListener) {
	h.listenerMu.Lock()
	h.listener = l
	h.listenerMu.Unlock()
}

// Register adds a peer.
func (h *Hub) Register(p Peer) {
	info := p.Info()

	h.mu.Lock()
	h.peers[p.ID()] = p
	if info.Name == message.PopupChannel {
		h.popups++
	}
	total, popups := len(h.peers), h.popups
	h.mu.Unlock()

	slog.Info("channel connected",
		"peer", p.ID(),
		"name", info.Name,
		"source", info.Source,
		"total", total,
	)
	if info.Name == message.PopupChannel {
		h.notifyPresence(popups > 0)
	}
}

// Unregister removes a peer. Unknown peers are ignored.
func (h *Hub) Unregister(p Peer) {
	info := p.Info()

	h.mu.Lock()
	_, ok := h.peers[p.ID()]
	if ok {
		delete(h.peers, p.ID())
		if info.Name == message.PopupChannel {
			h.popups--
		}
	}
	total, popups := len(h.peers), h.popups
	h.mu.Unlock()

	if !ok {
		return
	}
	slog.Info("channel disconnected",
		"peer", p.ID(),
		"name", info.Name,
		"total", total,
	)
	if info.Name == message.PopupChannel {
		h.notifyPresence(popups > 0)
	}
}

// Changed implements history.Notifier by publishing a change event.
func (h *Hub) Changed(count int) {
	h.Publish(message.Change{Key: h.key, Count: count, At: time.Now()})
}

// Publish fans ev out to every registered peer.
func (h *Hub) Publish(ev message.Change) {
	h.mu.RLock()
	targets := make([]Peer, 0, len(h.peers))
	for _, p := range h.peers {
		targets = append(targets, p)
	}
	h.mu.RUnlock()

	for _, p := range targets {
		p.Send(ev)
	}
	slog.Debug("change published", "key", ev.Key, "count", ev.Count, "peers", len(targets))
}

// Peers returns a snapshot of all current peer metadata.
func (h *Hub) Peers() []message.PeerInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]message.PeerInfo, 0, len(h.peers))
	for _, p := range h.peers {
		out = append(out, p.Info())
	}
	return out
}

// PopupConnected reports whether any popup channel is registered.
func (h *Hub) PopupConnected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.popups > 0
}

func (h *Hub) notifyPresence(open bool) {
	h.listenerMu.RLock()
	l := h.listener
	h.listenerMu.RUnlock()
	if l != nil {
		l.SetPopupOpen(open)
	}
}
