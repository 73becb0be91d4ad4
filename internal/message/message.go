// Package message defines the clipstash request/response protocol.
//
// Every request is a single envelope naming an action; every response is a
// single envelope whose populated fields depend on that action:
//
//	getClipboardItems   {}                           → {clipboardItems: [...]}
//	popupOpened         {}                           → {success: true}
//	popupClosed         {}                           → {success: true}
//	addClipboardItem    {item}                       → {success: true}
//	deleteClipboardItem {timestamp, type, content}   → {success: true}
//	reload              {}                           → {success: true}
//	status              {}                           → {status: {...}}
//
// The same JSON is carried by the gRPC service and the HTTP endpoint.
package message

import (
	"time"

	"go.klb.dev/clipstash/internal/history"
)

// Action names a request.
type Action string

const (
	ActionGetItems    Action = "getClipboardItems"
	ActionPopupOpened Action = "popupOpened"
	ActionPopupClosed Action = "popupClosed"
	ActionAddItem     Action = "addClipboardItem"
	ActionDeleteItem  Action = "deleteClipboardItem"
	ActionReload      Action = "reload"
	ActionStatus      Action = "status"
)

// PopupChannel is the name of the liveness channel a popup holds open.
const PopupChannel = "popup"

// Request is the envelope for every call.
type Request struct {
	Action Action `json:"action"`

	// addClipboardItem
	Item *history.Entry `json:"item,omitempty"`

	// deleteClipboardItem
	Timestamp int64        `json:"timestamp,omitempty"`
	Type      history.Kind `json:"type,omitempty"`
	Content   string       `json:"content,omitempty"`

	// Connect: the channel name (defaults to PopupChannel).
	Name string `json:"name,omitempty"`
}

// Response is the envelope for every reply.
type Response struct {
	Success        bool            `json:"success,omitempty"`
	ClipboardItems []history.Entry `json:"clipboardItems,omitzero"`
	Status         *StatusInfo     `json:"status,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// Ack is the plain {success: true} reply.
func Ack() *Response { return &Response{Success: true} }

// Change is pushed down every open channel after the persisted history
// changes. Key is always the storage key that changed.
type Change struct {
	Key   string    `json:"key"`
	Count int       `json:"count"`
	At    time.Time `json:"at"`
}

// PeerInfo describes one open channel.
type PeerInfo struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Source      string    `json:"source" yaml:"source"`
	Addr        string    `json:"addr" yaml:"addr"`
	ConnectedAt time.Time `json:"connected_at" yaml:"connected_at"`
	LastSent    time.Time `json:"last_sent,omitzero" yaml:"last_sent,omitempty"`
}

// StatusInfo is the payload of a status reply.
type StatusInfo struct {
	PopupOpen bool       `json:"popup_open" yaml:"popup_open"`
	Items     int        `json:"items" yaml:"items"`
	Capacity  int        `json:"capacity" yaml:"capacity"`
	Peers     []PeerInfo `json:"peers,omitempty" yaml:"peers,omitempty"`
}

// DeleteRequest builds the deleteClipboardItem envelope for e.
func DeleteRequest(e history.Entry) *Request {
	return &Request{
		Action:    ActionDeleteItem,
		Timestamp: e.Timestamp,
		Type:      e.Kind,
		Content:   e.Content,
	}
}

// AddRequest builds the addClipboardItem envelope for e.
func AddRequest(e history.Entry) *Request {
	return &Request{Action: ActionAddItem, Item: &e}
}
