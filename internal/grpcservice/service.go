// Package grpcservice implements the clipstash history service: the gRPC
// server and client, and the HTTP/JSON endpoint that shares its port.
//
// Messages are the JSON envelopes from package message, carried over gRPC
// with a registered "json" codec, so no generated code is involved.
package grpcservice

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/hub"
	"go.klb.dev/clipstash/internal/message"
)

const sourceHeader = "x-clipstash-source"

// Service implements HistoryServer over a history.Store and a hub.Hub.
type Service struct {
	store *history.Store
	h     *hub.Hub
	token string // empty = no auth
}

// New returns a Service. token may be empty to disable auth.
func New(store *history.Store, h *hub.Hub, token string) *Service {
	return &Service{store: store, h: h, token: token}
}

// Dispatch implements HistoryServer.Dispatch.
func (s *Service) Dispatch(ctx context.Context, req *message.Request) (*message.Response, error) {
	if err := s.authorize(bearerFromCtx(ctx)); err != nil {
		return nil, err
	}
	return s.handle(ctx, req, sourceFromCtx(ctx, ""))
}

// handle runs one request. Store failures never reach the caller: they are
// reported inside the store and the caller still gets {success: true}.
func (s *Service) handle(ctx context.Context, req *message.Request, source string) (*message.Response, error) {
	switch req.Action {
	case message.ActionGetItems:
		return &message.Response{ClipboardItems: s.store.Get(ctx)}, nil

	case message.ActionPopupOpened:
		s.store.SetPopupOpen(true)
		return message.Ack(), nil

	case message.ActionPopupClosed:
		s.store.SetPopupOpen(false)
		return message.Ack(), nil

	case message.ActionAddItem:
		if req.Item == nil {
			return nil, status.Error(codes.InvalidArgument, "addClipboardItem: missing item")
		}
		if !req.Item.Kind.Valid() {
			return nil, status.Errorf(codes.InvalidArgument, "addClipboardItem: unknown type %q", req.Item.Kind)
		}
		if out := s.store.Add(ctx, *req.Item); out.Changed {
			history.LogEntry("clipboard entry added", source, *req.Item)
		}
		return message.Ack(), nil

	case message.ActionDeleteItem:
		if out := s.store.Delete(ctx, req.Timestamp, req.Type, req.Content); out.Changed {
			slog.Info("clipboard entry deleted", "source", source, "type", string(req.Type), "timestamp", req.Timestamp)
		}
		return message.Ack(), nil

	case message.ActionReload:
		_ = s.store.Reload(ctx)
		return message.Ack(), nil

	case message.ActionStatus:
		return &message.Response{Status: &message.StatusInfo{
			PopupOpen: s.store.PopupOpen(),
			Items:     s.store.Len(),
			Capacity:  s.store.Capacity(),
			Peers:     s.h.Peers(),
		}}, nil
	}
	return nil, status.Errorf(codes.InvalidArgument, "unknown action %q", req.Action)
}

// Connect implements HistoryServer.Connect.
func (s *Service) Connect(req *message.Request, stream grpc.ServerStream) error {
	ctx := stream.Context()
	if err := s.authorize(bearerFromCtx(ctx)); err != nil {
		return err
	}

	name := req.Name
	if name == "" {
		name = message.PopupChannel
	}
	cp := &channelPeer{
		id:          name + "/" + uuid.New().String(),
		name:        name,
		source:      sourceFromCtx(ctx, ""),
		addr:        addrFromCtx(ctx),
		ch:          make(chan message.Change, 16),
		connectedAt: time.Now(),
	}

	s.h.Register(cp)
	defer s.h.Unregister(cp)

	// Headers go out immediately so the client knows the channel is live
	// before the first change arrives.
	if err := stream.SendHeader(metadata.Pairs("x-clipstash-channel", cp.id)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-cp.ch:
			if err := stream.SendMsg(&ev); err != nil {
				return err
			}
		}
	}
}

// authorize validates a bearer token. Skipped when s.token is empty.
func (s *Service) authorize(bearer string) error {
	if s.token == "" {
		return nil
	}
	if bearer == "" {
		return status.Error(codes.Unauthenticated, "missing authorization header")
	}
	tok := strings.TrimPrefix(bearer, "Bearer ")
	if subtle.ConstantTimeCompare([]byte(tok), []byte(s.token)) != 1 {
		return status.Error(codes.Unauthenticated, "invalid token")
	}
	return nil
}

func bearerFromCtx(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("authorization"); len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}

func sourceFromCtx(ctx context.Context, fallback string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(sourceHeader); len(vals) > 0 {
			return vals[0]
		}
	}
	if fallback != "" {
		return fallback
	}
	return addrFromCtx(ctx)
}

func addrFromCtx(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}

// ── channelPeer ────────────────────────────────────────────────────────────

// channelPeer is a transient hub.Peer backed by a Connect stream.
type channelPeer struct {
	id          string
	name        string
	source      string
	addr        string
	ch          chan message.Change
	connectedAt time.Time
	lastSent    atomic.Int64
}

func (p *channelPeer) ID() string { return p.id }

func (p *channelPeer) Info() message.PeerInfo {
	info := message.PeerInfo{
		ID:          p.id,
		Name:        p.name,
		Source:      p.source,
		Addr:        p.addr,
		ConnectedAt: p.connectedAt,
	}
	if ls := p.lastSent.Load(); ls > 0 {
		info.LastSent = time.Unix(0, ls)
	}
	return info
}

func (p *channelPeer) Send(ev message.Change) {
	p.lastSent.Store(time.Now().UnixNano())
	select {
	case p.ch <- ev:
	default:
		slog.Warn("channel buffer full, dropping change", "peer", p.id)
	}
}
