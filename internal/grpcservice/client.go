package grpcservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/message"
)

// DefaultTimeout bounds every unary call unless ClientOptions says otherwise.
const DefaultTimeout = 5 * time.Second

// ClientOptions configures a Client.
type ClientOptions struct {
	// Token is sent as a bearer token when non-empty.
	Token string
	// Source identifies this client in server logs and status output.
	Source string
	// Timeout bounds each unary call. Zero selects DefaultTimeout.
	Timeout time.Duration
	// Creds secures the transport. Nil means plaintext.
	Creds credentials.TransportCredentials
	// DialOptions are appended after the defaults; tests use it for bufconn.
	DialOptions []grpc.DialOption
}

// Client is the popup/CLI side of the history service.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// Dial creates a Client for target (host:port, or unix:///path for IPC).
// Like grpc.NewClient it does not connect until the first call.
func Dial(target string, opts ClientOptions) (*Client, error) {
	creds := opts.Creds
	if creds == nil {
		creds = insecure.NewCredentials()
	}
	dopts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}
	if opts.Token != "" || opts.Source != "" {
		dopts = append(dopts, grpc.WithPerRPCCredentials(&clientCreds{token: opts.Token, source: opts.Source}))
	}
	dopts = append(dopts, opts.DialOptions...)

	conn, err := grpc.NewClient(target, dopts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// Close tears down the connection and every channel opened through it.
func (c *Client) Close() error { return c.conn.Close() }

// Call sends one raw request envelope. Transport failures come back as a
// *history.Error of kind KindTransport.
func (c *Client) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp := new(message.Response)
	if err := c.conn.Invoke(ctx, dispatchMethod, req, resp); err != nil {
		return nil, history.Fail(history.KindTransport, string(req.Action), err)
	}
	return resp, nil
}

// Items fetches the full history.
func (c *Client) Items(ctx context.Context) ([]history.Entry, error) {
	resp, err := c.Call(ctx, &message.Request{Action: message.ActionGetItems})
	if err != nil {
		return nil, err
	}
	if resp.ClipboardItems == nil {
		return []history.Entry{}, nil
	}
	return resp.ClipboardItems, nil
}

// Add submits a new entry.
func (c *Client) Add(ctx context.Context, e history.Entry) error {
	_, err := c.Call(ctx, message.AddRequest(e))
	return err
}

// Delete asks the store to drop e.
func (c *Client) Delete(ctx context.Context, e history.Entry) error {
	_, err := c.Call(ctx, message.DeleteRequest(e))
	return err
}

// Opened reports that a popup is now showing.
func (c *Client) Opened(ctx context.Context) error {
	_, err := c.Call(ctx, &message.Request{Action: message.ActionPopupOpened})
	return err
}

// Closed reports that the popup went away.
func (c *Client) Closed(ctx context.Context) error {
	_, err := c.Call(ctx, &message.Request{Action: message.ActionPopupClosed})
	return err
}

// Reload asks the daemon to re-read its persisted history.
func (c *Client) Reload(ctx context.Context) error {
	_, err := c.Call(ctx, &message.Request{Action: message.ActionReload})
	return err
}

// Status returns the daemon's status.
func (c *Client) Status(ctx context.Context) (*message.StatusInfo, error) {
	resp, err := c.Call(ctx, &message.Request{Action: message.ActionStatus})
	if err != nil {
		return nil, err
	}
	if resp.Status == nil {
		return nil, history.Fail(history.KindTransport, "status", errors.New("empty status reply"))
	}
	return resp.Status, nil
}

// Connect opens the named channel. It returns once the server has registered
// the channel; change events arrive on the returned channel, which is closed
// when ctx is cancelled or the stream fails. Cancelling ctx is how the
// channel is torn down.
func (c *Client) Connect(ctx context.Context, name string) (<-chan message.Change, error) {
	stream, err := c.conn.NewStream(ctx, &historyServiceDesc.Streams[connectStreamIdx], connectMethod)
	if err != nil {
		return nil, history.Fail(history.KindTransport, "connect", err)
	}
	if err := stream.SendMsg(&message.Request{Name: name}); err != nil {
		return nil, history.Fail(history.KindTransport, "connect", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, history.Fail(history.KindTransport, "connect", err)
	}
	if _, err := stream.Header(); err != nil {
		return nil, history.Fail(history.KindTransport, "connect", err)
	}

	out := make(chan message.Change, 16)
	go func() {
		defer close(out)
		for {
			var ev message.Change
			if err := stream.RecvMsg(&ev); err != nil {
				if !errors.Is(err, io.EOF) && status.Code(err) != codes.Canceled {
					slog.Debug("channel closed", "name", name, "err", err)
				}
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

type clientCreds struct {
	token  string
	source string
}

func (c *clientCreds) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	md := make(map[string]string, 2)
	if c.token != "" {
		md["authorization"] = "Bearer " + c.token
	}
	if c.source != "" {
		md[sourceHeader] = c.source
	}
	return md, nil
}

func (c *clientCreds) RequireTransportSecurity() bool { return false }
