package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soheilhy/cmux"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/grpc"

	"go.klb.dev/clipstash/internal/grpcservice"
	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/hub"
	"go.klb.dev/clipstash/internal/ipc"
	"go.klb.dev/clipstash/internal/storage"
	"go.klb.dev/clipstash/internal/tlsconf"
)

func newServeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the history daemon",
		Long: `Starts the clipstash daemon. It loads the persisted history, serves it on the
local Unix socket and, unless --no-tcp is set, on a TCP port shared by gRPC and
an HTTP/JSON endpoint (POST /v1/messages, GET /healthz).

SIGHUP re-reads the persisted history. SIGINT/SIGTERM shut down cleanly.

Precedence (lowest → highest): defaults → config file → CLIPSTASH_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runServe(cmd.Context(), v) },
	}

	f := cmd.Flags()
	f.String("addr", defaultAddr, "TCP listen address")
	f.String("token", "", "shared secret for TCP clients (empty = no auth)")
	f.Bool("tls", false, "wrap the TCP listener in TLS derived from --token")
	f.Bool("no-tcp", false, "serve only the local Unix socket")
	f.String("storage", "sqlite", "storage backend: sqlite|memory")
	f.String("db", storage.DefaultPath(), "SQLite database path")
	f.String("storage-secret", "", "encrypt the persisted history with this secret")
	f.Int("quota-bytes", storage.DefaultQuotaBytes, "byte quota for the persisted history (0 = unlimited)")
	f.Int("quota-bytes-per-item", storage.DefaultQuotaBytesPerItem, "byte quota for a single stored value (0 = unlimited)")
	f.Int("capacity", history.DefaultCapacity, "maximum number of entries kept")
	f.Int("fallback-capacity", history.DefaultFallbackCapacity, "entries kept when the quota is exceeded")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	logs, err := setupLogging(v, "")
	if err != nil {
		return err
	}
	defer logs.Close()
	if ctx == nil {
		ctx = context.Background()
	}

	addr := v.GetString("addr")
	token := v.GetString("token")
	useTLS := v.GetBool("tls")
	noTCP := v.GetBool("no-tcp")

	backend, err := storage.Open(storage.Config{
		Kind:              v.GetString("storage"),
		Path:              v.GetString("db"),
		Secret:            v.GetString("storage-secret"),
		QuotaBytes:        v.GetInt("quota-bytes"),
		QuotaBytesPerItem: v.GetInt("quota-bytes-per-item"),
	})
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	h := hub.New(history.StorageKey)
	store, err := history.Open(ctx, backend, history.Options{
		Capacity:         v.GetInt("capacity"),
		FallbackCapacity: v.GetInt("fallback-capacity"),
		Notifier:         h,
	})
	if err != nil {
		_ = backend.Close()
		return err
	}
	defer store.Close()
	h.SetPresenceListener(store)

	slog.Info("clipstash daemon starting",
		"version", Version,
		"storage", v.GetString("storage"),
		"items", store.Len(),
		"capacity", store.Capacity(),
		"tcp", !noTCP,
		"tls", useTLS,
		"sealed", v.GetString("storage-secret") != "",
	)

	// The socket is owner-only, so it never asks for the token.
	local := grpc.NewServer()
	grpcservice.RegisterHistoryServer(local, grpcservice.New(store, h, ""))

	sock := ipc.SocketPath()
	ipcLn, err := ipc.Listen(sock)
	if err != nil {
		if noTCP {
			return err
		}
		slog.Warn("IPC socket unavailable", "err", err)
	} else {
		slog.Info("IPC socket listening", "path", sock)
		go func() {
			if err := local.Serve(ipcLn); err != nil {
				slog.Error("ipc server stopped", "err", err)
			}
		}()
		defer os.Remove(sock)
	}

	var tcp *tcpServer
	if !noTCP {
		tcp, err = startTCP(addr, token, useTLS, grpcservice.New(store, h, token))
		if err != nil {
			local.Stop()
			return err
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sig)

	for s := range sig {
		if s == syscall.SIGHUP {
			slog.Info("reloading history")
			_ = store.Reload(ctx)
			continue
		}
		slog.Info("shutting down", "signal", s.String())
		break
	}

	if tcp != nil {
		tcp.stop()
	}
	stopGRPC(local)
	return nil
}

// stopGRPC drains unary calls but does not wait forever on open popup
// channels, which only end when their client goes away.
func stopGRPC(s *grpc.Server) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		s.Stop()
	}
}

// tcpServer multiplexes gRPC and HTTP/JSON on one TCP port.
type tcpServer struct {
	ln   net.Listener
	grpc *grpc.Server
	http *http.Server
}

func startTCP(addr, token string, useTLS bool, svc *grpcservice.Service) (*tcpServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if useTLS {
		creds, err := tlsconf.New(token)
		if err != nil {
			ln.Close()
			return nil, err
		}
		ln = tls.NewListener(ln, creds.Server())
	}
	slog.Info("listening", "addr", ln.Addr(), "tls", useTLS, "auth", token != "")

	s := &tcpServer{
		ln:   ln,
		grpc: grpc.NewServer(),
		http: &http.Server{
			// h2c lets HTTP/2 JSON clients through; gRPC is split off before this.
			Handler:           h2c.NewHandler(svc.HTTPHandler(), &http2.Server{}),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	grpcservice.RegisterHistoryServer(s.grpc, svc)

	m := cmux.New(ln)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	go func() {
		if err := s.grpc.Serve(grpcL); err != nil && !errors.Is(err, cmux.ErrListenerClosed) {
			slog.Debug("grpc server stopped", "err", err)
		}
	}()
	go func() {
		if err := s.http.Serve(httpL); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, cmux.ErrListenerClosed) {
			slog.Debug("http server stopped", "err", err)
		}
	}()
	go func() {
		if err := m.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Debug("tcp mux stopped", "err", err)
		}
	}()
	return s, nil
}

func (s *tcpServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.http.Shutdown(ctx)
	stopGRPC(s.grpc)
	_ = s.ln.Close()
}
