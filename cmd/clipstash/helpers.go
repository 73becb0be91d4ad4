package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/grpcservice"
	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/ipc"
	"go.klb.dev/clipstash/internal/message"
	"go.klb.dev/clipstash/internal/tlsconf"
)

func isContainerID(s string) bool {
	if len(s) < 12 || len(s) > 64 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// defaultSource returns a human-readable identifier for this host.
func defaultSource() string {
	for _, env := range []string{
		"CLIPSTASH_SOURCE",
		"CONTAINER_NAME",
		"COMPOSE_SERVICE",
		"HOSTNAME_FRIENDLY",
	} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	if isContainerID(h) {
		return "container-" + h[:8]
	}
	return h
}

// clientTarget turns a listen address into something dialable: a wildcard
// host means the local machine.
func clientTarget(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}

// dialService connects to the daemon. The local socket is tried first unless
// --addr was given explicitly; TCP is the fallback unless --no-tcp is set.
// The returned string describes the transport for status output.
func dialService(cmd *cobra.Command, v *viper.Viper) (*grpcservice.Client, string, error) {
	opts := grpcservice.ClientOptions{
		Source:  v.GetString("source"),
		Timeout: v.GetDuration("timeout"),
	}

	if !cmd.Flags().Changed("addr") {
		path := ipc.SocketPath()
		if ipc.IsRunning(path) {
			c, err := grpcservice.Dial(ipc.Target(path), opts)
			if err == nil {
				return c, fmt.Sprintf("ipc (%s)", path), nil
			}
		}
		if v.GetBool("no-tcp") {
			return nil, "", fmt.Errorf("no clipstash daemon on %s", path)
		}
	}
	if v.GetBool("no-tcp") {
		return nil, "", errors.New("--addr conflicts with --no-tcp")
	}

	token := v.GetString("token")
	opts.Token = token
	if v.GetBool("tls") {
		creds, err := tlsconf.ClientCredentials(token)
		if err != nil {
			return nil, "", fmt.Errorf("tls credentials: %w", err)
		}
		opts.Creds = creds
	}
	target := clientTarget(v.GetString("addr"))
	c, err := grpcservice.Dial(target, opts)
	if err != nil {
		return nil, "", err
	}
	return c, fmt.Sprintf("tcp (%s)", target), nil
}

type statusGetter interface {
	Status(ctx context.Context) (*message.StatusInfo, error)
}

// daemonCapacity asks the daemon for its list bound, falling back to the
// default when it cannot say.
func daemonCapacity(ctx context.Context, s statusGetter) int {
	st, err := s.Status(ctx)
	if err != nil || st.Capacity <= 0 {
		if err != nil {
			slog.Debug("status unavailable, using default capacity", "err", err)
		}
		return history.DefaultCapacity
	}
	return st.Capacity
}

func fmtAge(t time.Time) string {
	age := time.Since(t).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
	return t.Format("15:04:05")
}
