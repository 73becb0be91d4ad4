package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/grpcservice"
	"go.klb.dev/clipstash/internal/logging"
)

const defaultAddr = "127.0.0.1:8752"

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and CLIPSTASH_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → CLIPSTASH_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("clipstash")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/clipstash/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "clipstash"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("CLIPSTASH")
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info, debug on a terminal)")
	cmd.Flags().String("log-file", "", "append logs to this file instead of stderr")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// addClientFlags adds the flags every command talking to the daemon needs.
func addClientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("addr", defaultAddr, "daemon TCP address, used when no local socket is found or when set explicitly")
	f.String("token", "", "shared secret for the TCP listener")
	f.Bool("tls", false, "use passphrase-derived TLS on TCP (passphrase is --token)")
	f.Bool("no-tcp", false, "only use the local Unix socket")
	f.String("source", defaultSource(), "name for this client in daemon logs and status")
	f.Duration("timeout", grpcservice.DefaultTimeout, "per-request timeout")
	addConfigFlag(cmd)
}

// setupLogging reads logging flags from viper and configures slog. Output
// goes to --log-file when set, otherwise stderr, or (for the TUI) the
// fallback file.
func setupLogging(v *viper.Viper, fallbackFile string) (io.Closer, error) {
	file := v.GetString("log-file")
	if file == "" {
		file = fallbackFile
	}
	return logging.Setup(logging.Options{
		Format:      logging.ParseFormat(v.GetString("log-format")),
		Level:       v.GetString("log-level"),
		Interactive: file == "" && logging.IsTTY(os.Stderr),
		File:        file,
	})
}
