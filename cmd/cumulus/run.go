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
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/soheilhy/cmux"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"go.klb.dev/cumulus/internal/accumulator"
	"go.klb.dev/cumulus/internal/clip"
	"go.klb.dev/cumulus/internal/control"
	"go.klb.dev/cumulus/internal/hub"
	"go.klb.dev/cumulus/internal/ipc"
	"go.klb.dev/cumulus/internal/schedule"
	"go.klb.dev/cumulus/internal/tlsconf"
)

func newRunCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the accumulator daemon",
		Long: `Starts the clipboard accumulator. While enabled, every new clipboard copy is
appended to the buffer and the merged buffer is written back to the clipboard.

The daemon serves the control API on the local IPC socket (no auth). With
--listen it also serves gRPC and HTTP/JSON on one TLS port; HTTP clients must
use HTTP/1.1 (curl --http1.1 -k). --token, when set, is required as a bearer
token there and seeds the TLS key.

Config file search order:
  /etc/cumulus/cumulus.toml
  $HOME/.config/cumulus/cumulus.toml
  path supplied via --config

A config file in use is watched; changes to enabled, clear-on-paste and
newline apply without a restart.

Precedence (lowest → highest): defaults → config file → CUMULUS_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runDaemon(cmd.Context(), v) },
	}

	f := cmd.Flags()
	f.Bool("enabled", true, "accumulate clipboard copies")
	f.Bool("clear-on-paste", false, "clear the buffer after each paste signal")
	f.Bool("newline", true, "separate accumulated copies with a newline")
	f.Duration("poll-interval", accumulator.DefaultPollInterval, "clipboard poll interval")
	f.Duration("paste-delay", accumulator.DefaultPasteDelay, "delay between a paste signal and the clear")
	f.String("backend", string(clip.KindAuto), "clipboard backend: auto|system|memory")
	f.String("listen", "", "TCP address for the TLS control listener (empty = IPC only)")
	f.String("token", "", "shared secret for --listen (bearer token and TLS passphrase)")
	f.Bool("no-ipc", false, "do not serve the local IPC socket")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runDaemon(ctx context.Context, v *viper.Viper) error {
	setupLogging(v)

	kind, err := clip.ParseKind(v.GetString("backend"))
	if err != nil {
		return err
	}
	backend, err := clip.New(kind)
	if err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	defer backend.Close()

	h := hub.New()
	acc := accumulator.New(backend, schedule.Real{}, accumulator.Options{
		Enabled:       v.GetBool("enabled"),
		ClearOnPaste:  v.GetBool("clear-on-paste"),
		InsertNewline: v.GetBool("newline"),
		PollInterval:  v.GetDuration("poll-interval"),
		PasteDelay:    v.GetDuration("paste-delay"),
		Notifier:      h,
	})
	defer acc.Close()

	slog.Info("cumulus starting",
		"version", Version,
		"backend", backend.Name(),
		"enabled", v.GetBool("enabled"),
		"clear_on_paste", v.GetBool("clear-on-paste"),
		"newline", v.GetBool("newline"),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var servers []*grpc.Server
	defer func() {
		for _, srv := range servers {
			srv.Stop()
		}
	}()

	if !v.GetBool("no-ipc") {
		ln, err := ipc.Listen()
		if err != nil {
			return fmt.Errorf("ipc: %w", err)
		}
		srv := grpc.NewServer()
		control.Register(srv, control.New(acc, h, "", Version))
		servers = append(servers, srv)
		slog.Info("IPC socket listening", "path", ipc.SocketPath())
		go func() {
			if err := srv.Serve(ln); err != nil {
				slog.Error("ipc server stopped", "err", err)
			}
		}()
	}

	if addr := v.GetString("listen"); addr != "" {
		raw, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		srv, err := serveTCP(ctx, raw, control.New(acc, h, v.GetString("token"), Version), v.GetString("token"))
		if err != nil {
			_ = raw.Close()
			return err
		}
		servers = append(servers, srv)
	}

	if file := v.ConfigFileUsed(); file != "" {
		var mu sync.Mutex
		loaded := readToggles(v)
		v.OnConfigChange(func(e fsnotify.Event) {
			mu.Lock()
			defer mu.Unlock()
			next := readToggles(v)
			changed := applyToggles(acc, loaded, next)
			loaded = next
			slog.Info("config reloaded", "file", e.Name, "op", e.Op.String(), "changed", changed)
		})
		v.WatchConfig()
		slog.Debug("watching config", "file", file)
	}

	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

// serveTCP serves the control API over TLS on raw, splitting gRPC and
// HTTP/1.1 with cmux. raw is closed when ctx is done.
func serveTCP(ctx context.Context, raw net.Listener, svc *control.Service, token string) (*grpc.Server, error) {
	passphrase := token
	if passphrase == "" {
		passphrase = tlsconf.DefaultPassphrase
		slog.Warn("no --token set: TCP listener is unauthenticated and its TLS key is public")
	}
	tlsCfg, err := tlsconf.ServerConfig(passphrase)
	if err != nil {
		return nil, fmt.Errorf("tls: %w", err)
	}

	m := cmux.New(tls.NewListener(raw, tlsCfg))
	grpcLn := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))
	httpLn := m.Match(cmux.HTTP1Fast())

	srv := grpc.NewServer()
	control.Register(srv, svc)
	httpSrv := &http.Server{
		Handler:           svc.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.Serve(grpcLn); err != nil && !errors.Is(err, cmux.ErrListenerClosed) {
			slog.Error("grpc server stopped", "err", err)
		}
	}()
	go func() {
		if err := httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, cmux.ErrListenerClosed) {
			slog.Error("http server stopped", "err", err)
		}
	}()
	go func() {
		if err := m.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Error("listener stopped", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		_ = raw.Close()
	}()

	slog.Info("TCP control listening", "addr", raw.Addr(), "auth", token != "")
	return srv, nil
}

// toggler is the part of the accumulator a config reload drives.
type toggler interface {
	SetEnabled(bool)
	SetClearOnPaste(bool)
	SetInsertNewline(bool)
}

// toggles are the runtime switches a config reload may change.
type toggles struct {
	Enabled      bool
	ClearOnPaste bool
	Newline      bool
}

func readToggles(v *viper.Viper) toggles {
	return toggles{
		Enabled:      v.GetBool("enabled"),
		ClearOnPaste: v.GetBool("clear-on-paste"),
		Newline:      v.GetBool("newline"),
	}
}

// applyToggles pushes the toggles that changed between two loads of the
// config into t and returns the names of the keys it changed. Comparing
// against the previous load rather than the live state keeps changes made
// through "cumulus set" until the file itself changes that key.
func applyToggles(t toggler, prev, next toggles) []string {
	var changed []string
	if next.Enabled != prev.Enabled {
		t.SetEnabled(next.Enabled)
		changed = append(changed, "enabled")
	}
	if next.ClearOnPaste != prev.ClearOnPaste {
		t.SetClearOnPaste(next.ClearOnPaste)
		changed = append(changed, "clear-on-paste")
	}
	if next.Newline != prev.Newline {
		t.SetInsertNewline(next.Newline)
		changed = append(changed, "newline")
	}
	return changed
}
