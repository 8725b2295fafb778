package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.klb.dev/cumulus/internal/control"
	"go.klb.dev/cumulus/internal/ipc"
	"go.klb.dev/cumulus/internal/tlsconf"
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

// defaultSource returns a human-readable identifier for this host, reported
// to the daemon with every request.
func defaultSource() string {
	for _, env := range []string{
		"CUMULUS_SOURCE",
		"CONTAINER_NAME",
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

// addClientFlags adds the flags shared by every command that talks to a
// running daemon.
func addClientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("server", "", "daemon TCP address host:port (default: local IPC socket)")
	f.String("token", "", "shared secret of a --listen daemon (bearer token and TLS passphrase)")
	f.String("source", defaultSource(), "name reported to the daemon")
	f.Duration("timeout", 5*time.Second, "request timeout")
	addConfigFlag(cmd)
}

// conn is an open control connection.
type conn struct {
	*control.Client
	cc        *grpc.ClientConn
	transport string
}

func (c *conn) Close() error { return c.cc.Close() }

// connect dials the daemon: the IPC socket unless --server is set.
func connect(v *viper.Viper) (*conn, error) {
	source := v.GetString("source")

	if server := v.GetString("server"); server != "" {
		cc, err := dialServer(server, v.GetString("token"), source)
		if err != nil {
			return nil, err
		}
		return &conn{Client: control.NewClient(cc), cc: cc, transport: fmt.Sprintf("tcp+tls (%s)", server)}, nil
	}

	if !ipc.IsRunning() {
		return nil, fmt.Errorf("no cumulus daemon on %s (start one with \"cumulus run\", or pass --server)", ipc.SocketPath())
	}
	cc, err := dialIPC(source)
	if err != nil {
		return nil, err
	}
	return &conn{Client: control.NewClient(cc), cc: cc, transport: fmt.Sprintf("ipc (%s)", ipc.SocketPath())}, nil
}

// dialIPC returns a *grpc.ClientConn on the local IPC socket.
// No auth needed: the socket is local and owner-restricted by the OS.
func dialIPC(source string) (*grpc.ClientConn, error) {
	opts := []grpc.DialOption{
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return ipc.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(control.CallOptions()...),
	}
	if source != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(&clientCreds{source: source}))
	}
	cc, err := grpc.NewClient("passthrough:///cumulus", opts...)
	if err != nil {
		return nil, fmt.Errorf("dial ipc: %w", err)
	}
	return cc, nil
}

// dialServer returns a TLS *grpc.ClientConn to a daemon started with --listen.
// token is used for both TLS key derivation and per-RPC auth.
func dialServer(addr, token, source string) (*grpc.ClientConn, error) {
	passphrase := token
	if passphrase == "" {
		passphrase = tlsconf.DefaultPassphrase
	}
	creds, err := tlsconf.ClientCredentials(passphrase)
	if err != nil {
		return nil, fmt.Errorf("tls credentials: %w", err)
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(control.CallOptions()...),
	}
	if token != "" || source != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(&clientCreds{token: token, source: source}))
	}
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return cc, nil
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
		md["x-cumulus-source"] = c.source
	}
	return md, nil
}

func (c *clientCreds) RequireTransportSecurity() bool { return false }

// requestContext bounds a single RPC by --timeout.
func requestContext(cmd *cobra.Command, v *viper.Viper) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
}

// clientCommand builds a daemon client command whose RunE receives an open
// connection and the command's viper.
func clientCommand(use, short, long string, run func(*cobra.Command, *viper.Viper, *conn) error) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Long:    long,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect(v)
			if err != nil {
				return err
			}
			defer c.Close()
			return run(cmd, v, c)
		},
	}
	addClientFlags(cmd)
	return cmd
}
