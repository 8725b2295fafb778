package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.klb.dev/cumulus/internal/accumulator"
	"go.klb.dev/cumulus/internal/clip"
	"go.klb.dev/cumulus/internal/control"
	"go.klb.dev/cumulus/internal/hub"
	"go.klb.dev/cumulus/internal/message"
	"go.klb.dev/cumulus/internal/schedule"
	"go.klb.dev/cumulus/internal/tlsconf"
)

// startTCP serves the control API on a loopback TLS listener and returns its
// address.
func startTCP(t *testing.T, token string) (string, *clip.Memory, *schedule.Manual) {
	t.Helper()
	mem := clip.NewMemory()
	clock := schedule.NewManual()
	h := hub.New()
	acc := accumulator.New(mem, clock, accumulator.Options{Enabled: true, InsertNewline: true, Notifier: h})
	t.Cleanup(acc.Close)

	raw, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := serveTCP(ctx, raw, control.New(acc, h, token, "test"), token)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)
	return raw.Addr().String(), mem, clock
}

func TestServeTCPGRPC(t *testing.T) {
	addr, mem, clock := startTCP(t, "s3cret")
	mem.Copy("A")
	clock.Advance(accumulator.DefaultPollInterval)

	cc, err := dialServer(addr, "s3cret", "test")
	require.NoError(t, err)
	defer cc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := control.NewClient(cc).Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", resp.State.Buffer)
}

func TestServeTCPWrongToken(t *testing.T) {
	addr, _, _ := startTCP(t, "s3cret")

	// A different token derives a different TLS key, so the handshake fails
	// before auth is even checked.
	cc, err := dialServer(addr, "wrong", "test")
	require.NoError(t, err)
	defer cc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = control.NewClient(cc).Status(ctx)
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestServeTCPHTTP(t *testing.T) {
	addr, mem, clock := startTCP(t, "s3cret")
	mem.Copy("A")
	clock.Advance(accumulator.DefaultPollInterval)

	tlsCfg, err := tlsconf.ClientConfig("s3cret")
	require.NoError(t, err)
	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{TLSClientConfig: tlsCfg},
	}

	req, err := http.NewRequest(http.MethodGet, "https://"+addr+"/v1/state", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer s3cret")
	res, err := client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 1, res.ProtoMajor)
	var resp message.StatusResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	assert.Equal(t, "A", resp.State.Buffer)

	res2, err := client.Get("https://" + addr + "/v1/state")
	require.NoError(t, err)
	res2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res2.StatusCode)
}
