package control

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"

	"go.klb.dev/cumulus/internal/message"
)

// Client calls the control service over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// CallOptions returns the call options every control RPC needs. Pass them to
// grpc.WithDefaultCallOptions when dialing.
func CallOptions() []grpc.CallOption {
	return []grpc.CallOption{grpc.CallContentSubtype(codecName)}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, method, in, out, CallOptions()...)
}

// Status returns the daemon's current state.
func (c *Client) Status(ctx context.Context) (*message.StatusResponse, error) {
	out := new(message.StatusResponse)
	if err := c.invoke(ctx, methodStatus, &message.StatusRequest{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetOptions changes the toggles set in req.
func (c *Client) SetOptions(ctx context.Context, req *message.SetOptionsRequest) (*message.StatusResponse, error) {
	out := new(message.StatusResponse)
	if err := c.invoke(ctx, methodSetOptions, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Clear empties the buffer and the clipboard.
func (c *Client) Clear(ctx context.Context) (*message.StatusResponse, error) {
	out := new(message.StatusResponse)
	if err := c.invoke(ctx, methodClear, &message.ClearRequest{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// PasteSignal reports a paste detected by source.
func (c *Client) PasteSignal(ctx context.Context, source string) (*message.PasteSignalResponse, error) {
	out := new(message.PasteSignalResponse)
	if err := c.invoke(ctx, methodPasteSignal, &message.PasteSignalRequest{Source: source}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch calls fn with every state the daemon publishes until ctx is done,
// the stream ends, or fn returns an error. A clean end of stream returns nil.
func (c *Client) Watch(ctx context.Context, fn func(message.State) error) error {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], methodWatch, CallOptions()...)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&message.WatchRequest{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		var st message.State
		if err := stream.RecvMsg(&st); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
	}
}
