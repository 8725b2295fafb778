// Package control implements the cumulus control surface: a gRPC service
// (JSON codec, descriptor in desc.go) served on the IPC socket and the
// optional TCP listener, a matching client, and an HTTP/JSON handler.
package control

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"go.klb.dev/cumulus/internal/hub"
	"go.klb.dev/cumulus/internal/message"
)

// Controller is the part of the accumulator the control surface drives.
type Controller interface {
	Snapshot() message.State
	SetEnabled(bool)
	SetClearOnPaste(bool)
	SetInsertNewline(bool)
	Clear()
	HandlePasteSignal() bool
	PasteDelay() time.Duration
}

// Service implements ControlServer.
type Service struct {
	ctl     Controller
	h       *hub.Hub
	token   string // empty = no auth
	version string
}

// watchSeq numbers watch streams across every Service sharing a hub.
var watchSeq atomic.Uint64

// New returns a Service driving ctl, streaming watch updates from h.
// token may be empty to disable auth.
func New(ctl Controller, h *hub.Hub, token, version string) *Service {
	return &Service{ctl: ctl, h: h, token: token, version: version}
}

// Status implements ControlServer.Status.
func (s *Service) Status(ctx context.Context, _ *message.StatusRequest) (*message.StatusResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	return s.status(), nil
}

// SetOptions implements ControlServer.SetOptions. Fields are applied in the
// order enabled, clear_on_paste, insert_newline.
func (s *Service) SetOptions(ctx context.Context, req *message.SetOptionsRequest) (*message.StatusResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	if req.Empty() {
		return nil, status.Error(codes.InvalidArgument, "no options given")
	}
	s.applyOptions(req)
	slog.Info("options changed", "by", sourceFromCtx(ctx))
	return s.status(), nil
}

// Clear implements ControlServer.Clear.
func (s *Service) Clear(ctx context.Context, _ *message.ClearRequest) (*message.StatusResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	slog.Info("clear requested", "by", sourceFromCtx(ctx))
	s.ctl.Clear()
	return s.status(), nil
}

// PasteSignal implements ControlServer.PasteSignal.
func (s *Service) PasteSignal(ctx context.Context, req *message.PasteSignalRequest) (*message.PasteSignalResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	src := req.Source
	if src == "" {
		src = sourceFromCtx(ctx)
	}
	return s.pasteSignal(src), nil
}

// Watch implements ControlServer.Watch. The current state is sent first,
// then every change until the client goes away.
func (s *Service) Watch(_ *message.WatchRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()
	if err := s.auth(ctx); err != nil {
		return err
	}

	w := &watchPeer{
		id: fmt.Sprintf("%s/watch/%d", sourceFromCtx(ctx), watchSeq.Add(1)),
		ch: make(chan message.State, 16),
	}
	// Register delivers the latest published state; seed a snapshot only
	// when there is none.
	if _, have := s.h.Latest(); !have {
		w.Send(s.ctl.Snapshot())
	}
	s.h.Register(w)
	defer s.h.Unregister(w)

	for {
		select {
		case <-ctx.Done():
			return nil
		case st := <-w.ch:
			if err := stream.SendMsg(&st); err != nil {
				return err
			}
		}
	}
}

func (s *Service) status() *message.StatusResponse {
	return &message.StatusResponse{
		State:    s.ctl.Snapshot(),
		Version:  s.version,
		Watchers: s.h.Count(),
	}
}

func (s *Service) applyOptions(req *message.SetOptionsRequest) {
	if req.Enabled != nil {
		s.ctl.SetEnabled(*req.Enabled)
	}
	if req.ClearOnPaste != nil {
		s.ctl.SetClearOnPaste(*req.ClearOnPaste)
	}
	if req.InsertNewline != nil {
		s.ctl.SetInsertNewline(*req.InsertNewline)
	}
}

func (s *Service) pasteSignal(source string) *message.PasteSignalResponse {
	scheduled := s.ctl.HandlePasteSignal()
	slog.Debug("paste signal", "source", source, "scheduled", scheduled)
	resp := &message.PasteSignalResponse{Scheduled: scheduled}
	if scheduled {
		resp.DelayMS = s.ctl.PasteDelay().Milliseconds()
	}
	return resp
}

// auth validates the bearer token in ctx metadata. Skipped when s.token is empty.
func (s *Service) auth(ctx context.Context) error {
	if s.token == "" {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return status.Error(codes.Unauthenticated, "missing authorization header")
	}
	if !s.validToken(vals[0]) {
		return status.Error(codes.Unauthenticated, "invalid token")
	}
	return nil
}

// validToken checks an Authorization header value ("Bearer <token>")
// against s.token.
func (s *Service) validToken(header string) bool {
	tok, ok := strings.CutPrefix(header, "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(tok), []byte(s.token)) == 1
}

func sourceFromCtx(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(sourceHeader); len(vals) > 0 && vals[0] != "" {
			return vals[0]
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if a := p.Addr.String(); a != "" {
			return a
		}
	}
	return "unknown"
}

// watchPeer is a transient hub.Subscriber backed by a Watch stream.
type watchPeer struct {
	id string
	ch chan message.State
}

func (p *watchPeer) ID() string { return p.id }

func (p *watchPeer) Send(st message.State) {
	select {
	case p.ch <- st:
	default:
		slog.Warn("watcher channel full, dropping", "watcher", p.id)
	}
}
