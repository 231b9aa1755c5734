// Package transport implements the client-facing duplex stream over
// github.com/coder/websocket (spec §6): JSON text control frames one
// way, binary opus packets the other, decoded and handed to an
// orchestrator.FrameRouter.
package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coder/websocket"
	"github.com/voxloop-ai/voxloop-orchestrator/pkg/orchestrator"
)

// Stream adapts one accepted websocket connection to
// orchestrator.Outbound and drives an orchestrator.FrameRouter off its
// inbound frames.
type Stream struct {
	conn *websocket.Conn
}

// New wraps an already-accepted (or dialed) websocket connection.
func New(conn *websocket.Conn) *Stream {
	return &Stream{conn: conn}
}

// SendControl implements orchestrator.Outbound.
func (s *Stream) SendControl(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("transport: marshal control message: %w", err)
	}
	return s.conn.Write(context.Background(), websocket.MessageText, b)
}

// SendAudio implements orchestrator.Outbound.
func (s *Stream) SendAudio(packet []byte) error {
	return s.conn.Write(context.Background(), websocket.MessageBinary, packet)
}

// Close implements orchestrator.Outbound.
func (s *Stream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

// Run reads frames from the connection and dispatches them through
// router until ctx is cancelled or the client closes the stream (spec
// §4.1 "runs to end-of-stream").
func (s *Stream) Run(ctx context.Context, router *orchestrator.FrameRouter) error {
	for {
		kind, data, err := s.conn.Read(ctx)
		if err != nil {
			return err
		}

		var frame orchestrator.Frame
		switch kind {
		case websocket.MessageText:
			frame = orchestrator.Frame{Kind: orchestrator.FrameText, Text: string(data)}
		case websocket.MessageBinary:
			frame = orchestrator.Frame{Kind: orchestrator.FrameBinary, Data: data}
		default:
			frame = orchestrator.Frame{Kind: orchestrator.FrameUnknown}
		}

		if err := router.Route(frame); err != nil {
			return fmt.Errorf("transport: route frame: %w", err)
		}
	}
}
