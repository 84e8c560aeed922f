// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

// Package websocket pushes every applied ranking snapshot to connected
// subscribers. The hub serializes client lifecycle and broadcast on one
// goroutine; per-client send buffers decouple slow readers, and a client
// whose buffer fills is dropped rather than allowed to stall the rest.
package websocket

import (
	"context"

	"github.com/dbeaumont-media/marquee/internal/logging"
	"github.com/dbeaumont-media/marquee/internal/metrics"
	"github.com/dbeaumont-media/marquee/internal/ranking"
)

// Message types pushed to subscribers.
const (
	MessageTypeRanking = "ranking"
	MessageTypePing    = "ping"
	MessageTypePong    = "pong"
)

// Message is the envelope for WebSocket payloads.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Hub maintains the set of active clients and broadcasts ranking
// snapshots to them.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
}

// NewHub creates a hub. Run it with RunWithContext before registering
// clients.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// BroadcastSnapshot queues a ranking snapshot for all clients. It is a
// ranking.Listener and must not block: when the broadcast buffer is full
// the oldest queued message is dropped, since only the latest ordering
// matters to subscribers.
func (h *Hub) BroadcastSnapshot(snap ranking.Snapshot) {
	msg := Message{Type: MessageTypeRanking, Data: snap}
	for {
		select {
		case h.broadcast <- msg:
			return
		default:
			select {
			case <-h.broadcast:
			default:
			}
		}
	}
}

// RunWithContext runs the hub loop until the context is canceled,
// closing every client on shutdown. Implements suture.Service via the
// supervisor wrapper.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			metrics.WebSocketClients.Set(0)
			return ctx.Err()

		case client := <-h.register:
			h.clients[client] = struct{}{}
			metrics.WebSocketClients.Set(float64(len(h.clients)))
			logging.Info().Int("total_clients", len(h.clients)).Msg("websocket client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			metrics.WebSocketClients.Set(float64(len(h.clients)))
			logging.Info().Int("total_clients", len(h.clients)).Msg("websocket client disconnected")

		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow consumer: drop the client, not the broadcast.
					delete(h.clients, client)
					close(client.send)
				}
			}
			metrics.WebSocketClients.Set(float64(len(h.clients)))
		}
	}
}
