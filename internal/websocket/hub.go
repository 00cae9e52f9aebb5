package websocket

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/logging"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/models"
)

// Hub maintains the set of subscribers per call channel and fans presence
// events out to them. All state is owned by the Run goroutine.
type Hub struct {
	// channels maps channel name to its subscribers
	channels map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage
	count      chan chan int
	done       chan struct{}

	log logrus.FieldLogger
}

type broadcastMessage struct {
	channel string
	payload []byte
}

// NewHub creates a new Hub instance
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		channels:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 64),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		log:        logging.Component(log, "ws-hub"),
	}
}

// Run starts the hub's event loop and returns when ctx is cancelled.
// This should be called in a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastToChannel(msg)

		case reply := <-h.count:
			n := 0
			for _, clients := range h.channels {
				n += len(clients)
			}
			reply <- n

		case <-ctx.Done():
			for _, clients := range h.channels {
				for client := range clients {
					close(client.send)
				}
			}
			h.channels = make(map[string]map[*Client]bool)
			return
		}
	}
}

// Publish queues an event for every subscriber of channelName. It never
// blocks the caller; when the queue is full the event is dropped.
func (h *Hub) Publish(channelName string, event models.PresenceEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Error("failed to encode presence event")
		return
	}
	select {
	case h.broadcast <- &broadcastMessage{channel: channelName, payload: payload}:
	default:
		h.log.WithField("channel_name", channelName).Warn("presence event dropped, hub is backed up")
	}
}

// add registers a client; it reports false once the hub has stopped.
func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// remove unregisters a client, if the hub is still running.
func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribers returns the total number of connected subscribers.
func (h *Hub) Subscribers(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-ctx.Done():
		return 0
	case <-h.done:
		return 0
	}
}

func (h *Hub) registerClient(client *Client) {
	if h.channels[client.ChannelName] == nil {
		h.channels[client.ChannelName] = make(map[*Client]bool)
	}
	h.channels[client.ChannelName][client] = true
	h.log.WithFields(logrus.Fields{
		"client_id":    client.ID,
		"channel_name": client.ChannelName,
		"total":        len(h.channels[client.ChannelName]),
	}).Debug("subscriber joined")
}

func (h *Hub) unregisterClient(client *Client) {
	clients, ok := h.channels[client.ChannelName]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.channels, client.ChannelName)
	}
	h.log.WithFields(logrus.Fields{
		"client_id":    client.ID,
		"channel_name": client.ChannelName,
	}).Debug("subscriber left")
}

func (h *Hub) broadcastToChannel(msg *broadcastMessage) {
	for client := range h.channels[msg.channel] {
		select {
		case client.send <- msg.payload:
		default:
			// slow subscriber, drop it
			delete(h.channels[msg.channel], client)
			close(client.send)
		}
	}
	if len(h.channels[msg.channel]) == 0 {
		delete(h.channels, msg.channel)
	}
}
