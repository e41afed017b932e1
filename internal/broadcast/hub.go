package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/RobinLiu69/MentionDodger/internal/domain"
	"github.com/RobinLiu69/MentionDodger/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	guildID      string
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	guildID    string
	connection *websocket.Conn
}

type publishCmd struct {
	baseHubCmd
	event domain.MentionEvent
}

type clientCountCmd struct {
	baseHubCmd
	guildID      string
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

type guildClients map[*websocket.Conn]*clientWriter

// Hub fans mention lifecycle events out to live-feed websocket clients,
// grouped by guild. All connection state is owned by a single actor
// goroutine, so no mutex guards the client maps. Publishing never blocks the
// message path: when the command channel is full the event is dropped and
// counted, and a client whose send buffer is full is evicted rather than
// waited on.
type Hub struct {
	cmdCh         chan hubCmd
	clock         clockwork.Clock
	activeClients map[string]guildClients
	done          chan struct{}
	maxPerGuild   int
}

// NewHub creates the hub and starts its actor goroutine.
func NewHub(clock clockwork.Clock, maxClientsPerGuild int) *Hub {
	h := &Hub{
		cmdCh:         make(chan hubCmd, 256),
		clock:         clock,
		activeClients: make(map[string]guildClients),
		done:          make(chan struct{}),
		maxPerGuild:   maxClientsPerGuild,
	}
	go h.run()
	return h
}

// PublishMentionEvent implements domain.EventPublisher. It never blocks: a
// full command channel drops the event, the durable record in the store is
// unaffected.
func (h *Hub) PublishMentionEvent(event domain.MentionEvent) {
	select {
	case h.cmdCh <- publishCmd{event: event}:
	default:
		metrics.FeedEventsDroppedTotal.Inc()
		slog.Warn("Hub command channel full, dropping event",
			"event_type", event.Type, "mention_id", event.MentionID)
	}
}

// Register adds a live-feed client for a guild. Returns an error when the
// per-guild client limit is reached.
func (h *Hub) Register(guildID string, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- registerCmd{guildID: guildID, connection: conn, errorChannel: errCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a client; safe to call for already removed connections.
func (h *Hub) Unregister(guildID string, conn *websocket.Conn) {
	h.cmdCh <- unregisterCmd{guildID: guildID, connection: conn}
}

// ClientCount returns the number of connected clients for a guild, or -1 if
// the hub did not answer in time.
func (h *Hub) ClientCount(guildID string) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- clientCountCmd{guildID: guildID, replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop closes every client connection and waits for the actor goroutine to
// exit, up to a timeout.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (h *Hub) run() {
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.handleUnregister(c)
		case publishCmd:
			h.handlePublish(c.event)
		case clientCountCmd:
			c.replyChannel <- len(h.activeClients[c.guildID])
		case stopCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	clients, exists := h.activeClients[c.guildID]
	if !exists {
		clients = make(guildClients)
		h.activeClients[c.guildID] = clients
	}

	if len(clients) >= h.maxPerGuild {
		slog.Warn("Rejecting feed client: guild limit reached",
			"guild_id", c.guildID, "max_clients", h.maxPerGuild)
		c.connection.Close()
		c.errorChannel <- fmt.Errorf("max clients per guild (%d) reached", h.maxPerGuild)
		return
	}

	clients[c.connection] = newClientWriter(c.connection, h.clock)
	metrics.FeedConnectedClients.Inc()

	slog.Debug("Feed client registered", "guild_id", c.guildID, "total_clients", len(clients))
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(c unregisterCmd) {
	clients, exists := h.activeClients[c.guildID]
	if !exists {
		return
	}
	cw, exists := clients[c.connection]
	if !exists {
		return
	}

	cw.stop()
	delete(clients, c.connection)
	metrics.FeedConnectedClients.Dec()

	if len(clients) == 0 {
		delete(h.activeClients, c.guildID)
	}
	slog.Debug("Feed client unregistered", "guild_id", c.guildID, "remaining_clients", len(clients))
}

func (h *Hub) handlePublish(event domain.MentionEvent) {
	clients, exists := h.activeClients[event.GuildID]
	if !exists {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal mention event", "error", err)
		return
	}

	for conn, cw := range clients {
		if cw.send(payload) {
			continue
		}

		// Send buffer full: the client cannot keep up, cut it loose.
		metrics.FeedSlowClientsEvicted.Inc()
		slog.Warn("Evicting slow feed client", "guild_id", event.GuildID)
		cw.stop()
		delete(clients, conn)
		metrics.FeedConnectedClients.Dec()
	}

	if len(clients) == 0 {
		delete(h.activeClients, event.GuildID)
	}
}

func (h *Hub) handleStop() {
	for guildID, clients := range h.activeClients {
		for conn, cw := range clients {
			cw.stopGraceful("server shutting down")
			delete(clients, conn)
			metrics.FeedConnectedClients.Dec()
		}
		delete(h.activeClients, guildID)
	}
}
