package relay

import (
	"github.com/rs/zerolog"

	"github.com/dhruvsahu007/slackai/internal/metrics"
)

// Router translates inbound relay events into registry operations and
// outbound fan-out sets. It keeps no state of its own; connection state
// lives in the registry.
type Router struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewRouter creates a router over the given registry.
func NewRouter(registry *Registry, logger zerolog.Logger) *Router {
	return &Router{registry: registry, logger: logger}
}

// HandleFrame decodes one inbound frame and dispatches it. Malformed frames
// are logged and dropped; they never affect other connections.
func (rt *Router) HandleFrame(c *Conn, raw []byte) {
	ev, err := DecodeEvent(raw)
	if err != nil {
		rt.logger.Debug().Err(err).Str("addr", c.addr).Msg("dropping relay frame")
		return
	}
	metrics.RelayEvents.WithLabelValues(string(ev.Type)).Inc()
	rt.Handle(c, ev)
}

// Handle dispatches a decoded event.
func (rt *Router) Handle(c *Conn, ev Event) {
	switch ev.Type {
	case EventAuth:
		rt.registry.Authenticate(c, ev.UserID)

	case EventJoinChannel:
		// Join before auth is silently dropped: an unauthenticated
		// connection has no user-scoped reason to track subscriptions.
		if rt.registry.UserID(c) == "" {
			rt.logger.Debug().Str("addr", c.addr).Msg("join_channel before auth dropped")
			return
		}
		rt.registry.Subscribe(c, ev.ChannelID)

	case EventLeaveChannel:
		if rt.registry.UserID(c) == "" {
			rt.logger.Debug().Str("addr", c.addr).Msg("leave_channel before auth dropped")
			return
		}
		rt.registry.Unsubscribe(c, ev.ChannelID)

	case EventNewMessage:
		rt.fanOut(c, ev, rt.recipientsForMessage(c, ev))

	case EventTyping:
		if rt.registry.UserID(c) == "" {
			rt.logger.Debug().Str("addr", c.addr).Msg("typing before auth dropped")
			return
		}
		rt.fanOut(c, ev, rt.registry.ConnsForChannel(ev.ChannelID))
	}
}

// recipientsForMessage computes the delivery set for a new_message event:
// the channel's subscribers for a broadcast, or every connection of either
// party for a direct message. The sender is excluded during fan-out.
func (rt *Router) recipientsForMessage(c *Conn, ev Event) []*Conn {
	if ev.ChannelID != "" {
		return rt.registry.ConnsForChannel(ev.ChannelID)
	}

	authorID := ev.authorID()
	if authorID == "" {
		authorID = rt.registry.UserID(c)
	}

	recipients := rt.registry.ConnsForUser(ev.RecipientID)
	if authorID != "" && authorID != ev.RecipientID {
		recipients = append(recipients, rt.registry.ConnsForUser(authorID)...)
	}
	return recipients
}

// fanOut delivers an outbound frame to every recipient except the sender.
// Delivery is fire-and-forget per recipient: a stalled or closed peer is
// unregistered and never stalls the rest of the set.
func (rt *Router) fanOut(sender *Conn, ev Event, recipients []*Conn) {
	if len(recipients) == 0 {
		return
	}

	payload, err := ev.encode()
	if err != nil {
		rt.logger.Error().Err(err).Msg("encoding outbound frame")
		return
	}

	var stalled []*Conn
	seen := make(map[*Conn]struct{}, len(recipients))
	for _, rcpt := range recipients {
		if rcpt == sender {
			continue
		}
		if _, dup := seen[rcpt]; dup {
			continue
		}
		seen[rcpt] = struct{}{}

		if rt.registry.safeSend(rcpt, payload) {
			metrics.RelayDelivered.Inc()
		} else {
			metrics.RelayDropped.WithLabelValues("queue_full").Inc()
			stalled = append(stalled, rcpt)
		}
	}

	// Connections that could not accept the frame are torn down; the
	// client's next full fetch reconciles anything it missed.
	for _, rcpt := range stalled {
		rt.logger.Warn().Str("addr", rcpt.addr).Msg("dropping stalled relay connection")
		rt.registry.Unregister(rcpt)
	}
}
