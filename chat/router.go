// Package chat implements the channel-filtered message fan-out (§2
// "Chat router"): incoming ChatMessage packets are validated against the
// sender's session and re-broadcast to the set of recipients the chosen
// channel implies.
//
// Fan-out iterates live clients, filters by a predicate, and sends,
// counting a recipient whose send is refused as not delivered; generalized from a single
// per-session filter to four chat channels.
package chat

import (
	"errors"
	"fmt"

	"worldcore/codec"
	"worldcore/entity"
	"worldcore/logging"
	"worldcore/session"
	"worldcore/transport"
)

// sayRadius bounds the local "say" channel; not a configured tunable in
// the wire contract, so it is fixed here rather than plumbed through
// config.
const sayRadius = 30.0

// Router fans a validated chat message out to the right recipients.
// Profanity filtering is explicitly out of scope (§1); this package only
// routes, it never inspects or rewrites message text.
type Router struct {
	dispatcher *transport.Dispatcher
	sessions   *session.Manager
	registry   *entity.Registry
	log        *logging.Logger
}

func New(dispatcher *transport.Dispatcher, sessions *session.Manager, registry *entity.Registry, log *logging.Logger) *Router {
	if log == nil {
		log = logging.Default()
	}
	return &Router{dispatcher: dispatcher, sessions: sessions, registry: registry, log: log}
}

// Route validates senderPlayerID's session and broadcasts msg to the
// channel's recipient set. Returns an error only for a malformed sender
// (unknown player, or an admin-channel post from a non-admin); delivery
// failures to individual recipients are logged, not returned, matching
// a fire-and-forget broadcast idiom.
func (r *Router) Route(senderPlayerID uint32, msg codec.ClientChatMessage) error {
	sender := r.sessions.ByPlayerID(senderPlayerID)
	if sender == nil || sender.State() != session.Authenticated {
		return fmt.Errorf("chat: unknown or unauthenticated sender %d", senderPlayerID)
	}
	if msg.Channel == codec.ChatAdmin && !sender.Admin {
		return fmt.Errorf("chat: %w", errNotAdmin)
	}

	out := codec.ServerChatMessage{PlayerID: senderPlayerID, Channel: msg.Channel, Text: msg.Text}
	body := codec.EncodeServerChatMessage(out)

	recipients := r.recipients(sender, msg.Channel)
	sent := 0
	for _, s := range recipients {
		if r.dispatcher.Send(s.SessionID, transport.ChannelReliableOrdered, codec.TypeS2CChatMessage, body) {
			sent++
		}
	}
	r.log.Debug("chat routed", map[string]interface{}{
		"senderPlayerId": senderPlayerID, "channel": int(msg.Channel), "recipients": len(recipients), "delivered": sent,
	})
	return nil
}

// SystemMessage delivers an operator/server-originated notice to one
// session (e.g. an admin command acknowledgement or a kick reason),
// bypassing channel filtering entirely.
func (r *Router) SystemMessage(sessionID string, severity uint8, text string) {
	body := codec.EncodeSystemMessage(codec.SystemMessage{Severity: severity, Text: text})
	r.dispatcher.Send(sessionID, transport.ChannelReliableOrdered, codec.TypeS2CSystemMessage, body)
}

// Broadcast delivers a system message to every authenticated session,
// used for server-wide announcements (e.g. an admin "setweather"/"nextday"
// acknowledgement other players should see).
func (r *Router) Broadcast(severity uint8, text string) {
	body := codec.EncodeSystemMessage(codec.SystemMessage{Severity: severity, Text: text})
	for _, s := range r.sessions.All() {
		if s.State() != session.Authenticated {
			continue
		}
		r.dispatcher.Send(s.SessionID, transport.ChannelReliableOrdered, codec.TypeS2CSystemMessage, body)
	}
}

func (r *Router) recipients(sender *session.Session, ch codec.ChatChannel) []*session.Session {
	all := r.sessions.All()
	out := make([]*session.Session, 0, len(all))

	switch ch {
	case codec.ChatGlobal:
		for _, s := range all {
			if s.State() == session.Authenticated {
				out = append(out, s)
			}
		}
	case codec.ChatAdmin:
		for _, s := range all {
			if s.State() == session.Authenticated && s.Admin {
				out = append(out, s)
			}
		}
	case codec.ChatFaction:
		senderEntity := r.primaryEntity(sender)
		if senderEntity == nil {
			return nil
		}
		for _, s := range all {
			if s.State() != session.Authenticated {
				continue
			}
			e := r.primaryEntity(s)
			if e != nil && e.Faction == senderEntity.Faction {
				out = append(out, s)
			}
		}
	case codec.ChatSay:
		senderEntity := r.primaryEntity(sender)
		if senderEntity == nil {
			return nil
		}
		for _, s := range all {
			if s.State() != session.Authenticated {
				continue
			}
			e := r.primaryEntity(s)
			if e == nil {
				continue
			}
			if e.Position.Sub(senderEntity.Position).LengthSq() <= sayRadius*sayRadius {
				out = append(out, s)
			}
		}
	}
	return out
}

func (r *Router) primaryEntity(s *session.Session) *entity.Entity {
	owned := s.OwnedEntities()
	if len(owned) == 0 {
		return nil
	}
	return r.registry.Get(owned[0])
}

var errNotAdmin = errors.New("sender is not flagged admin")
