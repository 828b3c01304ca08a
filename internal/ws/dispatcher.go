package ws

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/payload"
	"chat-sync/internal/repositories"
)

// Dispatcher decodes inbound frames and applies their effects to the
// local cache. Frames are handled one at a time in arrival order; a bad
// frame is logged and dropped, never fatal.
type Dispatcher struct {
	messages repositories.MessageRepository
	chats    repositories.ChatRepository
	codec    *payload.Codec
	events   chan models.StreamEvent

	mu     sync.RWMutex
	selfID string
}

// NewDispatcher constructs a Dispatcher. selfID is the current user;
// messages from other senders bump unread counters.
func NewDispatcher(messages repositories.MessageRepository, chats repositories.ChatRepository, codec *payload.Codec, selfID string) *Dispatcher {
	return &Dispatcher{
		messages: messages,
		chats:    chats,
		codec:    codec,
		selfID:   selfID,
		events:   make(chan models.StreamEvent, 128),
	}
}

// SetSelfID updates the current user after a credential change. Safe
// to call while the read loop is delivering frames.
func (d *Dispatcher) SetSelfID(userID string) {
	d.mu.Lock()
	d.selfID = userID
	d.mu.Unlock()
}

func (d *Dispatcher) currentSelfID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selfID
}

// Events exposes decoded stream events to local observers. Events are
// dropped, not blocked on, when no observer keeps up.
func (d *Dispatcher) Events() <-chan models.StreamEvent {
	return d.events
}

// HandleFrame processes one inbound text frame.
func (d *Dispatcher) HandleFrame(ctx context.Context, data []byte) {
	if len(data) == 0 {
		return
	}

	event, err := models.DecodeStreamEvent(data)
	if err != nil {
		log.Printf("dropping malformed frame: %v", err)
		observability.IncStreamEvent("malformed")
		return
	}

	switch event.Kind {
	case models.EventChat:
		observability.IncStreamEvent("chat")
		if err := d.handleChat(ctx, event.Chat); err != nil {
			log.Printf("chat frame persist failed message_id=%s: %v", event.Chat.MessageID, err)
			return
		}
	case models.EventStatus:
		observability.IncStreamEvent("status")
		if err := d.handleStatus(ctx, event.Status); err != nil {
			log.Printf("status frame apply failed message_id=%s: %v", event.Status.MessageID, err)
			return
		}
	default:
		log.Printf("ignoring unrecognized envelope type=%q", event.RawType)
		observability.IncStreamEvent("unknown")
		return
	}

	d.notify(event)
}

func (d *Dispatcher) handleChat(ctx context.Context, p *models.ChatPayload) error {
	content := d.codec.Open(p.Content)
	p.Content = content

	// The optimistic send path may already hold this message under its
	// server id. In that case only the delivery flag advances.
	if _, err := d.messages.GetByServerID(ctx, p.MessageID); err == nil {
		if err := d.messages.SetStatusByServerID(ctx, p.MessageID, models.StatusDelivered); err != nil {
			return err
		}
	} else if errors.Is(err, repositories.ErrMessageNotFound) {
		// No matching client-generated message; the server id doubles
		// as the de-duplication key.
		msg := models.Message{
			ServerID:        nullString(p.MessageID),
			ClientMessageID: p.MessageID,
			ChatID:          p.ChatID,
			SenderID:        p.SenderID,
			Content:         content,
			Timestamp:       parseEventTime(p.SentAt),
			IsSent:          true,
			IsDelivered:     true,
		}
		if err := d.messages.UpsertMessage(ctx, msg); err != nil {
			return err
		}
	} else {
		return err
	}

	if err := d.chats.SetLastMessage(ctx, p.ChatID, content, parseEventTime(p.SentAt)); err != nil {
		log.Printf("last-message update failed chat_id=%s: %v", p.ChatID, err)
	}
	if p.SenderID != d.currentSelfID() {
		if err := d.chats.IncrementUnread(ctx, p.ChatID); err != nil {
			log.Printf("unread bump failed chat_id=%s: %v", p.ChatID, err)
		}
	}
	return nil
}

func (d *Dispatcher) handleStatus(ctx context.Context, p *models.StatusPayload) error {
	switch p.Status {
	case models.StatusSent, models.StatusDelivered, models.StatusRead:
	default:
		log.Printf("ignoring unknown message status %q message_id=%s", p.Status, p.MessageID)
		return nil
	}
	err := d.messages.SetStatusByServerID(ctx, p.MessageID, p.Status)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		log.Printf("status for unknown message server_id=%s status=%s", p.MessageID, p.Status)
		return nil
	}
	return err
}

func (d *Dispatcher) notify(event models.StreamEvent) {
	select {
	case d.events <- event:
	default:
		log.Printf("stream event observer lagging, dropping %q notification", event.RawType)
	}
}

func parseEventTime(value string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}
