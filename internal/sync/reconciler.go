// Package sync merges authoritative server snapshots into the local
// cache without undoing local deletions that are still in flight.
package sync

import (
	"context"
	"database/sql"
	"log"
	"time"

	"go.opentelemetry.io/otel"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/remote"
	"chat-sync/internal/repositories"
)

// Reconciler pulls remote snapshots and applies insert/update/delete
// deltas to the local cache. Per-entity persistence failures are logged
// and skipped so one bad record cannot abort a pass.
type Reconciler struct {
	api          remote.API
	chats        repositories.ChatRepository
	messages     repositories.MessageRepository
	participants repositories.ParticipantRepository
	contacts     repositories.ContactRepository
	users        repositories.UserRepository
	tombstones   repositories.TombstoneRepository
	resolver     *Resolver
}

// NewReconciler constructs a Reconciler.
func NewReconciler(
	api remote.API,
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	participants repositories.ParticipantRepository,
	contacts repositories.ContactRepository,
	users repositories.UserRepository,
	tombstones repositories.TombstoneRepository,
	resolver *Resolver,
) *Reconciler {
	return &Reconciler{
		api:          api,
		chats:        chats,
		messages:     messages,
		participants: participants,
		contacts:     contacts,
		users:        users,
		tombstones:   tombstones,
		resolver:     resolver,
	}
}

// SyncChats reconciles the conversation cache of userID against the
// server. On fetch failure the current cache is returned unchanged.
func (r *Reconciler) SyncChats(ctx context.Context, userID string) ([]models.Chat, error) {
	ctx, span := otel.Tracer("chat-sync/sync").Start(ctx, "reconcile.chats")
	defer span.End()
	start := time.Now()

	snapshot, err := r.api.ListChats(ctx)
	if err != nil {
		log.Printf("chat snapshot fetch failed, keeping local cache: %v", err)
		observability.ObserveReconcile("chats", "fetch_error", time.Since(start))
		return r.chats.ListChats(ctx)
	}

	unfilteredIDs := make([]string, 0, len(snapshot))
	for _, chat := range snapshot {
		unfilteredIDs = append(unfilteredIDs, chat.ChatID)
	}

	tombstoned, err := r.tombstones.IDs(ctx, userID)
	if err != nil {
		observability.ObserveReconcile("chats", "error", time.Since(start))
		return nil, err
	}
	dead := make(map[string]bool, len(tombstoned))
	for _, id := range tombstoned {
		dead[id] = true
	}

	filtered := snapshot[:0]
	for _, chat := range snapshot {
		if dead[chat.ChatID] {
			continue
		}
		filtered = append(filtered, chat)
	}

	local, err := r.chats.ListChats(ctx)
	if err != nil {
		observability.ObserveReconcile("chats", "error", time.Since(start))
		return nil, err
	}
	localByID := make(map[string]models.Chat, len(local))
	for _, chat := range local {
		localByID[chat.ChatID] = chat
	}

	remoteIDs := make(map[string]bool, len(filtered))
	for _, chat := range filtered {
		remoteIDs[chat.ChatID] = true
	}

	// Deletes first: local chats the filtered snapshot no longer holds.
	for id := range localByID {
		if remoteIDs[id] {
			continue
		}
		r.purgeChat(ctx, id)
	}

	// Inserts and unconditional updates, server wins. Locally owned
	// fields (unread counter, last-message summary, resolved name) are
	// carried over because the snapshot does not know them.
	for _, snap := range filtered {
		existing, known := localByID[snap.ChatID]
		chat := models.Chat{
			ChatID:       snap.ChatID,
			Name:         optional(snap.Name),
			CreatedAt:    snap.CreatedAt,
			CreatorID:    snap.CreatorID,
			IsGroup:      snap.IsGroup,
			Participants: memberIDs(snap.Members),
		}
		if known {
			chat.UnreadCount = existing.UnreadCount
			chat.LastMessage = existing.LastMessage
			chat.LastActivity = existing.LastActivity
			if !chat.Name.Valid && existing.HasResolvedName() {
				chat.Name = existing.Name
			}
		}

		members := r.applyMembers(ctx, snap.ChatID, snap.Members)

		if !chat.HasResolvedName() {
			name, err := r.resolver.ResolveChatName(ctx, chat, members, userID)
			if err != nil {
				log.Printf("name resolution failed chat_id=%s: %v", snap.ChatID, err)
			} else if name != "" {
				chat.Name = sql.NullString{String: name, Valid: true}
			}
		}

		if err := r.chats.UpsertChat(ctx, chat); err != nil {
			log.Printf("chat upsert failed chat_id=%s: %v", snap.ChatID, err)
			continue
		}
	}

	// Tombstones whose chat left the unfiltered snapshot are done.
	if err := r.tombstones.Cleanup(ctx, userID, unfilteredIDs); err != nil {
		log.Printf("tombstone cleanup failed: %v", err)
	}

	observability.ObserveReconcile("chats", "ok", time.Since(start))
	return r.chats.ListChats(ctx)
}

// SyncContacts reconciles the contact cache against the server. On
// fetch failure the current cache is returned unchanged.
func (r *Reconciler) SyncContacts(ctx context.Context) ([]models.Contact, error) {
	ctx, span := otel.Tracer("chat-sync/sync").Start(ctx, "reconcile.contacts")
	defer span.End()
	start := time.Now()

	snapshot, err := r.api.ListContacts(ctx)
	if err != nil {
		log.Printf("contact snapshot fetch failed, keeping local cache: %v", err)
		observability.ObserveReconcile("contacts", "fetch_error", time.Since(start))
		return r.contacts.ListContacts(ctx)
	}

	local, err := r.contacts.ListContacts(ctx)
	if err != nil {
		observability.ObserveReconcile("contacts", "error", time.Since(start))
		return nil, err
	}

	remoteIDs := make(map[string]bool, len(snapshot))
	now := time.Now().UTC()
	for _, snap := range snapshot {
		remoteIDs[snap.UserID] = true
		contact := models.Contact{
			UserID:     snap.UserID,
			Username:   snap.Username,
			Name:       optional(snap.Name),
			Email:      optional(snap.Email),
			Picture:    optional(snap.Picture),
			Status:     optional(snap.Status),
			IsFavorite: snap.IsFavorite,
			UpdatedAt:  now,
		}
		if err := r.contacts.UpsertContact(ctx, contact); err != nil {
			log.Printf("contact upsert failed user_id=%s: %v", snap.UserID, err)
		}
	}

	for _, contact := range local {
		if remoteIDs[contact.UserID] {
			continue
		}
		if err := r.contacts.DeleteContact(ctx, contact.UserID); err != nil {
			log.Printf("contact delete failed user_id=%s: %v", contact.UserID, err)
		}
	}

	observability.ObserveReconcile("contacts", "ok", time.Since(start))
	return r.contacts.ListContacts(ctx)
}

// SyncParticipants reconciles the member cache of one chat. On fetch
// failure the current cache is returned unchanged.
func (r *Reconciler) SyncParticipants(ctx context.Context, chatID string) ([]models.Participant, error) {
	ctx, span := otel.Tracer("chat-sync/sync").Start(ctx, "reconcile.participants")
	defer span.End()
	start := time.Now()

	snapshot, err := r.api.ListMembers(ctx, chatID)
	if err != nil {
		log.Printf("member snapshot fetch failed chat_id=%s, keeping local cache: %v", chatID, err)
		observability.ObserveReconcile("participants", "fetch_error", time.Since(start))
		return r.participants.ListForChat(ctx, chatID)
	}

	local, err := r.participants.ListForChat(ctx, chatID)
	if err != nil {
		observability.ObserveReconcile("participants", "error", time.Since(start))
		return nil, err
	}

	r.applyMembers(ctx, chatID, snapshot)

	remoteIDs := make(map[string]bool, len(snapshot))
	for _, m := range snapshot {
		remoteIDs[m.UserID] = true
	}
	for _, p := range local {
		if remoteIDs[p.UserID] {
			continue
		}
		if err := r.participants.DeleteParticipant(ctx, p.ParticipantID); err != nil {
			log.Printf("participant delete failed id=%s: %v", p.ParticipantID, err)
		}
	}

	observability.ObserveReconcile("participants", "ok", time.Since(start))
	return r.participants.ListForChat(ctx, chatID)
}

// applyMembers upserts member records and mirrors them into the user
// cache. Failures are logged per entity.
func (r *Reconciler) applyMembers(ctx context.Context, chatID string, members []remote.MemberSnapshot) []models.Participant {
	applied := make([]models.Participant, 0, len(members))
	now := time.Now().UTC()
	for _, m := range members {
		role := m.Role
		if role == "" {
			role = models.RoleMember
		}
		p := models.Participant{
			ParticipantID: models.ParticipantKey(chatID, m.UserID),
			ChatID:        chatID,
			UserID:        m.UserID,
			Username:      m.Username,
			Role:          role,
			JoinedAt:      m.JoinedAt,
		}
		if err := r.participants.UpsertParticipant(ctx, p); err != nil {
			log.Printf("participant upsert failed id=%s: %v", p.ParticipantID, err)
			continue
		}
		applied = append(applied, p)
		if err := r.users.UpsertUser(ctx, models.User{
			UserID:    m.UserID,
			Username:  m.Username,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			log.Printf("user cache upsert failed user_id=%s: %v", m.UserID, err)
		}
	}
	return applied
}

// purgeChat drops one chat and its dependent rows from the cache.
func (r *Reconciler) purgeChat(ctx context.Context, chatID string) {
	if err := r.messages.DeleteForChat(ctx, chatID); err != nil {
		log.Printf("message purge failed chat_id=%s: %v", chatID, err)
	}
	if err := r.participants.DeleteForChat(ctx, chatID); err != nil {
		log.Printf("participant purge failed chat_id=%s: %v", chatID, err)
	}
	if err := r.chats.DeleteChat(ctx, chatID); err != nil {
		log.Printf("chat purge failed chat_id=%s: %v", chatID, err)
	}
}

func memberIDs(members []remote.MemberSnapshot) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids
}
