package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"chat-sync/internal/models"
	"chat-sync/internal/remote"
	"chat-sync/internal/repositories"
)

// Resolver derives display names for conversations that arrive from
// the server without one.
type Resolver struct {
	users    repositories.UserRepository
	contacts repositories.ContactRepository
	api      remote.API
}

// NewResolver constructs a Resolver.
func NewResolver(users repositories.UserRepository, contacts repositories.ContactRepository, api remote.API) *Resolver {
	return &Resolver{users: users, contacts: contacts, api: api}
}

// ResolveChatName returns the display name for a chat. Chats that
// already carry a resolved name are left alone. Direct chats resolve to
// the other participant's username; unnamed group chats derive a name
// from the first member usernames.
func (r *Resolver) ResolveChatName(ctx context.Context, chat models.Chat, members []models.Participant, selfID string) (string, error) {
	if chat.HasResolvedName() {
		return chat.Name.String, nil
	}

	if !chat.IsGroup {
		otherID := otherParticipant(chat.Participants, selfID)
		if otherID == "" {
			return "", errors.New("direct chat has no counterpart participant")
		}
		return r.resolveUsername(ctx, otherID)
	}

	return groupName(members, selfID), nil
}

// resolveUsername checks the user cache, then the contact cache, then
// the remote API. Remote hits are written back to the user cache.
func (r *Resolver) resolveUsername(ctx context.Context, userID string) (string, error) {
	if user, err := r.users.GetUser(ctx, userID); err == nil && user.Username != "" {
		return user.Username, nil
	} else if err != nil && !errors.Is(err, repositories.ErrUserNotFound) {
		return "", err
	}

	if contact, err := r.contacts.GetContact(ctx, userID); err == nil && contact.Username != "" {
		return contact.Username, nil
	} else if err != nil && !errors.Is(err, repositories.ErrContactNotFound) {
		return "", err
	}

	snapshot, err := r.api.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("remote user lookup %s: %w", userID, err)
	}
	now := time.Now().UTC()
	cacheErr := r.users.UpsertUser(ctx, models.User{
		UserID:    snapshot.UserID,
		Username:  snapshot.Username,
		Name:      optional(snapshot.Name),
		Email:     optional(snapshot.Email),
		Picture:   optional(snapshot.Picture),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if cacheErr != nil {
		return snapshot.Username, cacheErr
	}
	return snapshot.Username, nil
}

func otherParticipant(participants []string, selfID string) string {
	for _, id := range participants {
		if id != selfID {
			return id
		}
	}
	return ""
}

// groupName lists up to three member usernames, with a count suffix for
// the rest.
func groupName(members []models.Participant, selfID string) string {
	names := make([]string, 0, 3)
	total := 0
	for _, m := range members {
		if m.UserID == selfID {
			continue
		}
		total++
		if len(names) < 3 {
			names = append(names, m.Username)
		}
	}
	if len(names) == 0 {
		return ""
	}
	name := strings.Join(names, ", ")
	if total > 3 {
		name += fmt.Sprintf(" and %d others", total-3)
	}
	return name
}

func optional(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
