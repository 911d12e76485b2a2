// Package store models the out-of-scope realm store collaborator: the
// persistent record of realms and player profiles. The core only reads
// through these interfaces; writes (skin changes) are issued via the HTTP
// surface, not the socket dispatcher.
package store

import (
	"context"

	"github.com/google/uuid"
)

// Realm is the persisted record backing a session's immutable snapshot.
type Realm struct {
	ID      uuid.UUID
	OwnerID uuid.UUID
	// ShareID is the zero UUID when the realm has no share-link gating.
	ShareID uuid.UUID
	// MapData is the opaque structured blob RealmMap parses.
	MapData []byte
}

// HasShareID reports whether the realm gates non-owner access behind a share link.
func (r Realm) HasShareID() bool {
	return r.ShareID != uuid.Nil
}

// Profile is the persisted per-user display record.
type Profile struct {
	UserID uuid.UUID
	Skin   string
}

// RealmStore loads realm records by id.
type RealmStore interface {
	LoadRealm(ctx context.Context, realmID uuid.UUID) (Realm, bool)
}

// ProfileStore loads profile records by user id.
type ProfileStore interface {
	LoadProfile(ctx context.Context, userID uuid.UUID) (Profile, bool)
}

// RealmStoreFunc adapts a function into a RealmStore.
type RealmStoreFunc func(ctx context.Context, realmID uuid.UUID) (Realm, bool)

func (f RealmStoreFunc) LoadRealm(ctx context.Context, realmID uuid.UUID) (Realm, bool) {
	if f == nil {
		return Realm{}, false
	}
	return f(ctx, realmID)
}

// ProfileStoreFunc adapts a function into a ProfileStore.
type ProfileStoreFunc func(ctx context.Context, userID uuid.UUID) (Profile, bool)

func (f ProfileStoreFunc) LoadProfile(ctx context.Context, userID uuid.UUID) (Profile, bool) {
	if f == nil {
		return Profile{}, false
	}
	return f(ctx, userID)
}
