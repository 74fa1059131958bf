package inventory

import (
	"context"
	"errors"
)

// DefaultActorID is the last-resort actor when no user can be resolved.
const DefaultActorID int64 = 1

// UserDirectory looks up users for actor attribution.
type UserDirectory interface {
	FirstUserIDWithRole(ctx context.Context, role string) (int64, error)
	FirstUserID(ctx context.Context) (int64, error)
}

// ActorResolver resolves the acting user for a movement when the caller did
// not supply one.
type ActorResolver interface {
	Resolve(ctx context.Context) (int64, error)
}

// FallbackActorResolver attributes movements to the first administrator,
// else the first user, else DefaultActorID.
type FallbackActorResolver struct {
	Users     UserDirectory
	AdminRole string
}

// NewFallbackActorResolver constructs the resolver with the default admin role.
func NewFallbackActorResolver(users UserDirectory) *FallbackActorResolver {
	return &FallbackActorResolver{Users: users, AdminRole: "admin"}
}

// Resolve walks the fallback chain. It only errors when the directory itself
// fails; an empty directory falls through to DefaultActorID.
func (r *FallbackActorResolver) Resolve(ctx context.Context) (int64, error) {
	if r == nil || r.Users == nil {
		return DefaultActorID, nil
	}
	if id, err := r.Users.FirstUserIDWithRole(ctx, r.AdminRole); err == nil && id != 0 {
		return id, nil
	} else if err != nil && !errors.Is(err, ErrNoUsers) {
		return 0, err
	}
	if id, err := r.Users.FirstUserID(ctx); err == nil && id != 0 {
		return id, nil
	} else if err != nil && !errors.Is(err, ErrNoUsers) {
		return 0, err
	}
	return DefaultActorID, nil
}

// ErrNoUsers is returned by a UserDirectory when no matching user exists.
var ErrNoUsers = errors.New("inventory: no users available")
