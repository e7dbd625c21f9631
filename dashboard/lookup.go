package dashboard

import (
	"context"
	"errors"

	"laborease/models"
	"laborease/store"
)

// LookupState tags the outcome of a secondary profile lookup so callers
// handle misses and failures explicitly instead of probing a maybe-shaped
// join result.
type LookupState int

const (
	LookupFound LookupState = iota
	LookupNotFound
	LookupFailed
)

type ProfileLookup struct {
	State   LookupState
	Profile models.Profile
	Err     error
}

func lookupProfile(ctx context.Context, st store.Store, id string) ProfileLookup {
	if id == "" {
		return ProfileLookup{State: LookupNotFound}
	}
	p, err := st.GetProfile(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ProfileLookup{State: LookupNotFound}
		}
		return ProfileLookup{State: LookupFailed, Err: err}
	}
	return ProfileLookup{State: LookupFound, Profile: *p}
}

// DisplayName resolves to the profile's name or a placeholder; a failed
// lookup degrades rather than failing the whole aggregation.
func (l ProfileLookup) DisplayName(placeholder string) string {
	if l.State == LookupFound && l.Profile.FullName != "" {
		return l.Profile.FullName
	}
	return placeholder
}
