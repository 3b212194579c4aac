// Package activity records the last thing each user did.
package activity

import (
	"context"
	"time"

	"github.com/julianstephens/questbot/internal/constants"
	"github.com/julianstephens/questbot/internal/models"
	"github.com/julianstephens/questbot/internal/utils"
)

// Store is the slice of the record store the tracker needs
type Store interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
	SetLastActive(ctx context.Context, userID string, la models.LastActive) error
}

type Tracker struct {
	store    Store
	clock    utils.Clock
	location *time.Location
}

func NewTracker(store Store, clock utils.Clock, location *time.Location) *Tracker {
	if location == nil {
		location = time.Local
	}
	return &Tracker{store: store, clock: clock, location: location}
}

// ResolvePhase picks the phase recorded with an activity: the explicit
// argument, else the user's current phase, else "-".
func ResolvePhase(explicit models.Phase, user models.Phase) string {
	if explicit != "" {
		return string(explicit)
	}
	if user != "" {
		return string(user)
	}
	return constants.NoPhase
}

// Touch upserts the user's last-active marker. When phase is empty the user's
// stored phase is looked up.
func (t *Tracker) Touch(ctx context.Context, userID, activityContext string, phase models.Phase) (models.LastActive, error) {
	var userPhase models.Phase
	if phase == "" {
		u, err := t.store.GetUser(ctx, userID)
		if err != nil {
			return models.LastActive{}, err
		}
		userPhase = u.Phase
	}

	now := t.clock.Now().In(t.location)
	la := models.LastActive{
		Timestamp: now,
		Date:      utils.DisplayDate(now),
		Context:   activityContext,
		Phase:     ResolvePhase(phase, userPhase),
	}
	if err := t.store.SetLastActive(ctx, userID, la); err != nil {
		return models.LastActive{}, err
	}
	return la, nil
}
