// Package rotation orders a filtered venue set fairly: manual overrides
// first, then a time-windowed shuffle that is stable within one epoch and
// uniformly re-drawn across epochs, so pagination never tears mid-window
// and no venue is permanently buried.
package rotation

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/locaro/venue-api/internal/model"
)

// EpochWidth is the shuffle window. All calls inside one window see the
// same ordering; the next window re-shuffles.
const EpochWidth = 5 * time.Minute

// Epoch buckets a wall-clock instant into a fixed-width window index.
func Epoch(t time.Time) int64 {
	return t.Unix() / int64(EpochWidth/time.Second)
}

// Hash returns the per-epoch shuffle key for a venue. sha256 rather than a
// runtime hash so the ordering is identical across processes.
func Hash(id uuid.UUID, epoch int64) uint64 {
	sum := sha256.Sum256([]byte(id.String() + ":" + strconv.FormatInt(epoch, 10)))
	return binary.BigEndian.Uint64(sum[:8])
}

// Less is the composite ranking key, ascending:
//  1. has homepage slot, then slot position
//  2. has priority, then priority value
//  3. per-epoch rotation hash
//  4. venue id, for total determinism
func Less(a, b *model.Venue, epoch int64) bool {
	if (a.HomepageSlot != nil) != (b.HomepageSlot != nil) {
		return a.HomepageSlot != nil
	}
	if a.HomepageSlot != nil && b.HomepageSlot != nil && *a.HomepageSlot != *b.HomepageSlot {
		return *a.HomepageSlot < *b.HomepageSlot
	}
	if (a.Priority != nil) != (b.Priority != nil) {
		return a.Priority != nil
	}
	if a.Priority != nil && b.Priority != nil && *a.Priority != *b.Priority {
		return *a.Priority < *b.Priority
	}
	ha, hb := Hash(a.ID, epoch), Hash(b.ID, epoch)
	if ha != hb {
		return ha < hb
	}
	return a.ID.String() < b.ID.String()
}

// Sort orders venues in place by the epoch's ranking key.
func Sort(venues []*model.Venue, epoch int64) {
	sort.Slice(venues, func(i, j int) bool {
		return Less(venues[i], venues[j], epoch)
	})
}
