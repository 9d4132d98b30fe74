package locks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Locker is the short-lived mutual-exclusion primitive that collapses
// duplicate concurrent reservation submissions before they reach the
// database. Locks are advisory: correctness still rests on the reservation
// transaction, the lock only keeps accidental resubmits cheap.
type Locker interface {
	// Acquire returns false when the key already holds an unexpired lock.
	// Callers must treat a denied acquire as "request already in flight".
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release is idempotent; releasing an absent or expired key is a no-op.
	Release(ctx context.Context, key string) error
}

// ReservationKey derives the lock key from the field, date, requester contact
// and amount. Two distinct legitimate bookings by different people never
// collide; a double-click by the same person does. The contact is hashed so
// the lock store never holds raw email addresses.
func ReservationKey(fieldID, date, contact string, amount int64) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(contact))))
	return fmt.Sprintf("resv:%s:%s:%s:%d", fieldID, date, hex.EncodeToString(sum[:8]), amount)
}
