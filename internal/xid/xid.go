package xid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// New returns a prefixed identifier such as "ord-3f2a9c1d8b4e". The suffix
// is the first half of a random UUID, enough uniqueness for entity keys
// while staying readable in logs and receipts.
func New(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s-%s", prefix, id)
}

// Number returns a human-facing document number like "S-20260830-3F2A9C".
// Sellers read these over the phone, so they are short and upper-case.
func Number(prefix string, at time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", prefix, at.UTC().Format("20060102"), id)
}
