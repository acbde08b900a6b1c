package eventmodel

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// RawEvent is the original feed payload for a single event, stored
// alongside the parsed Event for debugging and replay. Identical bytes
// always yield identical ContentHash; RawID is randomized so that
// duplicate ingests of the same source_id are preservable rather than
// deduplicated.
type RawEvent struct {
	RawID    string
	SourceID string

	RawBytes         string
	ContentHash      string
	ContentSizeBytes int

	SourceURL            string
	SeriesMasterID       string
	RecurrenceInstanceID string
	IsInstance           bool

	CachedAt time.Time
}

// RawEventFromBytes computes ContentHash and ContentSizeBytes from raw
// and mints a fresh, unique RawID of the form raw_<source_id>_<8 hex>.
func RawEventFromBytes(sourceID string, raw []byte, cachedAt time.Time) RawEvent {
	sum := sha256.Sum256(raw)
	return RawEvent{
		RawID:            newRawID(sourceID),
		SourceID:         sourceID,
		RawBytes:         string(raw),
		ContentHash:      hex.EncodeToString(sum[:]),
		ContentSizeBytes: len(raw),
		CachedAt:         cachedAt,
	}
}

// newRawID synthesizes raw_<source_id>_<8 hex of random>, using a UUID
// as the source of randomness rather than a bespoke RNG.
func newRawID(sourceID string) string {
	id := uuid.New()
	suffix := id.String()
	suffix = suffix[len(suffix)-8:]
	return "raw_" + sourceID + "_" + suffix
}

// Clone returns a value copy of r.
func (r RawEvent) Clone() RawEvent {
	return r
}
