// ABOUTME: Entity ID generation formats
// ABOUTME: IDs embed the UTC timestamp their entity was created at
package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const utcTimestampFormat = "20060102T150405"

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// NewBlockID mints a bridge block ID of the form bb_<UTC>_<hex>.
func NewBlockID(t time.Time) string {
	return fmt.Sprintf("bb_%s_%s", t.UTC().Format(utcTimestampFormat), randomHex(4))
}

// NewTurnID mints a turn ID of the form turn_<UTC>.<nanoseconds>, sortable
// chronologically as a plain string.
func NewTurnID(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("turn_%s.%09d", u.Format(utcTimestampFormat), u.Nanosecond())
}

// NewDossierID mints a dossier ID of the form dos_<UTC>_<hex>.
func NewDossierID(t time.Time) string {
	return fmt.Sprintf("dos_%s_%s", t.UTC().Format(utcTimestampFormat), randomHex(4))
}

// NewFactID mints a unique fact ID.
func NewFactID() string {
	return fmt.Sprintf("fact_%s", randomHex(8))
}

// NewProvenanceID mints a unique dossier provenance ID.
func NewProvenanceID() string {
	return fmt.Sprintf("prov_%s", randomHex(8))
}
