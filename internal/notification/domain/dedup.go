package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// DedupKey identifies one logical notification occurrence. Period carries
// the time bucket, so a key stops matching once the bucket rolls over.
// Subject narrows the occurrence, e.g. to a single event.
type DedupKey struct {
	Kind    Kind
	Subject string
	Period  string
}

// DailyKey buckets by calendar date in loc.
func DailyKey(kind Kind, subject string, t time.Time, loc *time.Location) DedupKey {
	return DedupKey{Kind: kind, Subject: subject, Period: t.In(loc).Format("2006-01-02")}
}

// WeeklyKey buckets by ISO week in loc.
func WeeklyKey(kind Kind, subject string, t time.Time, loc *time.Location) DedupKey {
	year, week := t.In(loc).ISOWeek()
	return DedupKey{Kind: kind, Subject: subject, Period: fmt.Sprintf("%d-W%02d", year, week)}
}

// RecordID is the deterministic storage id for a recipient and key. Fields
// are length-prefixed before hashing so no two distinct tuples collide by
// concatenation.
func (k DedupKey) RecordID(recipientID string) string {
	h := sha256.New()
	for _, part := range []string{recipientID, string(k.Kind), k.Subject, k.Period} {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (k DedupKey) String() string {
	if k.Subject == "" {
		return fmt.Sprintf("%s_%s", k.Kind, k.Period)
	}
	return fmt.Sprintf("%s_%s_%s", k.Kind, k.Subject, k.Period)
}

// DedupRecord is the persisted proof that a recipient was notified for a key.
type DedupRecord struct {
	RecipientID string
	Key         DedupKey
	SentAt      time.Time
}
