package game

import (
	"math"
	"time"
)

// BuzzEntry is one buzz-in attempt; Time is the latency adjusted unix time in
// milliseconds.
type BuzzEntry struct {
	ID   string `json:"id"`
	Time int64  `json:"time"`
}

// AdjustedTime is the moment the identity actually pressed the buzzer, as
// best the server can tell. The host never races, so its time is taken as-is.
func AdjustedTime(id *Identity, now time.Time) int64 {
	t := now.UnixMilli()
	p, ok := id.Player()
	if !ok || !p.HasLatency() {
		return t
	}
	return t - int64(math.Round(p.Latency))
}

// InsertBuzz places e so that the sequence stays sorted by ascending time.
// Entries with equal time keep their submission order.
func InsertBuzz(seq []BuzzEntry, e BuzzEntry) []BuzzEntry {
	for i, b := range seq {
		if e.Time < b.Time {
			seq = append(seq, BuzzEntry{})
			copy(seq[i+1:], seq[i:])
			seq[i] = e
			return seq
		}
	}
	return append(seq, e)
}

// RemoveBuzzes drops every entry authored by id.
func RemoveBuzzes(seq []BuzzEntry, id string) []BuzzEntry {
	kept := seq[:0]
	for _, b := range seq {
		if b.ID == id {
			continue
		}
		kept = append(kept, b)
	}
	return kept
}
