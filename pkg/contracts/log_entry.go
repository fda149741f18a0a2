package contracts

import "time"

// LogEntry is one immutable link of the action ledger.
// Hash covers Action, Timestamp and PreviousHash only; ID is storage identity.
type LogEntry struct {
	ID           string    `json:"id"`
	Action       Action    `json:"action"`
	Timestamp    time.Time `json:"timestamp"`
	PreviousHash *string   `json:"previousHash"`
	Hash         string    `json:"hash"`
}

// PrevHash returns the previous hash or "" for the first entry.
func (e LogEntry) PrevHash() string {
	if e.PreviousHash == nil {
		return ""
	}
	return *e.PreviousHash
}
