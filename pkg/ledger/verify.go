package ledger

import (
	"github.com/Mindburn-Labs/agora/pkg/contracts"
)

// Report is the outcome of a chain verification. Indices refer to the
// entries after sorting by timestamp.
type Report struct {
	Valid          bool  `json:"valid"`
	InvalidIndices []int `json:"invalidIndices"`
	Checked        int   `json:"checked"`
}

// VerifyChain checks a set of entries without trusting any stored hash
// transitively. For every index the hash is recomputed from the entry's own
// content, and for i > 0 the previous-hash pointer is compared with the
// stored hash of entry i-1. Either mismatch flags the index.
//
// VerifyChain never fails; callers decide how severe an invalid report is.
func VerifyChain(entries []contracts.LogEntry) Report {
	sorted := make([]contracts.LogEntry, len(entries))
	copy(sorted, entries)
	sortByTimestamp(sorted)

	report := Report{InvalidIndices: []int{}, Checked: len(sorted)}
	for i, entry := range sorted {
		bad := false

		computed, err := ComputeHash(entry.Action, entry.Timestamp, entry.PreviousHash)
		if err != nil || computed != entry.Hash {
			bad = true
		}
		if i > 0 && entry.PrevHash() != sorted[i-1].Hash {
			bad = true
		}
		// a missing pointer on a non-first entry is a break too
		if i > 0 && entry.PreviousHash == nil {
			bad = true
		}

		if bad {
			report.InvalidIndices = append(report.InvalidIndices, i)
		}
	}
	report.Valid = len(report.InvalidIndices) == 0
	return report
}
