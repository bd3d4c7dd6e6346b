package reputation

import "strings"

// CompareTrustRecords compares two TrustRecords for the same subject
// and returns -1 if a should be preferred over b, 0 if equivalent, 1
// if b should be preferred. The same last-writer-wins rule the name
// system uses: higher version wins; tied version prefers the newer
// observation (a stale trust score is worse than a fresh one, the
// inverse of the name system's "older timestamp wins" rule, since
// trust is a live signal rather than a durable claim); final tiebreak
// is a lexicographically smaller author BID, for determinism.
func CompareTrustRecords(a, b *TrustRecord) int {
	if a.Ver > b.Ver {
		return -1
	}
	if b.Ver > a.Ver {
		return 1
	}

	if a.TS > b.TS {
		return -1
	}
	if b.TS > a.TS {
		return 1
	}

	cmp := strings.Compare(a.Author, b.Author)
	if cmp < 0 {
		return -1
	}
	if cmp > 0 {
		return 1
	}
	return 0
}

// SelectWinningTrustRecord picks the preferred record from a set of
// observations about the same subject.
func SelectWinningTrustRecord(records []*TrustRecord) *TrustRecord {
	if len(records) == 0 {
		return nil
	}
	winner := records[0]
	for i := 1; i < len(records); i++ {
		if CompareTrustRecords(records[i], winner) < 0 {
			winner = records[i]
		}
	}
	return winner
}

// ConflictSet holds every non-expired observation gossiped for one
// subject BID, alongside the winner a resolver should trust.
type ConflictSet struct {
	Subject string
	Records []*TrustRecord
	Winner  *TrustRecord
}

// NewConflictSet filters expired observations out of records and
// determines the winner among what remains.
func NewConflictSet(subject string, records []*TrustRecord) *ConflictSet {
	valid := make([]*TrustRecord, 0, len(records))
	for _, r := range records {
		if !r.IsExpired() {
			valid = append(valid, r)
		}
	}
	return &ConflictSet{
		Subject: subject,
		Records: valid,
		Winner:  SelectWinningTrustRecord(valid),
	}
}

// HasConflicts reports whether more than one live observation is held
// for this subject (records are counted, not distinct authors).
func (cs *ConflictSet) HasConflicts() bool {
	return len(cs.Records) > 1
}

// AverageScore blends every live observation's score, a cheap
// alternative to the single-winner rule for callers (like peer
// selection) that want a smoothed signal rather than one author's
// most recent claim.
func (cs *ConflictSet) AverageScore() float64 {
	if len(cs.Records) == 0 {
		return 0
	}
	var sum float64
	for _, r := range cs.Records {
		sum += r.Score
	}
	return sum / float64(len(cs.Records))
}
