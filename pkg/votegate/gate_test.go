package votegate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Mindburn-Labs/agora/pkg/contracts"
)

var now = time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

func candidate(user, proposal string, ts time.Time) contracts.Vote {
	return contracts.Vote{UserID: user, ProposalID: proposal, Timestamp: ts}
}

func TestValidate_Admits(t *testing.T) {
	v := Validate(candidate("u1", "p1", now), nil, now)
	assert.Equal(t, Verdict{Valid: true, Reason: ReasonNone}, v)
}

func TestValidate_RuleOrder(t *testing.T) {
	tests := []struct {
		name string
		vote contracts.Vote
		want Reason
	}{
		{"missing user wins over everything", candidate("", "", time.Time{}), ReasonMissingUserID},
		{"missing proposal", candidate("u1", "", time.Time{}), ReasonMissingProposalID},
		{"zero timestamp", candidate("u1", "p1", time.Time{}), ReasonInvalidTimestamp},
		{"future timestamp", candidate("u1", "p1", now.Add(time.Hour)), ReasonInvalidTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(tt.vote, nil, now)
			assert.False(t, v.Valid)
			assert.Equal(t, tt.want, v.Reason)
		})
	}
}

func TestValidate_TimestampEqualToNowIsAccepted(t *testing.T) {
	assert.True(t, Validate(candidate("u1", "p1", now), nil, now).Valid)
	assert.True(t, Validate(candidate("u1", "p1", now.Add(-time.Minute)), nil, now).Valid)
}

func TestValidate_FutureByOneHour(t *testing.T) {
	v := Validate(candidate("u1", "p1", now.Add(3600000*time.Millisecond)), nil, now)
	assert.Equal(t, Verdict{Valid: false, Reason: "Invalid timestamp"}, v)
}

func TestValidate_SuspiciousPattern(t *testing.T) {
	history := []contracts.Vote{
		candidate("u1", "p1", now.Add(-2*time.Minute)),
		candidate("u1", "p2", now.Add(-time.Minute)),
	}

	v := Validate(candidate("u1", "p3", now), history, now)
	assert.Equal(t, Verdict{Valid: false, Reason: "Suspicious voting pattern detected"}, v)

	other := Validate(candidate("u2", "p3", now), history, now)
	assert.True(t, other.Valid)
}

func TestValidate_OnePriorVoteIsFine(t *testing.T) {
	history := []contracts.Vote{candidate("u1", "p1", now.Add(-time.Minute))}
	assert.True(t, Validate(candidate("u1", "p2", now), history, now).Valid)
}

func TestPriorVotes(t *testing.T) {
	history := []contracts.Vote{
		{UserID: "a"}, {UserID: "b"}, {UserID: "a"},
	}
	assert.Equal(t, 2, PriorVotes("a", history))
	assert.Equal(t, 0, PriorVotes("z", history))
}
