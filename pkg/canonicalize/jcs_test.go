package canonicalize

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCS_Sorting(t *testing.T) {
	input := map[string]any{
		"c": 3,
		"a": 1,
		"b": 2,
	}

	b, err := JCS(input)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(b))
}

func TestJCS_RecursiveSorting(t *testing.T) {
	input := map[string]any{
		"z": map[string]any{
			"y": "foo",
			"x": "bar",
		},
		"a": 1,
	}

	b, err := JCS(input)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"z":{"x":"bar","y":"foo"}}`, string(b))
}

func TestJCS_NoHTMLEscaping(t *testing.T) {
	input := map[string]string{
		"html": "<script>alert('xss')</script> &",
	}

	b, err := JCS(input)
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<script>alert('xss')</script> &"}`, string(b))
}

func TestJCS_StructTags(t *testing.T) {
	type record struct {
		Zeta  string    `json:"zeta"`
		Alpha int       `json:"alpha"`
		When  time.Time `json:"when"`
		Skip  string    `json:"-"`
	}
	when := time.Date(2024, 5, 1, 12, 0, 0, 42, time.UTC)

	b, err := JCS(record{Zeta: "z", Alpha: 7, When: when, Skip: "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":7,"when":"2024-05-01T12:00:00.000000042Z","zeta":"z"}`, string(b))
}

// A value that went through a JSON round trip must hash identically.
func TestCanonicalHash_StableAcrossRoundTrip(t *testing.T) {
	original := map[string]any{
		"type":    "VOTE",
		"details": map[string]any{"count": 3, "ratio": 0.5, "tags": []string{"a", "b"}},
	}
	h1, err := CanonicalHash(original)
	require.NoError(t, err)

	raw, err := json.Marshal(original)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	h2, err := CanonicalHash(decoded)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.True(t, strings.HasPrefix(h1, HashPrefix))
}

func TestCanonicalHash_DetectsChange(t *testing.T) {
	h1, err := CanonicalHash(map[string]any{"a": 1})
	require.NoError(t, err)
	h2, err := CanonicalHash(map[string]any{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestJCS_MarshalError(t *testing.T) {
	_, err := JCS(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}
