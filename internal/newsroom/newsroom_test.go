package newsroom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases host and drops fragment",
			input:    "https://Example.COM/post-1#comments",
			expected: "https://example.com/post-1",
		},
		{
			name:     "strips tracking params and sorts the rest",
			input:    "https://example.com/post?utm_source=rss&b=2&a=1",
			expected: "https://example.com/post?a=1&b=2",
		},
		{
			name:     "trailing slash",
			input:    "https://example.com/post/",
			expected: "https://example.com/post",
		},
		{
			name:     "not a url",
			input:    "  Some-GUID ",
			expected: "some-guid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeURL(tt.input))
		})
	}
}

func TestIdempotencyKey(t *testing.T) {
	a := IdempotencyKey("https://example.com/post-1?utm_medium=feed")
	b := IdempotencyKey("https://EXAMPLE.com/post-1/")
	c := IdempotencyKey("https://example.com/post-2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "openai releases a model", NormalizeTitle("  OpenAI   releases\na Model "))
}

func TestReportAdd(t *testing.T) {
	var r Report
	r.Add(ItemOutcome{Outcome: OutcomeStored})
	r.Add(ItemOutcome{Outcome: OutcomeFlagged})
	r.Add(ItemOutcome{Outcome: OutcomeDuplicate})
	r.Add(ItemOutcome{Outcome: OutcomeLowRelevance})
	r.Add(ItemOutcome{Outcome: OutcomeError})

	assert.Equal(t, 5, r.Processed)
	assert.Equal(t, 2, r.Stored)
	assert.Equal(t, 1, r.Flagged)
	assert.Equal(t, 1, r.Duplicates)
	assert.Equal(t, 1, r.LowRelevance)
	assert.Equal(t, 1, r.Errors)
	assert.Len(t, r.Outcomes, 5)
}

func TestStringListScan(t *testing.T) {
	var l StringList
	require.NoError(t, l.Scan(`["a","b"]`))
	assert.Equal(t, StringList{"a", "b"}, l)

	require.NoError(t, l.Scan([]byte(`[]`)))
	assert.Empty(t, l)

	v, err := StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}
