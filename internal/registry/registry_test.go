package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/newsroom/internal/newsroom"
)

func TestDefault(t *testing.T) {
	r := Default()
	srcs := r.Sources()
	require.NotEmpty(t, srcs)

	// Ordered by priority
	for i := 1; i < len(srcs); i++ {
		assert.LessOrEqual(t, srcs[i-1].Priority.Rank(), srcs[i].Priority.Rank())
	}

	// Handing out copies
	srcs[0].Name = "changed"
	assert.NotEqual(t, "changed", r.Sources()[0].Name)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	tomlPath := filepath.Join(dir, "feeds.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`
[[feeds]]
name = "Low"
url = "https://low.example.com/rss"
priority = "low"

[[feeds]]
name = "High"
url = "https://high.example.com/rss"
category = "Policy"
priority = "high"
`), 0o600))

	yamlPath := filepath.Join(dir, "feeds.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
feeds:
  - name: Low
    url: https://low.example.com/rss
    priority: low
  - name: High
    url: https://high.example.com/rss
    category: Policy
    priority: high
`), 0o600))

	for _, path := range []string{tomlPath, yamlPath} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			r, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, []newsroom.FeedSource{
				{Name: "High", URL: "https://high.example.com/rss", Category: "Policy", Priority: newsroom.PriorityHigh},
				{Name: "Low", URL: "https://low.example.com/rss", Category: "General", Priority: newsroom.PriorityLow},
			}, r.Sources())
		})
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		sources []newsroom.FeedSource
	}{
		{
			name:    "missing name",
			sources: []newsroom.FeedSource{{URL: "https://example.com/rss"}},
		},
		{
			name:    "relative url",
			sources: []newsroom.FeedSource{{Name: "a", URL: "/rss"}},
		},
		{
			name:    "bad priority",
			sources: []newsroom.FeedSource{{Name: "a", URL: "https://example.com/rss", Priority: "urgent"}},
		},
		{
			name: "duplicate name",
			sources: []newsroom.FeedSource{
				{Name: "a", URL: "https://example.com/rss"},
				{Name: "a", URL: "https://example.com/atom"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.sources)
			assert.Error(t, err)
		})
	}
}

func TestLoadUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
