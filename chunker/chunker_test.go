package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentences(n int) string {
	var b strings.Builder
	for i := range n {
		fmt.Fprintf(&b, "Sentence number %04d is here. ", i)
	}
	return strings.TrimSpace(b.String())
}

func smallConfig() *Config {
	return &Config{
		ChunkTokens:    50, // 200 chars
		OverlapTokens:  10, // 40 chars
		CharsPerToken:  4,
		MinChunkChars:  20,
		BreakThreshold: 0.7,
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero chunk size", mutate: func(c *Config) { c.ChunkTokens = 0 }},
		{name: "negative overlap", mutate: func(c *Config) { c.OverlapTokens = -1 }},
		{name: "overlap equals size", mutate: func(c *Config) { c.OverlapTokens = c.ChunkTokens }},
		{name: "overlap exceeds size", mutate: func(c *Config) { c.OverlapTokens = c.ChunkTokens + 1 }},
		{name: "zero chars per token", mutate: func(c *Config) { c.CharsPerToken = 0 }},
		{name: "threshold above one", mutate: func(c *Config) { c.BreakThreshold = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

			_, err := New(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, 4000, c.config.ChunkChars())
	assert.Equal(t, 800, c.config.OverlapChars())
}

func TestChunk_SizeBound(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	frags := c.Collect(sentences(1000), 1)
	require.Greater(t, len(frags), 1)

	for _, f := range frags {
		assert.LessOrEqual(t, utf8.RuneCountInString(f.Text), 4000)
		assert.LessOrEqual(t, f.End-f.Start, 4000)
	}
}

func TestChunk_NoShortFragments(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	text := sentences(500) + "\n\nTail."
	for _, f := range c.Collect(text, 1) {
		assert.GreaterOrEqual(t, utf8.RuneCountInString(strings.TrimSpace(f.Text)), 100)
	}
}

func TestChunk_Overlap(t *testing.T) {
	c, err := New(smallConfig())
	require.NoError(t, err)

	text := sentences(40)
	runes := []rune(text)
	frags := c.Collect(text, 1)
	require.Greater(t, len(frags), 2)

	for i := 1; i < len(frags); i++ {
		prev, cur := frags[i-1], frags[i]
		assert.Equal(t, prev.End-40, cur.Start, "fragment %d should start one overlap before the previous end", i)

		shared := strings.TrimSpace(string(runes[cur.Start:prev.End]))
		assert.Contains(t, prev.Text, shared)
		assert.True(t, strings.HasPrefix(cur.Text, shared), "fragment %d should begin with the shared span", i)
	}
}

func TestChunk_PrefersSentenceBoundary(t *testing.T) {
	c, err := New(smallConfig())
	require.NoError(t, err)

	frags := c.Collect(sentences(40), 1)
	for _, f := range frags[:len(frags)-1] {
		assert.True(t, strings.HasSuffix(f.Text, "."), "expected %q to end on a sentence", f.Text)
		assert.GreaterOrEqual(t, f.End-f.Start, 140)
	}
}

func TestChunk_ParagraphBoundary(t *testing.T) {
	c, err := New(smallConfig())
	require.NoError(t, err)

	text := strings.Repeat("w", 170) + "\n\n" + strings.Repeat("z", 200)
	frags := c.Collect(text, 1)
	require.NotEmpty(t, frags)
	assert.Equal(t, strings.Repeat("w", 170), frags[0].Text)
	assert.Equal(t, 171, frags[0].End)
}

func TestChunk_EarlyBreakIgnored(t *testing.T) {
	c, err := New(smallConfig())
	require.NoError(t, err)

	// the only sentence break sits well before 70% of the window
	text := "Short. " + strings.Repeat("x", 400)
	frags := c.Collect(text, 1)
	require.NotEmpty(t, frags)
	assert.Equal(t, 200, frags[0].End)
}

func TestChunk_NoBreaksTerminates(t *testing.T) {
	c, err := New(smallConfig())
	require.NoError(t, err)

	frags := c.Collect(strings.Repeat("x", 1000), 1)
	starts := make([]int, 0, len(frags))
	for _, f := range frags {
		starts = append(starts, f.Start)
	}
	assert.Equal(t, []int{0, 160, 320, 480, 640, 800}, starts)
	assert.Equal(t, 1000, frags[len(frags)-1].End)
}

func TestChunk_DiscardsShortTail(t *testing.T) {
	cfg := smallConfig()
	cfg.MinChunkChars = 150
	c, err := New(cfg)
	require.NoError(t, err)

	frags := c.Collect(strings.Repeat("x", 300), 1)
	require.Len(t, frags, 1)
	assert.Equal(t, 0, frags[0].Start)
	assert.Equal(t, 200, frags[0].End)
}

func TestChunk_ShortText(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	assert.Empty(t, c.Collect("", 1))
	assert.Empty(t, c.Collect("Too short to keep.", 1))
	assert.Empty(t, c.Collect("   \n\n   ", 1))

	text := "  " + strings.Repeat("a", 150) + "  "
	frags := c.Collect(text, 7)
	require.Len(t, frags, 1)
	assert.Equal(t, strings.Repeat("a", 150), frags[0].Text)
	assert.Equal(t, 7, frags[0].PageNumber)
	assert.Equal(t, 154/4, frags[0].TokenCount)
}

func TestChunk_CountsRunes(t *testing.T) {
	c, err := New(smallConfig())
	require.NoError(t, err)

	text := strings.Repeat("§", 450)
	for _, f := range c.Collect(text, 1) {
		assert.LessOrEqual(t, utf8.RuneCountInString(f.Text), 200)
		assert.True(t, utf8.ValidString(f.Text))
	}
}

func TestChunk_StopsEarly(t *testing.T) {
	c, err := New(smallConfig())
	require.NoError(t, err)

	count := 0
	for range c.Chunk(sentences(100), 1) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestChunk_Deterministic(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	text := sentences(400)
	assert.Equal(t, c.Collect(text, 3), c.Collect(text, 3))
}
