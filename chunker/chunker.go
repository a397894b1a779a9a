package chunker

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"
)

var (
	// ErrInvalidConfig indicates a chunker configuration failed validation.
	ErrInvalidConfig = errors.New("invalid chunker config")
)

// Config controls window sizing. Sizes are given in tokens and converted to
// characters with CharsPerToken.
type Config struct {
	ChunkTokens    int
	OverlapTokens  int
	CharsPerToken  int
	MinChunkChars  int
	BreakThreshold float64
}

// DefaultConfig returns 1000 token windows with 200 tokens of overlap.
func DefaultConfig() *Config {
	return &Config{
		ChunkTokens:    1000,
		OverlapTokens:  200,
		CharsPerToken:  4,
		MinChunkChars:  100,
		BreakThreshold: 0.7,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ChunkTokens <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkTokens)
	}
	if c.OverlapTokens < 0 {
		return fmt.Errorf("%w: overlap cannot be negative, got %d", ErrInvalidConfig, c.OverlapTokens)
	}
	if c.OverlapTokens >= c.ChunkTokens {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, c.OverlapTokens, c.ChunkTokens)
	}
	if c.CharsPerToken <= 0 {
		return fmt.Errorf("%w: chars per token must be positive, got %d", ErrInvalidConfig, c.CharsPerToken)
	}
	if c.MinChunkChars < 0 {
		return fmt.Errorf("%w: minimum chunk length cannot be negative", ErrInvalidConfig)
	}
	if c.BreakThreshold < 0 || c.BreakThreshold > 1 {
		return fmt.Errorf("%w: break threshold must be within [0, 1], got %v", ErrInvalidConfig, c.BreakThreshold)
	}
	return nil
}

// ChunkChars is the window width in characters.
func (c Config) ChunkChars() int {
	return c.ChunkTokens * c.CharsPerToken
}

// OverlapChars is the shared span between consecutive windows in characters.
func (c Config) OverlapChars() int {
	return c.OverlapTokens * c.CharsPerToken
}

// Fragment is one page-local chunk. Start and End are rune offsets of the
// window within the page text.
type Fragment struct {
	Text       string
	PageNumber int
	TokenCount int
	Start      int
	End        int
}

// Chunker produces fragments from page text. It holds no state between
// calls and is safe for concurrent use.
type Chunker struct {
	config Config
}

// New creates a Chunker. A nil config selects DefaultConfig.
func New(config *Config) (*Chunker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: *config}, nil
}

// Config returns a copy of the chunker's configuration.
func (c *Chunker) Config() Config {
	return c.config
}

// Chunk returns the fragments of one page's text in order. The sequence is
// lazy; stopping iteration early does no further work.
func (c *Chunker) Chunk(text string, page int) iter.Seq[Fragment] {
	return func(yield func(Fragment) bool) {
		runes := []rune(text)
		n := len(runes)
		size := c.config.ChunkChars()
		overlap := c.config.OverlapChars()
		threshold := float64(size) * c.config.BreakThreshold

		start := 0
		for start < n {
			end := min(start+size, n)
			window := runes[start:end]

			if end < n {
				if bp := lastBreak(window); bp >= 0 && float64(bp) >= threshold {
					window = window[:bp+1]
					end = start + bp + 1
				}
			}

			trimmed := strings.TrimSpace(string(window))
			if utf8.RuneCountInString(trimmed) >= c.config.MinChunkChars {
				frag := Fragment{
					Text:       trimmed,
					PageNumber: page,
					TokenCount: len(window) / c.config.CharsPerToken,
					Start:      start,
					End:        end,
				}
				if !yield(frag) {
					return
				}
			} else {
				// Too short to keep, continue from the end of the window
				// without stepping back into it.
				start = end
				continue
			}

			if end >= n {
				return
			}

			next := end - overlap
			if next <= start {
				next = end
			}
			start = next
		}
	}
}

// Collect returns all fragments of a page.
func (c *Chunker) Collect(text string, page int) []Fragment {
	var out []Fragment
	for frag := range c.Chunk(text, page) {
		out = append(out, frag)
	}
	return out
}

// lastBreak returns the rune index of the last ". " or "\n\n" in window, or -1.
func lastBreak(window []rune) int {
	for i := len(window) - 2; i >= 0; i-- {
		a, b := window[i], window[i+1]
		if (a == '.' && b == ' ') || (a == '\n' && b == '\n') {
			return i
		}
	}
	return -1
}
