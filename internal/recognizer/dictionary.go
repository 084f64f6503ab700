package recognizer

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Charset maps model class indices to dictionary tokens.
type Charset struct {
	Tokens       []string
	TokenToIndex map[string]int
}

// NewCharset builds a charset from tokens. Duplicates keep their first index.
func NewCharset(tokens []string) (*Charset, error) {
	if len(tokens) == 0 {
		return nil, errors.New("dictionary is empty")
	}
	toIdx := make(map[string]int, len(tokens))
	for i, t := range tokens {
		if _, ok := toIdx[t]; !ok {
			toIdx[t] = i
		}
	}
	return &Charset{Tokens: tokens, TokenToIndex: toIdx}, nil
}

// LoadCharset reads a dictionary with one token per non-empty line. Lines are
// trimmed and a leading UTF-8 BOM is ignored.
func LoadCharset(path string) (*Charset, error) {
	if path == "" {
		return nil, errors.New("dictionary path cannot be empty")
	}
	f, err := os.Open(path) //nolint:gosec // dictionary path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	tokens := make([]string, 0, 512)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading dictionary: %w", err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("dictionary is empty: %s", path)
	}
	return NewCharset(tokens)
}

// Size returns the number of tokens.
func (c *Charset) Size() int { return len(c.Tokens) }

// LookupIndex returns the index of token, or -1.
func (c *Charset) LookupIndex(token string) int {
	if c == nil {
		return -1
	}
	if idx, ok := c.TokenToIndex[token]; ok {
		return idx
	}
	return -1
}

// LookupToken returns the token at index, or "".
func (c *Charset) LookupToken(index int) string {
	if c == nil || index < 0 || index >= len(c.Tokens) {
		return ""
	}
	return c.Tokens[index]
}

// Join concatenates the tokens for class indices, subtracting offset first.
// Unknown indices are skipped.
func (c *Charset) Join(indices []int, offset int) string {
	var b strings.Builder
	for _, idx := range indices {
		b.WriteString(c.LookupToken(idx - offset))
	}
	return b.String()
}
