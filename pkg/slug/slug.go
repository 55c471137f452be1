package slug

import (
	"crypto/rand"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Option configures Make.
type Option func(*config)

type config struct {
	maxLength    int
	separator    string
	suffixLength int
}

// MaxLength truncates the slug to n runes. Zero means no limit.
func MaxLength(n int) Option {
	return func(c *config) {
		c.maxLength = n
	}
}

// Separator replaces the default "-".
func Separator(s string) Option {
	return func(c *config) {
		c.separator = s
	}
}

// WithSuffix appends a random lowercase alphanumeric suffix of the given
// length, shortening the slug to stay within MaxLength.
func WithSuffix(length int) Option {
	return func(c *config) {
		c.suffixLength = length
	}
}

// Fold strips combining marks after canonical decomposition, so "ção"
// becomes "cao". Characters without a decomposition are kept.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Make lowercases s, folds diacritics and replaces every run of other
// characters with the separator. Leading and trailing separators are
// dropped.
func Make(s string, opts ...Option) string {
	cfg := &config{separator: "-"}
	for _, opt := range opts {
		opt(cfg)
	}

	s = Fold(s)
	sepLen := len([]rune(cfg.separator))

	var b strings.Builder
	b.Grow(len(s))
	lastWasSep := true
	count := 0

	for _, r := range s {
		if cfg.maxLength > 0 && count >= cfg.maxLength {
			break
		}
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastWasSep = false
			count++
			continue
		}
		if lastWasSep {
			continue
		}
		if cfg.maxLength > 0 && count+sepLen > cfg.maxLength {
			break
		}
		b.WriteString(cfg.separator)
		lastWasSep = true
		count += sepLen
	}

	result := strings.TrimSuffix(b.String(), cfg.separator)
	if cfg.suffixLength <= 0 {
		return result
	}

	suffixLen := cfg.suffixLength
	if cfg.maxLength > 0 && suffixLen > cfg.maxLength {
		suffixLen = cfg.maxLength
	}
	suffix := randomSuffix(suffixLen)

	if cfg.maxLength > 0 {
		room := cfg.maxLength - sepLen - suffixLen
		if room <= 0 {
			return suffix
		}
		if r := []rune(result); len(r) > room {
			result = strings.TrimSuffix(string(r[:room]), cfg.separator)
		}
	}
	if result == "" {
		return suffix
	}
	return result + cfg.separator + suffix
}

func randomSuffix(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		for i := range b {
			b[i] = charset[i%len(charset)]
		}
		return string(b)
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}
