// Package slug builds URL slugs for catalog records.
package slug

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// 試行回数の上限
const maxAttempts = 10000

var ErrExhausted = errors.New("slug: no free suffix")

var (
	reInvalid = regexp.MustCompile(`[^\w\s-]`)
	reDashes  = regexp.MustCompile(`[-\s]+`)
)

// ExistsFunc reports whether a slug is already taken.
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

// Slugify lowercases s, strips accents and anything outside [a-z0-9_-],
// and collapses whitespace and dash runs into a single dash.
func Slugify(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	//ASCII以外は捨てる
	folded = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, folded)

	folded = reInvalid.ReplaceAllString(strings.ToLower(folded), "")
	folded = reDashes.ReplaceAllString(folded, "-")
	return strings.Trim(folded, "-_")
}

// GenerateUnique returns base if it is free, otherwise base-1, base-2, ...
// until exists reports false.
func GenerateUnique(ctx context.Context, base string, exists ExistsFunc) (string, error) {
	candidate := base
	for n := 1; n <= maxAttempts; n++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return "", ErrExhausted
}
