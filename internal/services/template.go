package services

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ResolvedQuery is a catalog query with every placeholder substituted
type ResolvedQuery string

// Bindings are the runtime variables available to query templates
type Bindings struct {
	AquariumID string
	Hours      int
}

// ErrUnresolvedPlaceholder is matched by every TemplateError
var ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")

// TemplateError reports placeholders left in a query after substitution
type TemplateError struct {
	Template     string
	Placeholders []string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("%v: %s", ErrUnresolvedPlaceholder, strings.Join(e.Placeholders, ", "))
}

func (e *TemplateError) Is(target error) bool {
	return target == ErrUnresolvedPlaceholder
}

// placeholderPattern also matches an opening "${" whose closing brace is
// missing, up to the next space
var placeholderPattern = regexp.MustCompile(`\$\{[^}\s]*\}?`)

// Substitute replaces ${source} and ${hours} everywhere in template. The
// replacement is literal and case-sensitive; values are not escaped, so the
// aquarium id must already be one of the known aquariums.
func Substitute(template string, b Bindings) (ResolvedQuery, error) {
	r := strings.NewReplacer(
		"${source}", b.AquariumID,
		"${hours}", strconv.Itoa(b.Hours),
	)
	out := r.Replace(template)

	if left := placeholderPattern.FindAllString(out, -1); len(left) > 0 {
		return "", &TemplateError{Template: template, Placeholders: dedupe(left)}
	}
	return ResolvedQuery(out), nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
