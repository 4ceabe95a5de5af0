// Package scope parses DCP scope strings into bare credential-type names
// and computes the effective scope of a presentation query.
package scope

import "strings"

// Permission verbs that may terminate a namespaced scope string.
const (
	ActionRead  = "read"
	ActionWrite = "write"
	ActionAll   = "all"
)

func isAction(s string) bool {
	switch s {
	case ActionRead, ActionWrite, ActionAll, "*":
		return true
	}
	return false
}

// Parse extracts the credential-type name from a scope string.
//
// A namespaced scope has the shape "prefix:Type[:action]": everything before
// the first colon is the namespace discriminator, an optional trailing
// segment is a permission verb. The type itself may contain colons, so the
// trailing segment is only stripped when it is a recognized permission verb.
// A string without a colon is used verbatim.
func Parse(s string) string {
	first := strings.Index(s, ":")
	if first < 0 {
		return s
	}

	rest := s[first+1:]
	if rest == "" {
		return s
	}

	if last := strings.LastIndex(rest, ":"); last >= 0 && isAction(rest[last+1:]) {
		return rest[:last]
	}

	return rest
}

// ParseAll parses each scope string, dropping blanks and duplicates while
// preserving first-seen order.
func ParseAll(scopes []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(scopes))

	for _, s := range scopes {
		if s == "" {
			continue
		}
		typ := Parse(s)
		if _, ok := seen[typ]; ok {
			continue
		}
		seen[typ] = struct{}{}
		out = append(out, typ)
	}

	return out
}

// Intersect computes the effective credential-type set from the types a
// token authorizes and the types a query requests. An empty set means
// unrestricted on that side.
//
//	both empty               -> nil, unrestricted=true (fetch everything)
//	authorized empty         -> requested
//	requested empty          -> authorized
//	both non-empty           -> set intersection, in requested order; an
//	                            empty result means nothing may be fetched
func Intersect(authorized, requested []string) (effective []string, unrestricted bool) {
	if len(authorized) == 0 && len(requested) == 0 {
		return nil, true
	}
	if len(authorized) == 0 {
		return requested, false
	}
	if len(requested) == 0 {
		return authorized, false
	}

	allowed := make(map[string]struct{}, len(authorized))
	for _, a := range authorized {
		allowed[a] = struct{}{}
	}

	effective = make([]string, 0, len(requested))
	for _, r := range requested {
		if _, ok := allowed[r]; ok {
			effective = append(effective, r)
		}
	}

	return effective, false
}
