package cachepolicy

import "strings"

// Directives provides access to the individual directives of a
// Cache-Control header value.
type Directives struct {
	m map[string]string
}

func (d Directives) Get(directive string) (string, bool) {
	val, ok := d.m[directive]
	return val, ok
}

// Parse splits a Cache-Control header value into its directives.
func Parse(header string) Directives {
	m := make(map[string]string)
	for _, directive := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(directive), "=", 2)
		var val string
		if len(parts) > 1 {
			val = parts[1]
		}
		m[parts[0]] = val
	}
	return Directives{m}
}
