package humastar

import (
	"fmt"
	"strings"
)

// Action is a state-dependent hypermedia action link.
// Response bodies implement the Actor interface to emit conditional
// RFC 8288 Link headers with method, title, and schema extension parameters.
//
// Example Link header output:
//
//	</api/v1/maps/42/commands/moveCamera>; rel="moveCamera"; method="POST"; title="Send moveCamera"
type Action struct {
	Rel    string // IANA rel or custom (e.g., "delete", "moveCamera")
	Href   string // target URL
	Method string // HTTP method: POST, PUT, DELETE, etc.
	Title  string // optional human-readable label
	Schema string // optional JSON Schema URL for the request body
}

// Actor is implemented by response bodies that provide state-dependent
// actions. Returning nil sends no action links, as for a closed resource.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as an RFC 8288 Link header value
// with method and title extension parameters.
func (a Action) LinkHeader() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%s>; rel="%s"`, a.Href, a.Rel)
	for _, p := range [][2]string{{"method", a.Method}, {"title", a.Title}, {"schema", a.Schema}} {
		if p[1] != "" {
			fmt.Fprintf(&b, `; %s="%s"`, p[0], p[1])
		}
	}
	return b.String()
}
