// Package httprouter implements the route table: pattern compilation
// ({name} -> named regex capture), linear first-match lookup, and
// path-parameter extraction.
//
// The route's Handler is deliberately stored as `any`: httprouter only
// knows about patterns, methods, and captures — the connection driver
// (internal/connio) owns the concrete handler signature and asserts it
// back out, so this
// package never imports request/response types and stays reusable on
// its own.
package httprouter

import (
	"fmt"
	"regexp"
	"strings"
)

// tokenPattern matches a single {name} path-parameter token.
var tokenPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Route is a single registered pattern.
type Route struct {
	Pattern        string
	AllowedMethods map[string]bool
	Handler        any

	re *regexp.Regexp
}

// Table is a route table: linear-scan, first-match-wins, in
// registration order. Registration order makes overlapping patterns
// resolve deterministically.
type Table struct {
	routes []*Route
}

// New returns an empty route table.
func New() *Table { return &Table{} }

// Register compiles pattern and adds it to the table. An empty methods
// set defaults to {"GET"}.
func (t *Table) Register(pattern string, methods []string, handler any) (*Route, error) {
	re, err := compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("httprouter: compiling pattern %q: %w", pattern, err)
	}
	allowed := make(map[string]bool, len(methods))
	for _, m := range methods {
		allowed[strings.ToUpper(m)] = true
	}
	if len(allowed) == 0 {
		allowed["GET"] = true
	}
	route := &Route{Pattern: pattern, AllowedMethods: allowed, Handler: handler, re: re}
	t.routes = append(t.routes, route)
	return route, nil
}

// compile turns a human pattern like "/foo/{id}/{name}" into an anchored
// regex where each {name} becomes a named capture matching one or more
// printable ASCII characters ([ -~]+).
func compile(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")

	last := 0
	for _, loc := range tokenPattern.FindAllStringSubmatchIndex(pattern, -1) {
		start, end := loc[0], loc[1]
		nameStart, nameEnd := loc[2], loc[3]
		b.WriteString(regexp.QuoteMeta(pattern[last:start]))
		name := pattern[nameStart:nameEnd]
		fmt.Fprintf(&b, "(?P<%s>[ -~]+)", name)
		last = end
	}
	b.WriteString(regexp.QuoteMeta(pattern[last:]))
	b.WriteString("$")

	return regexp.Compile(b.String())
}

// Match scans routes in registration order and returns the first whose
// pattern fully matches path, along with its extracted captures.
//
// If a matching route exists but does not allow method, Match still
// returns that route (found=true) with methodAllowed=false so the
// caller can distinguish "no such resource" (404) from "resource
// exists, wrong method" (405).
func (t *Table) Match(path, method string) (route *Route, params map[string]string, methodAllowed, found bool) {
	method = strings.ToUpper(method)
	for _, r := range t.routes {
		m := r.re.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		captured := make(map[string]string, len(m)-1)
		for i, name := range r.re.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			captured[name] = m[i]
		}
		return r, captured, r.AllowedMethods[method], true
	}
	return nil, nil, false, false
}
