// Package pluginuri parses and renders references of the form
// "[registry/]name[:version]", the addressing scheme clients use to ask the
// registry for a specific plugin build.
package pluginuri

import (
	"strings"
)

// DefaultRegistry is the process-wide default registry used when a
// reference does not name one explicitly.
const DefaultRegistry = "https://registry.memflow.io"

// DefaultVersion is substituted when a reference does not name a version.
const DefaultVersion = "latest"

// URI is a parsed "[registry/]name[:version]" reference.
//
// Registry is stored normalized (with "https://" prepended when it carries
// no scheme) and Version exactly as supplied, when present; an empty field
// means the value was defaulted, and the defaults are applied on read
// (Registry(), Version()) rather than at parse time, so String() can tell a
// defaulted field apart from one the caller wrote out explicitly and omit
// only the defaulted one, which is what makes the format idempotent under
// reparse (spec.md §4.5 invariant 4).
type URI struct {
	registry string
	name     string
	version  string
}

// Registry returns the normalized registry URL, defaulting to DefaultRegistry.
func (u URI) Registry() string {
	if u.registry == "" {
		return DefaultRegistry
	}
	return u.registry
}

// Name returns the plugin name.
func (u URI) Name() string { return u.name }

// Version returns the requested version, defaulting to DefaultVersion.
func (u URI) Version() string {
	if u.version == "" {
		return DefaultVersion
	}
	return u.version
}

// HasRegistry reports whether the reference named a registry explicitly.
func (u URI) HasRegistry() bool { return u.registry != "" }

// HasVersion reports whether the reference named a version explicitly.
func (u URI) HasVersion() bool { return u.version != "" }

// Parse parses a "[registry[/path...]/]name[:version]" reference.
//
// The string is split on '/'; the last segment is the image token and
// everything before it is the registry path. A registry path containing
// further '/'s is accepted verbatim — spec.md documents this as deliberately
// lenient. The image token is split on the first ':'; everything after it,
// including further colons, becomes the version.
func Parse(s string) URI {
	segments := strings.Split(s, "/")
	image := segments[len(segments)-1]
	registry := strings.Join(segments[:len(segments)-1], "/")

	name := image
	version := ""
	if idx := strings.IndexByte(image, ':'); idx >= 0 {
		name = image[:idx]
		version = image[idx+1:]
	}

	if registry != "" && !strings.HasPrefix(registry, "http://") && !strings.HasPrefix(registry, "https://") {
		registry = "https://" + registry
	}

	return URI{registry: registry, name: name, version: version}
}

// String renders the reference. The default registry and default version
// are only ever emitted when the original input named them explicitly;
// otherwise the field is simply omitted, which is what keeps
// Parse(u.String()) == u (spec.md §4.5 invariant 4: parsing the rendered
// form of an already-parsed URI reproduces the same URI).
func (u URI) String() string {
	var b strings.Builder
	if u.registry != "" {
		b.WriteString(u.registry)
		b.WriteByte('/')
	}
	b.WriteString(u.name)
	if u.version != "" {
		b.WriteByte(':')
		b.WriteString(u.version)
	}
	return b.String()
}
