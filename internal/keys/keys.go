// Package keys maps logical cache keys to their namespaced physical form.
package keys

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Namespace prepends a fixed prefix to every key it touches.
// The zero value has an empty prefix and is a pass-through.
type Namespace struct {
	prefix string
	glob   string // prefix with glob metacharacters escaped
}

func New(prefix string) Namespace {
	return Namespace{prefix: prefix, glob: EscapeGlob(prefix)}
}

func (n Namespace) Prefix() string { return n.prefix }

// Physical returns prefix + logical.
func (n Namespace) Physical(logical string) string { return n.prefix + logical }

// Logical strips the prefix when present at position 0; anything else is
// returned unchanged.
func (n Namespace) Logical(physical string) string {
	if n.prefix != "" && strings.HasPrefix(physical, n.prefix) {
		return physical[len(n.prefix):]
	}
	return physical
}

// LogicalAll maps Logical over physical in place and returns it.
func (n Namespace) LogicalAll(physical []string) []string {
	for i, k := range physical {
		physical[i] = n.Logical(k)
	}
	return physical
}

// Pattern anchors a caller glob under the prefix. The prefix part is escaped so
// a prefix such as "app*" cannot match another tenant's keys; the caller part
// keeps its glob meaning.
func (n Namespace) Pattern(glob string) string { return n.glob + glob }

// All is the pattern matching every key of this namespace.
func (n Namespace) All() string { return n.glob + "*" }

// EscapeGlob backslash-escapes the Redis glob metacharacters * ? [ ] \.
func EscapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Hash returns "<prefix>:<16 hex chars>" derived from parts, e.g. a page key
// from a request URI. Parts are joined with a NUL so ("ab","c") != ("a","bc").
func Hash(prefix string, parts ...string) string {
	d := xxhash.New()
	for i, p := range parts {
		if i > 0 {
			_, _ = d.Write([]byte{0})
		}
		_, _ = d.WriteString(p)
	}
	sum := strconv.FormatUint(d.Sum64(), 16)
	if pad := 16 - len(sum); pad > 0 {
		sum = strings.Repeat("0", pad) + sum
	}
	return prefix + ":" + sum
}
