// Package normalize reduces source files to canonical, formatting-insensitive
// representations for fingerprinting.
//
// A Normalizer is a per-file-kind capability: structured kinds parse the
// content and strip non-semantic elements (whitespace, comments, docstrings),
// then serialize the rest in a deterministic order. Value-bearing literals,
// identifiers, and statement order are always preserved. Kinds without a
// registered Normalizer take the raw-hash fallback path in the fingerprinter.
package normalize

import "sort"

// Version tags the normalization rules. It participates in the fingerprint
// algorithm version: bumping any normalizer's behavior requires bumping this.
const Version = "dgy-norm-1"

// Normalizer reduces content of one file kind to canonical bytes.
//
// Normalize must be a pure function of content: identical content always
// yields identical output, independent of filesystem, OS, or call order.
type Normalizer interface {
	Kind() string
	Normalize(content []byte) ([]byte, error)
}

var registry = map[string]Normalizer{}

// Register installs a Normalizer for its kind, replacing any previous one.
func Register(n Normalizer) {
	registry[n.Kind()] = n
}

// ForKind returns the Normalizer registered for kind, if any.
func ForKind(kind string) (Normalizer, bool) {
	n, ok := registry[kind]
	return n, ok
}

// Kinds returns the registered kinds in sorted order.
func Kinds() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func init() {
	Register(goNormalizer{})
	Register(pythonNormalizer{})
	Register(jsonNormalizer{})
	Register(yamlNormalizer{})
}
