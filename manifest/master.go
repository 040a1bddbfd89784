package manifest

import (
	"sort"
	"strings"

	"daugherty.co/certify/digest"
)

// MasterFingerprint is the single versioned hash summarizing all layers of a
// file set. The algorithm version is embedded in the aggregate hash input,
// not just stored alongside: fingerprints computed under different versions
// differ even if their layer hashes happened to collide in value space.
type MasterFingerprint struct {
	AlgorithmVersion string
	Layers           map[string]string
	Aggregate        string
}

// Master aggregates a manifest's layer hashes. Layer pairs are sorted by
// name, so the aggregate is independent of layer enumeration order.
func Master(m *Manifest) MasterFingerprint {
	names := make([]string, 0, len(m.Layers))
	for name := range m.Layers {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(m.AlgorithmVersion)
	sb.WriteString("\n")
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteString(" ")
		sb.WriteString(m.Layers[name])
		sb.WriteString("\n")
	}

	layers := make(map[string]string, len(m.Layers))
	for k, v := range m.Layers {
		layers[k] = v
	}
	return MasterFingerprint{
		AlgorithmVersion: m.AlgorithmVersion,
		Layers:           layers,
		Aggregate:        digest.SumCID([]byte(sb.String())),
	}
}

// Comparable reports whether two master fingerprints were computed under the
// same algorithm version. Aggregates from different versions must never be
// compared for equality.
func (f MasterFingerprint) Comparable(o MasterFingerprint) bool {
	return f.AlgorithmVersion == o.AlgorithmVersion
}

// Equal reports whether o certifies the same file set: comparable and with
// an identical aggregate.
func (f MasterFingerprint) Equal(o MasterFingerprint) bool {
	return f.Comparable(o) && f.Aggregate == o.Aggregate
}
