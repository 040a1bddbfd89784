// Package manifest groups file fingerprints into named layers, computes one
// deterministic hash per layer, and aggregates layer hashes into a versioned
// master fingerprint. A manifest is immutable once computed; a new run
// produces a new manifest, never a mutation.
package manifest

import (
	"fmt"
	"sort"
	"strings"

	"daugherty.co/certify/digest"
	"daugherty.co/certify/fingerprint"
	"daugherty.co/certify/normalize"
)

// AlgorithmVersion tags the layer hashing and aggregation rules together with
// the normalization rules they depend on. Fingerprints computed under
// different versions are never comparable.
const AlgorithmVersion = "dgy-fp-1+" + normalize.Version

// MissingFile records a configured, non-critical file absent from the input
// set. Missing files weaken coverage and are reported, but do not halt the
// build.
type MissingFile struct {
	Layer string
	Path  string
}

// MissingCriticalFileError halts the manifest build: a file marked critical
// for a layer is absent from the input set.
type MissingCriticalFileError struct {
	Layer string
	Path  string
}

func (e *MissingCriticalFileError) Error() string {
	return fmt.Sprintf("layer %q: critical file %q is missing", e.Layer, e.Path)
}

// Manifest maps each configured layer to its hash, together with the full
// fingerprint set it was built from.
type Manifest struct {
	AlgorithmVersion string
	Layers           map[string]string
	Files            []fingerprint.FileFingerprint
	Missing          []MissingFile
}

// Build computes a manifest covering exactly the configured layers.
//
// Layer members are sorted by canonical path, never by discovery order; the
// layer hash covers the ordered member fingerprints including each file's
// mode, so a raw-fallback fingerprint is distinguishable from a semantic one.
func Build(cfg *Config, fps []fingerprint.FileFingerprint) (*Manifest, error) {
	byPath := make(map[string]fingerprint.FileFingerprint, len(fps))
	for _, fp := range fps {
		if _, dup := byPath[fp.Path]; dup {
			return nil, fmt.Errorf("manifest: duplicate fingerprint for %q", fp.Path)
		}
		byPath[fp.Path] = fp
	}

	m := &Manifest{
		AlgorithmVersion: AlgorithmVersion,
		Layers:           make(map[string]string, len(cfg.Layers)),
	}
	covered := map[string]bool{}

	for _, layer := range cfg.Layers {
		entries := append([]FileEntry(nil), layer.Files...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

		var sb strings.Builder
		for _, e := range entries {
			fp, ok := byPath[e.Path]
			if !ok {
				if e.Critical {
					return nil, &MissingCriticalFileError{Layer: layer.Name, Path: e.Path}
				}
				m.Missing = append(m.Missing, MissingFile{Layer: layer.Name, Path: e.Path})
				continue
			}
			sb.WriteString(fp.Path)
			sb.WriteByte(0)
			sb.WriteString(fp.Hash)
			sb.WriteByte(0)
			sb.WriteString(string(fp.Mode))
			sb.WriteString("\n")
			if !covered[fp.Path] {
				covered[fp.Path] = true
				m.Files = append(m.Files, fp)
			}
		}
		m.Layers[layer.Name] = digest.SumCID([]byte(sb.String()))
	}

	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].Path < m.Files[j].Path })
	sort.Slice(m.Missing, func(i, j int) bool {
		if m.Missing[i].Layer == m.Missing[j].Layer {
			return m.Missing[i].Path < m.Missing[j].Path
		}
		return m.Missing[i].Layer < m.Missing[j].Layer
	})
	return m, nil
}

// FallbackPaths returns the paths fingerprinted in RAW_FALLBACK mode, sorted.
func (m *Manifest) FallbackPaths() []string {
	var out []string
	for _, fp := range m.Files {
		if fp.Mode == fingerprint.ModeRawFallback {
			out = append(out, fp.Path)
		}
	}
	return out
}
