// Package fingerprint hashes individual source files for the certification
// pipeline. A file is hashed over its canonical (normalized) representation
// when its kind has a registered normalizer; otherwise, or when the file fails
// to parse, it is hashed over raw bytes and tagged RAW_FALLBACK so the weaker
// guarantee stays visible downstream.
package fingerprint

import (
	"daugherty.co/certify/digest"
	"daugherty.co/certify/normalize"
)

// Mode records which representation a fingerprint hash covers.
type Mode string

const (
	ModeSemantic    Mode = "SEMANTIC"
	ModeRawFallback Mode = "RAW_FALLBACK"
)

// SourceFile is one input file to a fingerprinting run. It is immutable once
// read: a new run rereads files rather than mutating an existing set.
type SourceFile struct {
	Path     string // canonical, layer-independent identifier
	Content  []byte
	Kind     string // normalizer kind; unknown kinds take the raw path
	Layers   []string
	Critical bool
}

// FileFingerprint is the hash of one file.
//
// RawHash is always computed over the raw bytes, even for SEMANTIC
// fingerprints. It never contributes to layer hashes; it is advisory evidence
// allowing an auditor to cross-check a suspected normalizer collision.
type FileFingerprint struct {
	Path    string
	Hash    string
	RawHash string
	Mode    Mode
}

// File fingerprints a single source file. It is a pure function of the file
// content and the normalizer version: identical content always yields an
// identical fingerprint, independent of filesystem, OS, or execution order.
func File(sf SourceFile) FileFingerprint {
	raw := digest.SumCID(sf.Content)
	n, ok := normalize.ForKind(sf.Kind)
	if !ok {
		return FileFingerprint{Path: sf.Path, Hash: raw, RawHash: raw, Mode: ModeRawFallback}
	}
	canon, err := n.Normalize(sf.Content)
	if err != nil {
		return FileFingerprint{Path: sf.Path, Hash: raw, RawHash: raw, Mode: ModeRawFallback}
	}
	return FileFingerprint{Path: sf.Path, Hash: digest.SumCID(canon), RawHash: raw, Mode: ModeSemantic}
}
