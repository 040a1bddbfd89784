// Package verify recomputes fingerprints and compares them against trusted
// state: a stored baseline manifest (local mode) or an anchored ledger record
// (ledger mode). Verification is strictly read-and-compare; it never mutates
// the baseline or the ledger.
package verify

import (
	"errors"
	"fmt"
	"sort"

	"daugherty.co/certify/fingerprint"
	"daugherty.co/certify/manifest"
)

// Status is the outcome of a local verification.
type Status string

const (
	StatusMatch           Status = "MATCH"
	StatusMismatch        Status = "MISMATCH"
	StatusMissingFile     Status = "MISSING_FILE"
	StatusFallbackPresent Status = "PARSE_FALLBACK_PRESENT"
)

// Mode selects how aggressively verification rejects weakened guarantees.
//
// Strict mode prefers explicit failure over silent acceptance: a raw-fallback
// fingerprint fails verification outright. Permissive mode surfaces it as a
// warning and leaves the acceptance decision to the consumer.
type Mode int

const (
	Permissive Mode = iota
	Strict
)

// ErrVersionMismatch means the baseline was computed under a different
// algorithm version; its hashes must never be compared against current ones.
var ErrVersionMismatch = errors.New("verify: baseline algorithm version differs from current")

// Result reports a local verification. A MISMATCH names every diverging
// layer, never just "different".
type Result struct {
	Status          Status
	Mode            Mode
	DivergingLayers []string
	MissingFiles    []string
	FallbackFiles   []string
	Warnings        []string

	Current  manifest.MasterFingerprint
	Baseline manifest.MasterFingerprint
}

// OK reports whether the verification certifies integrity under its mode.
func (r Result) OK() bool {
	switch r.Status {
	case StatusMatch:
		return true
	case StatusFallbackPresent:
		return r.Mode == Permissive
	default:
		return false
	}
}

// Local recomputes a manifest from current fingerprints and compares it
// layer-by-layer, then aggregate, against the baseline.
func Local(baseline *manifest.Manifest, cfg *manifest.Config, current []fingerprint.FileFingerprint, mode Mode) (Result, error) {
	if baseline.AlgorithmVersion != manifest.AlgorithmVersion {
		return Result{}, fmt.Errorf("%w: baseline %q, current %q",
			ErrVersionMismatch, baseline.AlgorithmVersion, manifest.AlgorithmVersion)
	}

	res := Result{Mode: mode, Baseline: manifest.Master(baseline)}

	cur, err := manifest.Build(cfg, current)
	if err != nil {
		var missing *manifest.MissingCriticalFileError
		if errors.As(err, &missing) {
			res.Status = StatusMissingFile
			res.MissingFiles = []string{missing.Path}
			res.Warnings = append(res.Warnings, missing.Error())
			return res, nil
		}
		return Result{}, err
	}
	res.Current = manifest.Master(cur)

	for _, mf := range cur.Missing {
		res.MissingFiles = append(res.MissingFiles, mf.Path)
		res.Warnings = append(res.Warnings, fmt.Sprintf("layer %q: non-critical file %q is missing", mf.Layer, mf.Path))
	}
	sort.Strings(res.MissingFiles)

	diverging := map[string]bool{}
	for name, hash := range baseline.Layers {
		if cur.Layers[name] != hash {
			diverging[name] = true
		}
	}
	for name, hash := range cur.Layers {
		if baseline.Layers[name] != hash {
			diverging[name] = true
		}
	}
	for name := range diverging {
		res.DivergingLayers = append(res.DivergingLayers, name)
	}
	sort.Strings(res.DivergingLayers)

	if len(res.DivergingLayers) > 0 || !res.Current.Equal(res.Baseline) {
		res.Status = StatusMismatch
		return res, nil
	}

	res.FallbackFiles = cur.FallbackPaths()
	if len(res.FallbackFiles) > 0 {
		res.Status = StatusFallbackPresent
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%d file(s) fingerprinted from raw bytes; semantic integrity guarantee weakened", len(res.FallbackFiles)))
		return res, nil
	}

	res.Status = StatusMatch
	return res, nil
}
