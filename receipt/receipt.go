// Package receipt implements the public certification receipt: a canonical
// text document combining an engine's validation outcome matrix with its
// master source fingerprint, self-describing via a content hash.
//
// The schema is an explicit whitelist. Raw parameter values, energy results,
// timing data, and source code content cannot be expressed in it; keeping
// proprietary internals out of the public record is enforced by the type, not
// by convention.
package receipt

import (
	"time"

	"daugherty.co/certify/manifest"
)

// Receipt is an immutable certification receipt. ContentHash covers every
// other public field via the canonical serialization and is never part of its
// own hash input.
type Receipt struct {
	EngineName    string
	EngineVersion string

	// Validation maps problem class (e.g. "sat", "ising") to pass/fail.
	Validation map[string]bool

	Fingerprint manifest.MasterFingerprint

	Timestamp time.Time // UTC

	ContentHash string

	// Optional signature fields, populated when Generate is given a key.
	IssuerKey    string
	SignatureAlg string
	HashAlg      string
	Signature    string
}

// Passed reports whether every problem class in the validation matrix passed.
// An empty matrix does not count as passing.
func (r *Receipt) Passed() bool {
	if len(r.Validation) == 0 {
		return false
	}
	for _, ok := range r.Validation {
		if !ok {
			return false
		}
	}
	return true
}

// Record is the exported JSON form of a receipt, the shape published to
// downstream consumers.
type Record struct {
	Engine struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"engine"`
	Validation map[string]bool `json:"validation"`
	Integrity  struct {
		MasterFingerprint string `json:"master_fingerprint"`
		AlgorithmVersion  string `json:"algorithm_version"`
	} `json:"integrity"`
	ContentHash string `json:"content_hash"`
	Timestamp   string `json:"timestamp"`
}

// Record exports the receipt's public record.
func (r *Receipt) Record() Record {
	var rec Record
	rec.Engine.Name = r.EngineName
	rec.Engine.Version = r.EngineVersion
	rec.Validation = make(map[string]bool, len(r.Validation))
	for k, v := range r.Validation {
		rec.Validation[k] = v
	}
	rec.Integrity.MasterFingerprint = r.Fingerprint.Aggregate
	rec.Integrity.AlgorithmVersion = r.Fingerprint.AlgorithmVersion
	rec.ContentHash = r.ContentHash
	rec.Timestamp = r.Timestamp.UTC().Format(time.RFC3339)
	return rec
}
