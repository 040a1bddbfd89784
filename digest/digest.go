// Package digest provides the content hashing primitive used across the
// certification pipeline: an IPFS-compatible CIDv1 with the "raw" multicodec
// and a sha2-256 multihash. File hashes, layer hashes, master fingerprints,
// receipt content hashes, and ledger keys are all CIDs of this form.
package digest

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// SumCID returns the CIDv1 (raw + sha2-256) string for data.
func SumCID(data []byte) string {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		// sha2-256 at full length never fails.
		return ""
	}
	return cid.NewCidV1(cid.Raw, sum).String()
}

// SumCIDRaw returns the CIDv1 (raw + sha2-256) for data.
func SumCIDRaw(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// Decode parses a CID string and reports whether it is a defined CID.
func Decode(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, err
	}
	return id, nil
}
