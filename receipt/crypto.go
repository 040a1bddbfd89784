package receipt

import (
	"crypto/ed25519"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"daugherty.co/certify/keys"
)

// VerifySignature verifies the receipt's CRYPTO signature, if present.
//
// Returns (true, nil) if the receipt is signed and the signature verifies.
// Returns (false, nil) if the receipt carries no signature.
// Returns (false, err) for malformed, non-canonical, or invalid signatures.
func VerifySignature(data []byte) (bool, error) {
	r, err := Parse(data)
	if err != nil {
		return false, err
	}
	if r.Signature == "" {
		return false, nil
	}

	alg, pub, err := keys.ParseIssuerKey(r.IssuerKey)
	if err != nil {
		return false, wrapError(KindCrypto, "CERT-CRYPTO-011", "invalid Issuer-Key", err)
	}
	if alg != r.SignatureAlg {
		return false, newError(KindCrypto, "CERT-CRYPTO-012", "Issuer-Key alg does not match Signature-Alg")
	}

	sig, err := keys.DecodeSignature(r.Signature)
	if err != nil {
		return false, wrapError(KindCrypto, "CERT-CRYPTO-013", "invalid signature base64", err)
	}

	scope, err := signatureScope(data)
	if err != nil {
		return false, err
	}
	digest, err := keys.DigestFor(r.HashAlg, scope)
	if err != nil {
		return false, wrapError(KindCrypto, "CERT-CRYPTO-014", "unsupported Hash-Alg", err)
	}

	switch alg {
	case "ed25519":
		if len(sig) != ed25519.SignatureSize {
			return false, newError(KindCrypto, "CERT-CRYPTO-015", "invalid ed25519 signature length")
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), digest, sig) {
			return false, newError(KindCrypto, "CERT-CRYPTO-016", "signature invalid")
		}
		return true, nil
	case "dilithium3":
		if len(sig) != mode3.SignatureSize {
			return false, newError(KindCrypto, "CERT-CRYPTO-017", "invalid dilithium3 signature length")
		}
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return false, wrapError(KindCrypto, "CERT-CRYPTO-011", "invalid dilithium3 public key", err)
		}
		if !mode3.Verify(&pk, digest, sig) {
			return false, newError(KindCrypto, "CERT-CRYPTO-016", "signature invalid")
		}
		return true, nil
	default:
		return false, newError(KindCrypto, "CERT-CRYPTO-018", "unsupported Signature-Alg")
	}
}
