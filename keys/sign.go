package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

// DigestFor hashes message under hashAlg: sha256, sha512, or sha3-256.
func DigestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

// EncodeSignature encodes raw signature bytes for embedding in a receipt.
func EncodeSignature(sig []byte) string {
	return base64.StdEncoding.EncodeToString(sig)
}

// DecodeSignature decodes a receipt signature. Padded encoding is preferred
// but raw encoding is accepted.
func DecodeSignature(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// SignEd25519SHA256 returns a base64 signature over sha256(message).
func SignEd25519SHA256(message []byte, privateKey ed25519.PrivateKey) string {
	digest := sha256.Sum256(message)
	sig := ed25519.Sign(privateKey, digest[:])
	return EncodeSignature(sig)
}

// SignDilithium3Digest returns a base64 dilithium3 signature over an
// already-computed digest.
func SignDilithium3Digest(digest []byte, privateKey *mode3.PrivateKey) (string, error) {
	if privateKey == nil {
		return "", fmt.Errorf("missing private key")
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(privateKey, digest, sig)
	return EncodeSignature(sig), nil
}

// SignDilithium3 returns a base64 dilithium3 signature over hash(message).
func SignDilithium3(message []byte, hashAlg string, privateKey *mode3.PrivateKey) (string, error) {
	digest, err := DigestFor(hashAlg, message)
	if err != nil {
		return "", err
	}
	return SignDilithium3Digest(digest, privateKey)
}

// GenerateDilithium3Keypair returns a new Dilithium3 keypair.
func GenerateDilithium3Keypair(rand io.Reader) (*mode3.PublicKey, *mode3.PrivateKey, error) {
	return mode3.GenerateKey(rand)
}

// IssuerKeyFromPublicKey encodes an Ed25519 public key into the issuer-key
// string embedded in signed receipts.
func IssuerKeyFromPublicKey(pub ed25519.PublicKey) (string, error) {
	if l := len(pub); l != ed25519.PublicKeySize {
		return "", fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	return "ed25519:" + base64.StdEncoding.EncodeToString(pub), nil
}

// IssuerKeyFromDilithium3 encodes a Dilithium3 public key into issuer-key form.
func IssuerKeyFromDilithium3(pub *mode3.PublicKey) (string, error) {
	if pub == nil {
		return "", fmt.Errorf("missing public key")
	}
	b, err := pub.MarshalBinary()
	if err != nil {
		return "", err
	}
	return "dilithium3:" + base64.StdEncoding.EncodeToString(b), nil
}

// ParseIssuerKey splits an issuer-key string into its algorithm and raw
// public key bytes. Supported encodings: ed25519:<base64>, dilithium3:<base64>.
func ParseIssuerKey(issuer string) (alg string, pub []byte, err error) {
	alg, enc, ok := strings.Cut(issuer, ":")
	if !ok {
		return "", nil, fmt.Errorf("invalid issuer key encoding")
	}
	pub, err = DecodeSignature(enc)
	if err != nil {
		return "", nil, fmt.Errorf("invalid issuer key base64: %w", err)
	}
	switch alg {
	case "ed25519":
		if len(pub) != ed25519.PublicKeySize {
			return "", nil, fmt.Errorf("invalid ed25519 public key length")
		}
	case "dilithium3":
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return "", nil, fmt.Errorf("invalid dilithium3 public key: %w", err)
		}
	default:
		return "", nil, fmt.Errorf("unsupported issuer key algorithm %q", alg)
	}
	return alg, pub, nil
}
