package receipt

import (
	"crypto/ed25519"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"daugherty.co/certify/digest"
	"daugherty.co/certify/keys"
	"daugherty.co/certify/manifest"
)

const (
	Preamble  = "-----BEGIN DAUGHERTY CERTIFICATION-----"
	Postamble = "-----END DAUGHERTY CERTIFICATION-----"
)

// RenderOptions controls optional receipt signing. If a private key is set,
// the CRYPTO section carries a signature computed over the receipt bytes
// excluding the Signature line. The content hash is always present and is
// the primary integrity guarantee; signatures attribute the receipt to an
// operator key on top of it.
type RenderOptions struct {
	IssuerKey     string // alg:base64 form, required when signing
	HashAlg       string // sha256 (default), sha512, or sha3-256
	PrivateKey    ed25519.PrivateKey
	Dilithium3Key *mode3.PrivateKey
}

// Generate builds an immutable certification receipt and its canonical bytes.
//
// The validation matrix comes from an external test harness; the master
// fingerprint from the manifest aggregator. Only whitelisted fields can reach
// the output.
func Generate(engineName, engineVersion string, validation map[string]bool, fp manifest.MasterFingerprint, ts time.Time, opts RenderOptions) (*Receipt, []byte, error) {
	if engineName == "" || engineVersion == "" {
		return nil, nil, newError(KindValidation, "CERT-VAL-001", "engine name and version are required")
	}
	if fp.Aggregate == "" || fp.AlgorithmVersion == "" {
		return nil, nil, newError(KindValidation, "CERT-VAL-002", "master fingerprint is required")
	}
	if ts.IsZero() {
		return nil, nil, newError(KindValidation, "CERT-VAL-003", "timestamp is required")
	}
	for class := range validation {
		if err := checkToken(class); err != nil {
			return nil, nil, wrapError(KindValidation, "CERT-VAL-004", "invalid problem class", err)
		}
	}

	r := &Receipt{
		EngineName:    engineName,
		EngineVersion: engineVersion,
		Validation:    make(map[string]bool, len(validation)),
		Fingerprint:   fp,
		Timestamp:     ts.UTC().Truncate(time.Second),
		ContentHash:   "0",
	}
	for k, v := range validation {
		r.Validation[k] = v
	}

	signing := opts.PrivateKey != nil || opts.Dilithium3Key != nil
	if signing {
		if opts.PrivateKey != nil && opts.Dilithium3Key != nil {
			return nil, nil, newError(KindCrypto, "CERT-CRYPTO-001", "multiple signing keys provided")
		}
		if opts.IssuerKey == "" {
			return nil, nil, newError(KindCrypto, "CERT-CRYPTO-002", "issuer key is required when signing")
		}
		r.IssuerKey = opts.IssuerKey
		r.HashAlg = opts.HashAlg
		if r.HashAlg == "" {
			r.HashAlg = "sha256"
		}
		if opts.PrivateKey != nil {
			r.SignatureAlg = "ed25519"
		} else {
			r.SignatureAlg = "dilithium3"
		}
		r.Signature = "0"
	}

	doc, err := renderDoc(r)
	if err != nil {
		return nil, nil, err
	}

	scope, err := contentHashScope(doc)
	if err != nil {
		return nil, nil, err
	}
	r.ContentHash = digest.SumCID(scope)
	doc = []byte(strings.Replace(string(doc), "Content-Hash: 0\n", "Content-Hash: "+r.ContentHash+"\n", 1))

	if signing {
		sigScope, err := signatureScope(doc)
		if err != nil {
			return nil, nil, err
		}
		msg, err := keys.DigestFor(r.HashAlg, sigScope)
		if err != nil {
			return nil, nil, wrapError(KindCrypto, "CERT-CRYPTO-003", "unsupported hash algorithm", err)
		}
		var sig string
		if opts.PrivateKey != nil {
			sig = keys.EncodeSignature(ed25519.Sign(opts.PrivateKey, msg))
		} else {
			sig, err = keys.SignDilithium3Digest(msg, opts.Dilithium3Key)
			if err != nil {
				return nil, nil, wrapError(KindCrypto, "CERT-CRYPTO-004", "dilithium3 signing failed", err)
			}
		}
		r.Signature = sig
		doc = []byte(strings.Replace(string(doc), "Signature: 0\n", "Signature: "+sig+"\n", 1))
	}

	return r, doc, nil
}

// renderDoc produces the canonical document for the receipt's current field
// values. Section order is fixed; keys within a section are sorted.
func renderDoc(r *Receipt) ([]byte, error) {
	validation := make(map[string]string, len(r.Validation))
	for class, passed := range r.Validation {
		if passed {
			validation[class] = "PASS"
		} else {
			validation[class] = "FAIL"
		}
	}

	crypto := map[string]string{"Content-Hash": r.ContentHash}
	if r.Signature != "" {
		crypto["Hash-Alg"] = r.HashAlg
		crypto["Issuer-Key"] = r.IssuerKey
		crypto["Signature"] = r.Signature
		crypto["Signature-Alg"] = r.SignatureAlg
	}

	sections := []struct {
		name  string
		pairs map[string]string
	}{
		{"ENGINE", map[string]string{"Name": r.EngineName, "Version": r.EngineVersion}},
		{"VALIDATION", validation},
		{"INTEGRITY", map[string]string{
			"Algorithm-Version":  r.Fingerprint.AlgorithmVersion,
			"Master-Fingerprint": r.Fingerprint.Aggregate,
		}},
		{"META", map[string]string{"Timestamp": r.Timestamp.UTC().Format(time.RFC3339)}},
		{"CRYPTO", crypto},
	}

	var sb strings.Builder
	sb.WriteString(Preamble)
	sb.WriteString("\n")
	for _, sec := range sections {
		sb.WriteString(sec.name)
		sb.WriteString("\n")
		ks := make([]string, 0, len(sec.pairs))
		for k := range sec.pairs {
			ks = append(ks, k)
		}
		sort.Strings(ks)
		for _, k := range ks {
			v := sec.pairs[k]
			if v == "" {
				return nil, newError(KindRender, "CERT-RENDER-001", "empty value for "+k)
			}
			if strings.ContainsAny(v, "\n\r") {
				return nil, newError(KindRender, "CERT-RENDER-002", "value must not contain newlines")
			}
			if strings.HasPrefix(v, " ") || strings.HasSuffix(v, " ") || strings.HasSuffix(v, "\t") {
				return nil, newError(KindRender, "CERT-RENDER-003", "leading or trailing whitespace forbidden")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			sb.WriteString(v)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(Postamble)
	sb.WriteString("\n")
	return []byte(sb.String()), nil
}

// contentHashScope returns the receipt bytes covered by the content hash:
// everything except the Content-Hash line itself and the Signature line
// (a signature is applied after hashing and must not disturb the hash).
func contentHashScope(doc []byte) ([]byte, error) {
	out, err := stripLine(doc, "Content-Hash: ", true)
	if err != nil {
		return nil, err
	}
	return stripLine(out, "Signature: ", false)
}

// signatureScope returns the receipt bytes covered by the signature:
// everything except the Signature line, Content-Hash included.
func signatureScope(doc []byte) ([]byte, error) {
	return stripLine(doc, "Signature: ", true)
}

// stripLine removes the CRYPTO-section line with the given key prefix. Only
// the CRYPTO section is scanned: a validation class that happens to share a
// key name with a CRYPTO field stays inside the hash scope.
func stripLine(doc []byte, prefix string, required bool) ([]byte, error) {
	lines := strings.Split(string(doc), "\n")
	out := make([]string, 0, len(lines))
	curr := ""
	removed := false
	for _, l := range lines {
		if l == "" {
			curr = ""
		} else if curr == "" {
			curr = l
		} else if curr == "CRYPTO" && strings.HasPrefix(l, prefix) {
			if removed {
				return nil, newError(KindCanonical, "CERT-CANON-010", "duplicate "+strings.TrimSuffix(prefix, ": ")+" line")
			}
			removed = true
			continue
		}
		out = append(out, l)
	}
	if required && !removed {
		return nil, newError(KindCanonical, "CERT-CANON-011", "missing "+strings.TrimSuffix(prefix, ": ")+" line")
	}
	return []byte(strings.Join(out, "\n")), nil
}

func checkToken(s string) error {
	if s == "" {
		return errors.New("empty token")
	}
	for _, c := range s {
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_' {
			continue
		}
		return errors.New("token may contain only letters, digits, - and _")
	}
	return nil
}
