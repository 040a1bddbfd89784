package receipt

import (
	"bytes"
	"strings"
	"time"
	"unicode/utf8"

	"daugherty.co/certify/digest"
	"daugherty.co/certify/manifest"
)

var sectionOrder = []string{"ENGINE", "VALIDATION", "INTEGRITY", "META", "CRYPTO"}

// Parse parses a receipt document and enforces canonical serialization:
// non-canonical inputs are rejected, so a parsed receipt always re-renders to
// byte-identical output.
func Parse(data []byte) (*Receipt, error) {
	if !utf8.Valid(data) {
		return nil, newError(KindParse, "CERT-STR-001", "receipt must be valid UTF-8")
	}
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return nil, newError(KindCanonical, "CERT-CANON-001", "BOM not allowed")
	}
	if bytes.Contains(data, []byte("\r")) {
		return nil, newError(KindCanonical, "CERT-CANON-002", "CR line endings not allowed")
	}
	if !bytes.HasPrefix(data, []byte(Preamble+"\n")) {
		return nil, newError(KindParse, "CERT-STR-002", "missing receipt preamble")
	}
	if !bytes.HasSuffix(data, []byte(Postamble+"\n")) {
		return nil, newError(KindParse, "CERT-STR-003", "missing receipt postamble")
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) > 0 && (line[len(line)-1] == ' ' || line[len(line)-1] == '\t') {
			return nil, newError(KindCanonical, "CERT-CANON-003", "trailing whitespace forbidden")
		}
	}

	body := strings.TrimSuffix(string(data), Postamble+"\n")
	body = strings.TrimPrefix(body, Preamble+"\n")

	sections := map[string]map[string]string{}
	var curr string
	for _, line := range strings.Split(strings.TrimSuffix(body, "\n"), "\n") {
		if line == "" {
			curr = ""
			continue
		}
		if curr == "" {
			sections[line] = map[string]string{}
			curr = line
			continue
		}
		k, v, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, newError(KindParse, "CERT-STR-004", "malformed line: "+line)
		}
		if _, dup := sections[curr][k]; dup {
			return nil, newError(KindCanonical, "CERT-CANON-004", "duplicate key "+k)
		}
		sections[curr][k] = v
	}
	for _, name := range sectionOrder {
		if _, ok := sections[name]; !ok {
			return nil, newError(KindParse, "CERT-STR-005", "missing section "+name)
		}
	}
	if len(sections) != len(sectionOrder) {
		return nil, newError(KindParse, "CERT-STR-006", "unknown section present")
	}

	r := &Receipt{
		EngineName:    sections["ENGINE"]["Name"],
		EngineVersion: sections["ENGINE"]["Version"],
		Validation:    map[string]bool{},
		Fingerprint: manifest.MasterFingerprint{
			AlgorithmVersion: sections["INTEGRITY"]["Algorithm-Version"],
			Aggregate:        sections["INTEGRITY"]["Master-Fingerprint"],
		},
		ContentHash:  sections["CRYPTO"]["Content-Hash"],
		IssuerKey:    sections["CRYPTO"]["Issuer-Key"],
		SignatureAlg: sections["CRYPTO"]["Signature-Alg"],
		HashAlg:      sections["CRYPTO"]["Hash-Alg"],
		Signature:    sections["CRYPTO"]["Signature"],
	}
	for class, v := range sections["VALIDATION"] {
		switch v {
		case "PASS":
			r.Validation[class] = true
		case "FAIL":
			r.Validation[class] = false
		default:
			return nil, newError(KindValidation, "CERT-VAL-010", "validation outcome must be PASS or FAIL")
		}
	}
	ts, err := time.Parse(time.RFC3339, sections["META"]["Timestamp"])
	if err != nil {
		return nil, wrapError(KindValidation, "CERT-VAL-011", "invalid timestamp", err)
	}
	r.Timestamp = ts.UTC()
	if r.ContentHash == "" {
		return nil, newError(KindValidation, "CERT-VAL-012", "missing Content-Hash")
	}
	if (r.Signature != "") != (r.IssuerKey != "") || (r.Signature != "") != (r.SignatureAlg != "") || (r.Signature != "") != (r.HashAlg != "") {
		return nil, newError(KindCrypto, "CERT-CRYPTO-010", "incomplete signature fields")
	}

	// Canonicalization cannot be bypassed: the parsed model must re-render to
	// the exact input bytes.
	rerendered, rerr := renderDoc(r)
	if rerr != nil {
		return nil, rerr
	}
	if !bytes.Equal(rerendered, data) {
		return nil, newError(KindCanonical, "CERT-CANON-005", "receipt is not canonical")
	}
	return r, nil
}

// ContentHash recomputes the content hash of canonical receipt bytes.
func ContentHash(data []byte) (string, error) {
	if _, err := Parse(data); err != nil {
		return "", err
	}
	scope, err := contentHashScope(data)
	if err != nil {
		return "", err
	}
	return digest.SumCID(scope), nil
}

// VerifyContentHash checks the receipt's self-consistency: the stored
// Content-Hash must equal the hash recomputed over every other field.
func VerifyContentHash(data []byte) error {
	r, err := Parse(data)
	if err != nil {
		return err
	}
	scope, err := contentHashScope(data)
	if err != nil {
		return err
	}
	if digest.SumCID(scope) != r.ContentHash {
		return newError(KindValidation, "CERT-VAL-013", "content hash does not match receipt fields")
	}
	return nil
}
