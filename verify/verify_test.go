package verify

import (
	"context"
	"errors"
	"testing"

	"daugherty.co/certify/fingerprint"
	"daugherty.co/certify/manifest"
)

var (
	srcA = []byte("package core\n\nconst coupling = 3\n")
	srcB = []byte("def anneal(s):\n    return -sum(s)\n")
	srcC = []byte("schedule:\n  steps: 1000\n")
)

func scenarioConfig(t *testing.T) *manifest.Config {
	t.Helper()
	cfg, err := manifest.ParseConfig([]byte(`
layers:
  - name: core
    files:
      - path: a.go
        kind: go
      - path: b.py
        kind: python
        critical: true
  - name: config
    files:
      - path: c.yaml
        kind: yaml
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	return cfg
}

func scenarioFiles(a, b, c []byte) []fingerprint.SourceFile {
	var files []fingerprint.SourceFile
	if a != nil {
		files = append(files, fingerprint.SourceFile{Path: "a.go", Content: a, Kind: "go"})
	}
	if b != nil {
		files = append(files, fingerprint.SourceFile{Path: "b.py", Content: b, Kind: "python", Critical: true})
	}
	if c != nil {
		files = append(files, fingerprint.SourceFile{Path: "c.yaml", Content: c, Kind: "yaml"})
	}
	return files
}

func fingerprintAll(t *testing.T, files []fingerprint.SourceFile) []fingerprint.FileFingerprint {
	t.Helper()
	fps, err := fingerprint.All(context.Background(), files, 2)
	if err != nil {
		t.Fatalf("fingerprint.All: %v", err)
	}
	return fps
}

func scenarioBaseline(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Build(scenarioConfig(t), fingerprintAll(t, scenarioFiles(srcA, srcB, srcC)))
	if err != nil {
		t.Fatalf("Build baseline: %v", err)
	}
	return m
}

func TestLocal_Match(t *testing.T) {
	baseline := scenarioBaseline(t)
	current := fingerprintAll(t, scenarioFiles(srcA, srcB, srcC))

	res, err := Local(baseline, scenarioConfig(t), current, Permissive)
	if err != nil {
		t.Fatalf("Local: %v", err)
	}
	if res.Status != StatusMatch {
		t.Fatalf("expected MATCH, got %s (%v)", res.Status, res.Warnings)
	}
	if !res.OK() {
		t.Fatalf("MATCH must be OK")
	}
	if len(res.DivergingLayers) != 0 {
		t.Fatalf("unexpected diverging layers: %v", res.DivergingLayers)
	}
}

func TestLocal_CosmeticEditStillMatches(t *testing.T) {
	baseline := scenarioBaseline(t)
	editedA := []byte("package core\n\n// tuned by hand\nconst coupling   = 3\n")
	current := fingerprintAll(t, scenarioFiles(editedA, srcB, srcC))

	res, err := Local(baseline, scenarioConfig(t), current, Permissive)
	if err != nil {
		t.Fatalf("Local: %v", err)
	}
	if res.Status != StatusMatch {
		t.Fatalf("cosmetic edit must still MATCH, got %s", res.Status)
	}
}

func TestLocal_SemanticEditMismatchNamesLayer(t *testing.T) {
	baseline := scenarioBaseline(t)
	editedA := []byte("package core\n\nconst coupling = 4\n")
	current := fingerprintAll(t, scenarioFiles(editedA, srcB, srcC))

	res, err := Local(baseline, scenarioConfig(t), current, Permissive)
	if err != nil {
		t.Fatalf("Local: %v", err)
	}
	if res.Status != StatusMismatch {
		t.Fatalf("expected MISMATCH, got %s", res.Status)
	}
	if len(res.DivergingLayers) != 1 || res.DivergingLayers[0] != "core" {
		t.Fatalf("expected diverging layer core, got %v", res.DivergingLayers)
	}
	if res.OK() {
		t.Fatalf("MISMATCH must not be OK")
	}
}

func TestLocal_MultipleDivergingLayersAllNamed(t *testing.T) {
	baseline := scenarioBaseline(t)
	editedA := []byte("package core\n\nconst coupling = 4\n")
	editedC := []byte("schedule:\n  steps: 2000\n")
	current := fingerprintAll(t, scenarioFiles(editedA, srcB, editedC))

	res, err := Local(baseline, scenarioConfig(t), current, Permissive)
	if err != nil {
		t.Fatalf("Local: %v", err)
	}
	if res.Status != StatusMismatch {
		t.Fatalf("expected MISMATCH, got %s", res.Status)
	}
	if len(res.DivergingLayers) != 2 || res.DivergingLayers[0] != "config" || res.DivergingLayers[1] != "core" {
		t.Fatalf("all diverging layers must be named and sorted, got %v", res.DivergingLayers)
	}
}

func TestLocal_MissingCriticalFile(t *testing.T) {
	baseline := scenarioBaseline(t)
	current := fingerprintAll(t, scenarioFiles(srcA, nil, srcC)) // b.py gone

	res, err := Local(baseline, scenarioConfig(t), current, Permissive)
	if err != nil {
		t.Fatalf("Local: %v", err)
	}
	if res.Status != StatusMissingFile {
		t.Fatalf("expected MISSING_FILE, got %s", res.Status)
	}
	if len(res.MissingFiles) != 1 || res.MissingFiles[0] != "b.py" {
		t.Fatalf("expected b.py reported missing, got %v", res.MissingFiles)
	}
	if res.OK() {
		t.Fatalf("MISSING_FILE must not be OK")
	}
}

func TestLocal_MissingNonCriticalIsMismatch(t *testing.T) {
	baseline := scenarioBaseline(t)
	current := fingerprintAll(t, scenarioFiles(srcA, srcB, nil)) // c.yaml gone

	res, err := Local(baseline, scenarioConfig(t), current, Permissive)
	if err != nil {
		t.Fatalf("Local: %v", err)
	}
	if res.Status != StatusMismatch {
		t.Fatalf("expected MISMATCH for absent non-critical member, got %s", res.Status)
	}
	if len(res.MissingFiles) != 1 || res.MissingFiles[0] != "c.yaml" {
		t.Fatalf("missing file must still be reported, got %v", res.MissingFiles)
	}
}

func TestLocal_FallbackPresent(t *testing.T) {
	// b.py fails to parse, so both baseline and current fall back to raw
	// hashing; identical bytes still match, but the weakened guarantee is
	// surfaced.
	brokenB := []byte("def anneal(s:\n    return\n")
	cfg := scenarioConfig(t)
	baseline, err := manifest.Build(cfg, fingerprintAll(t, scenarioFiles(srcA, brokenB, srcC)))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	current := fingerprintAll(t, scenarioFiles(srcA, brokenB, srcC))

	res, err := Local(baseline, cfg, current, Permissive)
	if err != nil {
		t.Fatalf("Local: %v", err)
	}
	if res.Status != StatusFallbackPresent {
		t.Fatalf("expected PARSE_FALLBACK_PRESENT, got %s", res.Status)
	}
	if len(res.FallbackFiles) != 1 || res.FallbackFiles[0] != "b.py" {
		t.Fatalf("expected b.py flagged, got %v", res.FallbackFiles)
	}
	if !res.OK() {
		t.Fatalf("permissive mode accepts fallback with a warning")
	}

	strict, err := Local(baseline, cfg, current, Strict)
	if err != nil {
		t.Fatalf("Local strict: %v", err)
	}
	if strict.Status != StatusFallbackPresent {
		t.Fatalf("strict status: %s", strict.Status)
	}
	if strict.OK() {
		t.Fatalf("strict mode must reject fallback fingerprints")
	}
}

func TestLocal_VersionMismatchNeverCompared(t *testing.T) {
	baseline := scenarioBaseline(t)
	baseline.AlgorithmVersion = "dgy-fp-0+dgy-norm-0"
	current := fingerprintAll(t, scenarioFiles(srcA, srcB, srcC))

	_, err := Local(baseline, scenarioConfig(t), current, Permissive)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}
