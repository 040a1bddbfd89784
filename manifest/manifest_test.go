package manifest

import (
	"errors"
	"strings"
	"testing"

	"daugherty.co/certify/fingerprint"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := ParseConfig([]byte(`
layers:
  - name: core
    files:
      - path: solver.go
        kind: go
        critical: true
      - path: params.yaml
        kind: yaml
  - name: scripts
    files:
      - path: anneal.py
        kind: python
      - path: params.yaml
        kind: yaml
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	return cfg
}

func testFingerprints() []fingerprint.FileFingerprint {
	return []fingerprint.FileFingerprint{
		{Path: "solver.go", Hash: "bafy-solver", RawHash: "bafy-solver-raw", Mode: fingerprint.ModeSemantic},
		{Path: "params.yaml", Hash: "bafy-params", RawHash: "bafy-params-raw", Mode: fingerprint.ModeSemantic},
		{Path: "anneal.py", Hash: "bafy-anneal", RawHash: "bafy-anneal-raw", Mode: fingerprint.ModeSemantic},
	}
}

func TestBuild_LayerHashesCoverMembers(t *testing.T) {
	cfg := testConfig(t)
	m, err := Build(cfg, testFingerprints())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(m.Layers) != 2 {
		t.Fatalf("expected 2 layer hashes, got %d", len(m.Layers))
	}
	if m.Layers["core"] == m.Layers["scripts"] {
		t.Fatalf("distinct layers with distinct members must hash differently")
	}
	if m.AlgorithmVersion != AlgorithmVersion {
		t.Fatalf("manifest must carry the algorithm version")
	}
	if len(m.Missing) != 0 {
		t.Fatalf("unexpected missing files: %+v", m.Missing)
	}
}

func TestBuild_InputOrderIndependent(t *testing.T) {
	cfg := testConfig(t)
	fps := testFingerprints()
	want, err := Build(cfg, fps)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, p := range perms {
		shuffled := []fingerprint.FileFingerprint{fps[p[0]], fps[p[1]], fps[p[2]]}
		got, err := Build(cfg, shuffled)
		if err != nil {
			t.Fatalf("Build(%v): %v", p, err)
		}
		for name, hash := range want.Layers {
			if got.Layers[name] != hash {
				t.Fatalf("perm %v: layer %q hash moved", p, name)
			}
		}
	}
}

func TestBuild_ModeIsHashed(t *testing.T) {
	cfg := testConfig(t)
	fps := testFingerprints()
	want, err := Build(cfg, fps)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fps[0].Mode = fingerprint.ModeRawFallback
	got, err := Build(cfg, fps)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got.Layers["core"] == want.Layers["core"] {
		t.Fatalf("fingerprint mode must contribute to the layer hash")
	}
}

func TestBuild_MissingCriticalFails(t *testing.T) {
	cfg := testConfig(t)
	fps := testFingerprints()[1:] // drop solver.go, critical in core
	_, err := Build(cfg, fps)
	var missing *MissingCriticalFileError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingCriticalFileError, got %v", err)
	}
	if missing.Layer != "core" || missing.Path != "solver.go" {
		t.Fatalf("wrong missing file: %+v", missing)
	}
}

func TestBuild_MissingNonCriticalRecorded(t *testing.T) {
	cfg := testConfig(t)
	fps := testFingerprints()[:2] // drop anneal.py, non-critical in scripts
	complete, err := Build(cfg, testFingerprints())
	if err != nil {
		t.Fatalf("Build complete: %v", err)
	}
	m, err := Build(cfg, fps)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(m.Missing) != 1 || m.Missing[0].Layer != "scripts" || m.Missing[0].Path != "anneal.py" {
		t.Fatalf("expected anneal.py recorded missing, got %+v", m.Missing)
	}
	if m.Layers["scripts"] == complete.Layers["scripts"] {
		t.Fatalf("an absent member must change the layer hash")
	}
	if m.Layers["core"] != complete.Layers["core"] {
		t.Fatalf("unrelated layer hash must not move")
	}
}

func TestBuild_DuplicateFingerprintRejected(t *testing.T) {
	cfg := testConfig(t)
	fps := append(testFingerprints(), fingerprint.FileFingerprint{Path: "solver.go", Hash: "bafy-other"})
	if _, err := Build(cfg, fps); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate path error, got %v", err)
	}
}

func TestConfig_FilesMergesLayers(t *testing.T) {
	cfg := testConfig(t)
	specs, err := cfg.Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	byPath := map[string]FileSpec{}
	for _, s := range specs {
		byPath[s.Path] = s
	}
	params := byPath["params.yaml"]
	if len(params.Layers) != 2 || params.Layers[0] != "core" || params.Layers[1] != "scripts" {
		t.Fatalf("params.yaml should belong to both layers: %+v", params)
	}
	if !byPath["solver.go"].Critical {
		t.Fatalf("critical flag lost in merge")
	}
}

func TestConfig_KindConflictRejected(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
layers:
  - name: a
    files:
      - {path: x.txt, kind: json}
  - name: b
    files:
      - {path: x.txt, kind: yaml}
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if _, err := cfg.Files(); err == nil {
		t.Fatalf("expected kind conflict error")
	}
}

func TestParseConfig_Validation(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"empty", "layers: []\n"},
		{"dup layer", "layers:\n  - name: a\n    files: [{path: x}]\n  - name: a\n    files: [{path: y}]\n"},
		{"no files", "layers:\n  - name: a\n    files: []\n"},
		{"dup path", "layers:\n  - name: a\n    files: [{path: x}, {path: x}]\n"},
	}
	for _, tc := range cases {
		if _, err := ParseConfig([]byte(tc.in)); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
