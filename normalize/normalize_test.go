package normalize

import (
	"bytes"
	"testing"
)

func mustNormalize(t *testing.T, kind, src string) []byte {
	t.Helper()
	n, ok := ForKind(kind)
	if !ok {
		t.Fatalf("no normalizer registered for %q", kind)
	}
	out, err := n.Normalize([]byte(src))
	if err != nil {
		t.Fatalf("Normalize(%s): %v", kind, err)
	}
	return out
}

func mustFail(t *testing.T, kind, src, ruleID string) {
	t.Helper()
	n, ok := ForKind(kind)
	if !ok {
		t.Fatalf("no normalizer registered for %q", kind)
	}
	_, err := n.Normalize([]byte(src))
	if err == nil {
		t.Fatalf("Normalize(%s): expected error", kind)
	}
	if !IsParseError(err) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if got := RuleID(err); got != ruleID {
		t.Fatalf("expected rule %s, got %s (%v)", ruleID, got, err)
	}
}

func TestKindsRegistered(t *testing.T) {
	want := map[string]bool{"go": true, "python": true, "json": true, "yaml": true}
	for _, k := range Kinds() {
		delete(want, k)
	}
	if len(want) != 0 {
		t.Fatalf("missing kinds: %v", want)
	}
	if _, ok := ForKind("fortran"); ok {
		t.Fatalf("unexpected normalizer for unknown kind")
	}
}

func TestGo_CosmeticInsensitive(t *testing.T) {
	a := "package solver\n\n// Solve runs the annealer.\nfunc Solve(n int) int {\n\treturn n * 2\n}\n"
	b := "package solver\nfunc Solve(n int)int{ return n*2 }\n"
	if !bytes.Equal(mustNormalize(t, "go", a), mustNormalize(t, "go", b)) {
		t.Fatalf("comment and formatting changes must not affect canonical form")
	}
}

func TestGo_SemanticSensitive(t *testing.T) {
	a := "package solver\n\nconst iterations = 100\n"
	b := "package solver\n\nconst iterations = 101\n"
	if bytes.Equal(mustNormalize(t, "go", a), mustNormalize(t, "go", b)) {
		t.Fatalf("constant change must change canonical form")
	}
}

func TestGo_ParseError(t *testing.T) {
	mustFail(t, "go", "package solver\n\nfunc {\n", "NORM-GO-001")
}

func TestPython_CommentAndDocstringInsensitive(t *testing.T) {
	a := `"""Module docstring."""
# setup

def energy(s):
    """Return the Ising energy."""
    # accumulate
    return -sum(s)
`
	b := `def energy(s):
    return -sum(s)
`
	if !bytes.Equal(mustNormalize(t, "python", a), mustNormalize(t, "python", b)) {
		t.Fatalf("comments and docstrings must not affect canonical form")
	}
}

func TestPython_IndentWidthInsensitive(t *testing.T) {
	a := "def f(x):\n  if x:\n    return 1\n  return 0\n"
	b := "def f(x):\n        if x:\n                return 1\n        return 0\n"
	if !bytes.Equal(mustNormalize(t, "python", a), mustNormalize(t, "python", b)) {
		t.Fatalf("indent width must not affect canonical form")
	}
}

func TestPython_BlockStructureSensitive(t *testing.T) {
	// Same tokens, different block membership of the final return.
	a := "def f(x):\n    if x:\n        return 1\n    return 0\n"
	b := "def f(x):\n    if x:\n        return 1\n        return 0\n"
	if bytes.Equal(mustNormalize(t, "python", a), mustNormalize(t, "python", b)) {
		t.Fatalf("block structure must affect canonical form")
	}
}

func TestPython_ContinuationAndBrackets(t *testing.T) {
	a := "total = (1 +\n         2 +\n         3)\n"
	b := "total = (1 + 2 + 3)\n"
	if !bytes.Equal(mustNormalize(t, "python", a), mustNormalize(t, "python", b)) {
		t.Fatalf("line breaks inside brackets must not affect canonical form")
	}
	c := "total = 1 + \\\n    2\n"
	d := "total = 1 + 2\n"
	if !bytes.Equal(mustNormalize(t, "python", c), mustNormalize(t, "python", d)) {
		t.Fatalf("backslash continuation must not affect canonical form")
	}
}

func TestPython_StringLiteralPreserved(t *testing.T) {
	a := "x = 'a'\n"
	b := "x = 'b'\n"
	if bytes.Equal(mustNormalize(t, "python", a), mustNormalize(t, "python", b)) {
		t.Fatalf("string literal content must affect canonical form")
	}
	// A prefixed string used as a value is not a docstring.
	out := mustNormalize(t, "python", "x = rb'\\d+'\n")
	if !bytes.Contains(out, []byte("rb'\\d+'")) {
		t.Fatalf("prefixed string literal not preserved: %q", out)
	}
}

func TestPython_BadDedent(t *testing.T) {
	mustFail(t, "python", "def f():\n        x = 1\n    y = 2\n", "NORM-PY-003")
}

func TestPython_UnbalancedBrackets(t *testing.T) {
	mustFail(t, "python", "x = (1 + 2\n", "NORM-PY-002")
}

func TestJSON_KeyOrderAndWhitespaceInsensitive(t *testing.T) {
	a := `{"beta": [1, 2], "alpha": {"k": true}}`
	b := "{\n  \"alpha\": {\"k\": true},\n  \"beta\": [1,2]\n}\n"
	if !bytes.Equal(mustNormalize(t, "json", a), mustNormalize(t, "json", b)) {
		t.Fatalf("key order and whitespace must not affect canonical form")
	}
}

func TestJSON_NumberLiteralPreserved(t *testing.T) {
	a := `{"x": 1.50}`
	b := `{"x": 1.5}`
	if bytes.Equal(mustNormalize(t, "json", a), mustNormalize(t, "json", b)) {
		t.Fatalf("numeric literal text must be preserved verbatim")
	}
}

func TestJSON_TrailingData(t *testing.T) {
	mustFail(t, "json", `{"x": 1} {"y": 2}`, "NORM-JSON-002")
}

func TestJSON_ParseError(t *testing.T) {
	mustFail(t, "json", `{"x": }`, "NORM-JSON-001")
}

func TestYAML_StyleInsensitive(t *testing.T) {
	a := "params:\n  alpha: 1\n  beta: two\n"
	b := "# tuning\nparams: {beta: \"two\", alpha: 1}\n"
	if !bytes.Equal(mustNormalize(t, "yaml", a), mustNormalize(t, "yaml", b)) {
		t.Fatalf("flow vs block style and quoting must not affect canonical form")
	}
}

func TestYAML_ValueSensitive(t *testing.T) {
	a := "threshold: 0.95\n"
	b := "threshold: 0.96\n"
	if bytes.Equal(mustNormalize(t, "yaml", a), mustNormalize(t, "yaml", b)) {
		t.Fatalf("value change must change canonical form")
	}
}

func TestYAML_ParseError(t *testing.T) {
	mustFail(t, "yaml", "a: [1, 2\n", "NORM-YAML-001")
}
