package normalize

import (
	"strconv"
	"strings"
)

// pythonNormalizer canonicalizes Python source at the tokenizer level.
//
// Comments are stripped, formatting is collapsed, and logical lines consisting
// of a single string literal are dropped (docstrings and other bare string
// statements are no-ops). Indentation is semantic in Python, so block depth is
// preserved as an explicit level marker per logical line rather than as raw
// whitespace. All other literals, identifiers, and statement order survive
// verbatim.
type pythonNormalizer struct{}

func (pythonNormalizer) Kind() string { return "python" }

// Multi-character operators, longest first.
var pyOperators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"**", "//", ">>", "<<", "<=", ">=", "==", "!=", "->", ":=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
}

type pyToken struct {
	text     string
	isString bool
}

func (pythonNormalizer) Normalize(content []byte) ([]byte, error) {
	src := strings.ReplaceAll(string(content), "\r\n", "\n")
	if strings.Contains(src, "\r") {
		return nil, newError(KindParse, "NORM-PY-001", "bare CR in python source")
	}

	t := &pyScanner{src: src}
	indentStack := []int{0}
	var sb strings.Builder

	for !t.eof() {
		col, blank := t.scanIndent()
		if blank {
			continue
		}
		level, err := indentLevel(&indentStack, col)
		if err != nil {
			return nil, err
		}
		toks, err := t.scanLogicalLine()
		if err != nil {
			return nil, err
		}
		if len(toks) == 0 {
			continue
		}
		// A statement that is exactly one string literal has no effect;
		// this covers module, class, and function docstrings.
		if len(toks) == 1 && toks[0].isString {
			continue
		}
		sb.WriteString(strconv.Itoa(level))
		sb.WriteString("|")
		for i, tok := range toks {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(tok.text)
		}
		sb.WriteString("\n")
	}
	if t.depth != 0 {
		return nil, newError(KindParse, "NORM-PY-002", "unbalanced brackets at end of file")
	}
	return []byte(sb.String()), nil
}

// indentLevel maps an indentation column onto a block depth using the
// tokenizer's indent stack. A dedent must return to a column already on the
// stack.
func indentLevel(stack *[]int, col int) (int, error) {
	s := *stack
	top := s[len(s)-1]
	switch {
	case col > top:
		s = append(s, col)
	case col < top:
		for len(s) > 0 && s[len(s)-1] > col {
			s = s[:len(s)-1]
		}
		if len(s) == 0 || s[len(s)-1] != col {
			return 0, newError(KindParse, "NORM-PY-003", "unindent does not match any outer indentation level")
		}
	}
	*stack = s
	return len(s) - 1, nil
}

type pyScanner struct {
	src   string
	pos   int
	depth int // open bracket depth; newlines inside brackets do not end lines
}

func (t *pyScanner) eof() bool { return t.pos >= len(t.src) }

// scanIndent consumes leading whitespace at the start of a physical line and
// returns the indentation column. Blank and comment-only lines are consumed
// entirely and reported as blank.
func (t *pyScanner) scanIndent() (col int, blank bool) {
	for t.pos < len(t.src) {
		switch t.src[t.pos] {
		case ' ':
			col++
			t.pos++
		case '\t':
			col += 8 - col%8
			t.pos++
		default:
			goto done
		}
	}
done:
	if t.eof() {
		return 0, true
	}
	switch t.src[t.pos] {
	case '\n':
		t.pos++
		return 0, true
	case '#':
		for t.pos < len(t.src) && t.src[t.pos] != '\n' {
			t.pos++
		}
		if t.pos < len(t.src) {
			t.pos++
		}
		return 0, true
	}
	return col, false
}

// scanLogicalLine tokenizes until the end of the logical line: a newline at
// bracket depth zero that is not escaped by a backslash continuation.
func (t *pyScanner) scanLogicalLine() ([]pyToken, error) {
	var toks []pyToken
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		switch {
		case c == ' ' || c == '\t':
			t.pos++
		case c == '\n':
			t.pos++
			if t.depth == 0 {
				return toks, nil
			}
		case c == '\\':
			if t.pos+1 < len(t.src) && t.src[t.pos+1] == '\n' {
				t.pos += 2
				continue
			}
			return nil, newError(KindParse, "NORM-PY-004", "unexpected character after line continuation")
		case c == '#':
			for t.pos < len(t.src) && t.src[t.pos] != '\n' {
				t.pos++
			}
		case c == '\'' || c == '"':
			s, err := t.scanString(t.pos)
			if err != nil {
				return nil, err
			}
			toks = append(toks, pyToken{text: s, isString: true})
		case isPyIdentStart(c):
			start := t.pos
			for t.pos < len(t.src) && isPyIdentChar(t.src[t.pos]) {
				t.pos++
			}
			ident := t.src[start:t.pos]
			if t.pos < len(t.src) && (t.src[t.pos] == '\'' || t.src[t.pos] == '"') && isPyStringPrefix(ident) {
				s, err := t.scanString(start)
				if err != nil {
					return nil, err
				}
				toks = append(toks, pyToken{text: s, isString: true})
				continue
			}
			toks = append(toks, pyToken{text: ident})
		case c >= '0' && c <= '9' || c == '.' && t.pos+1 < len(t.src) && t.src[t.pos+1] >= '0' && t.src[t.pos+1] <= '9':
			toks = append(toks, pyToken{text: t.scanNumber()})
		case c == '(' || c == '[' || c == '{':
			t.depth++
			t.pos++
			toks = append(toks, pyToken{text: string(c)})
		case c == ')' || c == ']' || c == '}':
			t.depth--
			if t.depth < 0 {
				return nil, newError(KindParse, "NORM-PY-005", "unbalanced closing bracket")
			}
			t.pos++
			toks = append(toks, pyToken{text: string(c)})
		default:
			if op := t.matchOperator(); op != "" {
				toks = append(toks, pyToken{text: op})
				continue
			}
			t.pos++
			toks = append(toks, pyToken{text: string(c)})
		}
	}
	if t.depth != 0 {
		return nil, newError(KindParse, "NORM-PY-002", "unbalanced brackets at end of file")
	}
	return toks, nil
}

// scanString scans a string literal starting at start (which may point at a
// prefix such as r, b, f, rb). The verbatim literal text, prefix and quotes
// included, is returned. The scanner position must be at the opening quote.
func (t *pyScanner) scanString(start int) (string, error) {
	quote := t.src[t.pos]
	triple := strings.HasPrefix(t.src[t.pos:], strings.Repeat(string(quote), 3))
	if triple {
		t.pos += 3
		end := strings.Repeat(string(quote), 3)
		for t.pos < len(t.src) {
			if t.src[t.pos] == '\\' {
				t.pos += 2
				continue
			}
			if strings.HasPrefix(t.src[t.pos:], end) {
				t.pos += 3
				return t.src[start:t.pos], nil
			}
			t.pos++
		}
		return "", newError(KindParse, "NORM-PY-006", "unterminated triple-quoted string")
	}
	t.pos++
	for t.pos < len(t.src) {
		switch t.src[t.pos] {
		case '\\':
			t.pos += 2
		case '\n':
			return "", newError(KindParse, "NORM-PY-007", "unterminated string literal")
		case quote:
			t.pos++
			return t.src[start:t.pos], nil
		default:
			t.pos++
		}
	}
	return "", newError(KindParse, "NORM-PY-007", "unterminated string literal")
}

// scanNumber consumes a numeric literal, including exponent signs and
// imaginary/radix suffixes. The literal text is preserved verbatim.
func (t *pyScanner) scanNumber() string {
	start := t.pos
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		if isPyIdentChar(c) || c == '.' {
			t.pos++
			continue
		}
		if (c == '+' || c == '-') && t.pos > start {
			prev := t.src[t.pos-1]
			if prev == 'e' || prev == 'E' {
				t.pos++
				continue
			}
		}
		break
	}
	return t.src[start:t.pos]
}

func (t *pyScanner) matchOperator() string {
	for _, op := range pyOperators {
		if strings.HasPrefix(t.src[t.pos:], op) {
			t.pos += len(op)
			return op
		}
	}
	return ""
}

func isPyIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func isPyIdentChar(c byte) bool {
	return isPyIdentStart(c) || c >= '0' && c <= '9'
}

func isPyStringPrefix(s string) bool {
	if len(s) > 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'r', 'R', 'b', 'B', 'u', 'U', 'f', 'F':
		default:
			return false
		}
	}
	return true
}
