package normalize

import (
	"go/parser"
	"go/scanner"
	"go/token"
	"strings"
)

// goNormalizer canonicalizes Go source as its token stream.
//
// The file must parse as a complete Go file; the canonical form is one token
// per line (automatic semicolons included), which erases all whitespace and
// comments while preserving every literal, identifier, and statement order.
type goNormalizer struct{}

func (goNormalizer) Kind() string { return "go" }

func (goNormalizer) Normalize(content []byte) ([]byte, error) {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, "input.go", content, 0); err != nil {
		return nil, wrapError(KindParse, "NORM-GO-001", "go source does not parse", err)
	}

	fset = token.NewFileSet()
	file := fset.AddFile("input.go", fset.Base(), len(content))
	var s scanner.Scanner
	var scanErr error
	s.Init(file, content, func(pos token.Position, msg string) {
		if scanErr == nil {
			scanErr = newError(KindParse, "NORM-GO-002", "go scan: "+msg)
		}
	}, 0)

	var sb strings.Builder
	for {
		_, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		if lit != "" {
			sb.WriteString(lit)
		} else {
			sb.WriteString(tok.String())
		}
		sb.WriteString("\n")
	}
	if scanErr != nil {
		return nil, scanErr
	}
	return []byte(sb.String()), nil
}
