package command

import (
	"errors"
	"fmt"

	"github.com/alecthomas/participle/v2"
)

var cmdLexer = &commandLexer{}

var parser = participle.MustBuild[Program](
	participle.Lexer(cmdLexer),
	participle.UseLookahead(2),
)

// ParseLine lexes and parses one batch of semicolon-separated statements.
// Lex-time diagnostics (illegal characters) are returned alongside the
// parsed Program; an illegal character is skipped and does not by itself
// fail the parse. On the first syntax error a single parse-time diagnostic
// is added and the Program is nil: no statement of that batch is returned,
// including any that preceded the error.
func ParseLine(src string) (*Program, []Diagnostic) {
	var out Program
	err := parser.ParseString("", src, &out)
	diags := append([]Diagnostic(nil), cmdLexer.diagnostics...)
	if err != nil {
		diags = append(diags, Diagnostic{Message: fmt.Sprintf("Syntax error at '%s'", offendingToken(err))})
		return nil, diags
	}
	return &out, diags
}

// offendingToken extracts the token participle choked on, matching
// adb.py's p_error, which prints the offending token's value rather than
// the parser's own diagnostic prose.
func offendingToken(err error) string {
	var unexpected participle.UnexpectedTokenError
	if errors.As(err, &unexpected) && unexpected.Unexpected.Value != "" {
		return unexpected.Unexpected.Value
	}
	return err.Error()
}
