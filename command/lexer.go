package command

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/alecthomas/participle/v2/lexer"
)

const (
	tokenIdent lexer.TokenType = iota + 1
	tokenNumber
	tokenPunct
	tokenKeyword
)

// reserved mirrors adb.py's reserved-word table: the lexer lowercases any
// identifier matching one of these and tags it as a keyword token instead of
// a name, exactly like PLY's reserved.get(t.value.lower(), 'NAME') idiom.
var reserved = map[string]bool{
	"begin":   true,
	"beginro": true,
	"end":     true,
	"r":       true,
	"w":       true,
	"dump":    true,
	"fail":    true,
	"recover": true,
	"quit":    true,
}

// commandLexer is a participle lexer.Definition that hand-scans one command
// batch at a time. It keeps no long-lived state beyond the diagnostics from
// its most recent Lex call, which is safe because ParseLine drives it
// strictly sequentially.
type commandLexer struct {
	diagnostics []Diagnostic
}

func (c *commandLexer) Symbols() map[string]lexer.TokenType {
	return map[string]lexer.TokenType{
		"EOF":     lexer.EOF,
		"Ident":   tokenIdent,
		"Number":  tokenNumber,
		"Punct":   tokenPunct,
		"Keyword": tokenKeyword,
	}
}

func (c *commandLexer) Lex(filename string, r io.Reader) (lexer.Lexer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	toks, diags := scan(string(data))
	c.diagnostics = diags
	return &tokenStream{tokens: toks}, nil
}

type tokenStream struct {
	tokens []lexer.Token
	pos    int
}

func (t *tokenStream) Next() (lexer.Token, error) {
	if t.pos >= len(t.tokens) {
		return lexer.Token{Type: lexer.EOF}, nil
	}
	tok := t.tokens[t.pos]
	t.pos++
	return tok, nil
}

// scan tokenizes one line (or one multi-statement batch) of the command
// language. Illegal characters are recorded as diagnostics and skipped one
// rune at a time, matching adb.py's t_error handler rather than aborting the
// whole batch on the first bad character.
func scan(src string) ([]lexer.Token, []Diagnostic) {
	var toks []lexer.Token
	var diags []Diagnostic
	runes := []rune(src)
	pos, line, col := 0, 1, 1

	advance := func() rune {
		r := runes[pos]
		pos++
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
		return r
	}

	for pos < len(runes) {
		r := runes[pos]
		switch {
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			advance()

		case r == '/' && pos+1 < len(runes) && runes[pos+1] == '/':
			for pos < len(runes) && runes[pos] != '\n' {
				advance()
			}

		case unicode.IsLetter(r) || r == '_':
			start, startLine, startCol := pos, line, col
			for pos < len(runes) && (unicode.IsLetter(runes[pos]) || unicode.IsDigit(runes[pos]) || runes[pos] == '_') {
				advance()
			}
			word := string(runes[start:pos])
			lower := strings.ToLower(word)
			p := lexer.Position{Line: startLine, Column: startCol, Offset: start}
			if reserved[lower] {
				toks = append(toks, lexer.Token{Type: tokenKeyword, Value: lower, Pos: p})
			} else {
				toks = append(toks, lexer.Token{Type: tokenIdent, Value: word, Pos: p})
			}

		case unicode.IsDigit(r):
			start, startLine, startCol := pos, line, col
			for pos < len(runes) && unicode.IsDigit(runes[pos]) {
				advance()
			}
			toks = append(toks, lexer.Token{
				Type:  tokenNumber,
				Value: string(runes[start:pos]),
				Pos:   lexer.Position{Line: startLine, Column: startCol, Offset: start},
			})

		case strings.ContainsRune("(),;", r):
			p := lexer.Position{Line: line, Column: col, Offset: pos}
			advance()
			toks = append(toks, lexer.Token{Type: tokenPunct, Value: string(r), Pos: p})

		default:
			diags = append(diags, Diagnostic{Message: fmt.Sprintf("Illegal character '%c'", r)})
			advance()
		}
	}

	toks = append(toks, lexer.Token{Type: lexer.EOF, Pos: lexer.Position{Line: line, Column: col, Offset: pos}})
	return toks, diags
}
