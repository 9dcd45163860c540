package steps

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	csslex "github.com/tdewolff/parse/v2/css"
)

// checkSyntax reports the first structural error in a stylesheet: an
// unterminated string or url, or unbalanced braces.
func checkSyntax(data []byte) error {
	l := csslex.NewLexer(parse.NewInput(bytes.NewReader(data)))
	line, depth := 1, 0
	open := 0 // line of the outermost unclosed block
	for {
		tt, text := l.Next()
		switch tt {
		case csslex.ErrorToken:
			if err := l.Err(); err != io.EOF {
				return fmt.Errorf("line %d: %w", line, err)
			}
			if depth > 0 {
				return fmt.Errorf("line %d: unclosed block", open)
			}
			return nil
		case csslex.BadStringToken:
			return fmt.Errorf("line %d: unterminated string", line)
		case csslex.BadURLToken:
			return fmt.Errorf("line %d: malformed url", line)
		case csslex.LeftBraceToken:
			if depth == 0 {
				open = line
			}
			depth++
		case csslex.RightBraceToken:
			if depth == 0 {
				return fmt.Errorf("line %d: unexpected }", line)
			}
			depth--
		}
		line += bytes.Count(text, []byte{'\n'})
	}
}

type mediaGroup struct {
	prelude string
	body    bytes.Buffer
}

// groupMediaQueries moves the contents of every top-level @media block with
// the same query into a single block. Non-media content keeps its order and
// comes first, followed by one block per query in order of first
// appearance. The input must have passed checkSyntax.
func groupMediaQueries(data []byte) []byte {
	l := csslex.NewLexer(parse.NewInput(bytes.NewReader(data)))

	var rest bytes.Buffer
	var groups []*mediaGroup
	byQuery := map[string]*mediaGroup{}

	next := l.Next

	for {
		tt, text := next()
		if tt == csslex.ErrorToken {
			break
		}
		if tt != csslex.AtKeywordToken || !strings.EqualFold(string(text), "@media") {
			rest.Write(text)
			if tt == csslex.LeftBraceToken {
				copyBlock(next, &rest)
				rest.WriteByte('}')
			}
			continue
		}

		var prelude bytes.Buffer
		terminated := false
		for {
			tt, text = next()
			if tt == csslex.ErrorToken {
				break
			}
			if tt == csslex.LeftBraceToken {
				terminated = true
				break
			}
			prelude.Write(text)
		}
		if !terminated {
			rest.WriteString("@media")
			rest.Write(prelude.Bytes())
			break
		}

		key := normalizeQuery(prelude.String())
		g, ok := byQuery[key]
		if !ok {
			g = &mediaGroup{prelude: key}
			byQuery[key] = g
			groups = append(groups, g)
		}
		copyBlock(next, &g.body)
	}

	if len(groups) == 0 {
		return data
	}

	out := bytes.TrimRight(rest.Bytes(), " \t\r\n")
	var buf bytes.Buffer
	buf.Write(out)
	for _, g := range groups {
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "@media %s {", g.prelude)
		buf.Write(g.body.Bytes())
		buf.WriteString("}\n")
	}
	return buf.Bytes()
}

// copyBlock writes the tokens of a block whose opening brace has already
// been consumed. The closing brace is consumed but only inner closing
// braces are written.
func copyBlock(next func() (csslex.TokenType, []byte), w *bytes.Buffer) {
	depth := 1
	for {
		tt, text := next()
		switch tt {
		case csslex.ErrorToken:
			return
		case csslex.LeftBraceToken:
			depth++
		case csslex.RightBraceToken:
			depth--
			if depth == 0 {
				return
			}
		}
		w.Write(text)
	}
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}
