package lsp

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/lox/compiler"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// document is the analyzed state of one open file. It is rebuilt from
// scratch on every change; lox files are small and compile in one pass.
type document struct {
	text        string
	tokens      []compiler.Token
	lineStarts  []int
	diagnostics []compiler.Diagnostic
	decls       map[string][]compiler.Token // `var` declarations by name
}

func analyze(text string) *document {
	d := &document{
		text:       text,
		tokens:     compiler.Tokenize(text),
		lineStarts: []int{0},
		decls:      make(map[string][]compiler.Token),
	}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			d.lineStarts = append(d.lineStarts, i+1)
		}
	}

	for i := 0; i+1 < len(d.tokens); i++ {
		if d.tokens[i].Type == compiler.TokenVar && d.tokens[i+1].Type == compiler.TokenIdentifier {
			name := d.tokens[i+1].Literal
			d.decls[name] = append(d.decls[name], d.tokens[i+1])
		}
	}

	if _, err := compiler.Compile(text); err != nil {
		var cerr *compiler.CompileError
		if errors.As(err, &cerr) {
			d.diagnostics = cerr.Diagnostics
		}
	}
	return d
}

// position converts a byte offset into an LSP position.
func (d *document) position(offset int) protocol.Position {
	if offset > len(d.text) {
		offset = len(d.text)
	}
	line := sort.Search(len(d.lineStarts), func(i int) bool { return d.lineStarts[i] > offset }) - 1
	return protocol.Position{
		Line:      protocol.UInteger(line),
		Character: protocol.UInteger(offset - d.lineStarts[line]),
	}
}

// offset converts an LSP position into a byte offset, clamped to the line.
func (d *document) offset(pos protocol.Position) int {
	line := int(pos.Line)
	if line >= len(d.lineStarts) {
		return len(d.text)
	}
	end := len(d.text)
	if line+1 < len(d.lineStarts) {
		end = d.lineStarts[line+1] - 1
	}
	off := d.lineStarts[line] + int(pos.Character)
	if off > end {
		off = end
	}
	return off
}

func (d *document) spanRange(span compiler.Span) protocol.Range {
	return protocol.Range{
		Start: d.position(span.Start),
		End:   d.position(span.End()),
	}
}

// tokenAt returns the token covering pos. A cursor just past the end of a
// token still selects it.
func (d *document) tokenAt(pos protocol.Position) (compiler.Token, bool) {
	off := d.offset(pos)
	for _, tok := range d.tokens {
		if tok.Type == compiler.TokenEOF {
			break
		}
		if tok.Span.Start <= off && off <= tok.Span.End() {
			return tok, true
		}
	}
	return compiler.Token{}, false
}

// --- Diagnostics ---

func (d *document) lspDiagnostics() []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	for _, diag := range d.diagnostics {
		severity := protocol.DiagnosticSeverityError
		source := lspName
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    d.spanRange(diag.Span),
			Severity: &severity,
			Source:   &source,
			Message:  diag.Message,
		})
	}
	return diagnostics
}

// --- Language features ---

func (d *document) complete(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem

	keywords := []string{
		"and", "class", "else", "false", "for", "fun", "if", "nil",
		"or", "print", "return", "super", "this", "true", "var", "while",
	}
	for _, kw := range keywords {
		if strings.HasPrefix(kw, prefix) {
			kind := protocol.CompletionItemKindKeyword
			detail := "keyword"
			label := kw
			items = append(items, protocol.CompletionItem{
				Label:      label,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &label,
			})
		}
	}

	names := make([]string, 0, len(d.decls))
	for name := range d.decls {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		kind := protocol.CompletionItemKindVariable
		detail := "global"
		nameCopy := name
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &nameCopy,
		})
	}

	return items
}

func (d *document) hover(pos protocol.Position) *protocol.Hover {
	tok, ok := d.tokenAt(pos)
	if !ok {
		return nil
	}

	var value string
	switch tok.Type {
	case compiler.TokenIdentifier:
		decls := d.decls[tok.Literal]
		if len(decls) == 0 {
			value = fmt.Sprintf("**%s**\n\nundeclared global", tok.Literal)
			break
		}
		lines := make([]string, len(decls))
		for i, decl := range decls {
			lines[i] = fmt.Sprint(decl.Line)
		}
		value = fmt.Sprintf("**%s**\n\nglobal, declared on line %s", tok.Literal, strings.Join(lines, ", "))
	case compiler.TokenNumber:
		value = fmt.Sprintf("number `%s`", tok.Literal)
	case compiler.TokenString:
		value = fmt.Sprintf("string, %d bytes", len(tok.Literal))
	default:
		if compiler.LookupIdent(tok.Type.String()) == tok.Type {
			value = fmt.Sprintf("keyword `%s`", tok.Type)
		} else {
			return nil
		}
	}

	rng := d.spanRange(tok.Span)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
		Range: &rng,
	}
}

// definition returns the first declaration of the global under pos.
func (d *document) definition(uri protocol.DocumentUri, pos protocol.Position) []protocol.Location {
	tok, ok := d.tokenAt(pos)
	if !ok || tok.Type != compiler.TokenIdentifier {
		return nil
	}
	decls := d.decls[tok.Literal]
	if len(decls) == 0 {
		return nil
	}
	return []protocol.Location{{URI: uri, Range: d.spanRange(decls[0].Span)}}
}

// references returns every occurrence of the global under pos, its
// declarations included.
func (d *document) references(uri protocol.DocumentUri, pos protocol.Position) []protocol.Location {
	tok, ok := d.tokenAt(pos)
	if !ok || tok.Type != compiler.TokenIdentifier {
		return nil
	}
	var locations []protocol.Location
	for _, t := range d.tokens {
		if t.Type == compiler.TokenIdentifier && t.Literal == tok.Literal {
			locations = append(locations, protocol.Location{URI: uri, Range: d.spanRange(t.Span)})
		}
	}
	return locations
}

// --- Text extraction helpers ---

// prefixAt returns the identifier fragment before the cursor for completion.
func (d *document) prefixAt(pos protocol.Position) string {
	off := d.offset(pos)
	start := off
	for start > 0 && isAlphaByte(d.text[start-1]) {
		start--
	}
	return d.text[start:off]
}

func isAlphaByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}
