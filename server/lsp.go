// Package server implements a language server for PL/0 source files. It
// publishes compile diagnostics and answers hover, completion, definition
// and reference queries from the compiler's own token stream and symbol
// table.
package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/miniplc0/compiler"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "plc0-lsp"

var log = commonlog.GetLogger("plc0.lsp")

// LspServer serves LSP requests over stdio.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]*document // URI → latest analysis

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

type document struct {
	text   string
	result analysis
}

// NewLSP creates a new LSP server reporting the given version.
func NewLSP(version string) *LspServer {
	s := &LspServer{
		docs:    make(map[string]*document),
		version: version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("PL/0 LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	doc := s.update(uri, params.TextDocument.Text)
	s.publishDiagnostics(ctx, uri, doc)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			doc := s.update(uri, whole.Text)
			s.publishDiagnostics(ctx, uri, doc)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// update analyzes text and stores it as the current state of uri.
func (s *LspServer) update(uri protocol.DocumentUri, text string) *document {
	doc := &document{text: text, result: analyze(text)}

	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()

	return doc
}

func (s *LspServer) lookup(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[string(uri)]
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	prefix := extractPrefix(doc.text, params.Position)
	return complete(doc.result, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(doc.result, word), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	doc := s.lookup(uri)
	if doc == nil {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	decl, ok := doc.result.decls[word]
	if !ok {
		return nil, nil
	}
	return []protocol.Location{{URI: uri, Range: tokenRange(decl.pos, len(word))}}, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	doc := s.lookup(uri)
	if doc == nil {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}

	var locations []protocol.Location
	for _, r := range references(doc.result, word, params.Context.IncludeDeclaration) {
		locations = append(locations, protocol.Location{URI: uri, Range: r})
	}
	return locations, nil
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, doc *document) {
	diagnostics := diagnose(doc.text, doc.result)
	log.Debugf("%s: %d diagnostics", uri, len(diagnostics))

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

// analysis is what the compiler reports about one document.
type analysis struct {
	tokens  []compiler.Token // nil when lexing failed
	symbols []compiler.Symbol
	decls   map[string]declaration
	err     *compiler.Error
}

type declaration struct {
	pos      compiler.Position
	constant bool
	value    int32 // constants only
}

func analyze(text string) analysis {
	var result analysis

	tokens, err := compiler.Tokenize(text)
	if err == nil {
		result.tokens = tokens
		result.decls = declarations(tokens)

		a := compiler.NewAnalyzer()
		_, err = a.Analyze(tokens)
		result.symbols = a.Symbols()
	}

	if err != nil && !errors.As(err, &result.err) {
		log.Errorf("unexpected compiler error: %v", err)
	}
	return result
}

// declarations scans const and var declarations. The first declaration of
// a name wins; later ones are redeclaration errors.
func declarations(tokens []compiler.Token) map[string]declaration {
	decls := make(map[string]declaration)
	for i := 0; i+1 < len(tokens); i++ {
		kw := tokens[i].Type
		ident := tokens[i+1]
		if (kw != compiler.TokenConst && kw != compiler.TokenVar) || ident.Type != compiler.TokenIdentifier {
			continue
		}
		if _, seen := decls[ident.Literal]; seen {
			continue
		}

		d := declaration{pos: ident.Pos, constant: kw == compiler.TokenConst}
		if d.constant {
			d.value = constValue(tokens[i+2:])
		}
		decls[ident.Literal] = d
	}
	return decls
}

// constValue reads "= [sign] UINT" at the start of rest.
func constValue(rest []compiler.Token) int32 {
	if len(rest) < 2 || rest[0].Type != compiler.TokenEqual {
		return 0
	}
	sign := int32(1)
	rest = rest[1:]
	switch rest[0].Type {
	case compiler.TokenMinus:
		sign = -1
		rest = rest[1:]
	case compiler.TokenPlus:
		rest = rest[1:]
	}
	if len(rest) == 0 || rest[0].Type != compiler.TokenUnsignedInteger {
		return 0
	}
	return sign * rest[0].Value
}

func diagnose(text string, result analysis) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	if result.err == nil {
		return diagnostics
	}

	e := result.err
	severity := protocol.DiagnosticSeverityError
	source := lspName
	message := e.Kind.String()
	if e.Detail != "" {
		message += ": " + e.Detail
	}

	diagnostics = append(diagnostics, protocol.Diagnostic{
		Range:    tokenRange(e.Pos, lexemeLen(text, e.Pos.Offset)),
		Severity: &severity,
		Source:   &source,
		Message:  fmt.Sprintf("%s error: %s", e.Kind.Category(), message),
	})
	return diagnostics
}

var keywordDocs = map[string]string{
	"begin": "Opens the program block.",
	"end":   "Closes the program block.",
	"const": "`const NAME = [+|-]INTEGER;` declares a constant.",
	"var":   "`var NAME [= EXPR];` declares a variable. Without an initializer the variable must be assigned before use.",
	"print": "`print(EXPR);` writes the value followed by a newline.",
}

func hover(result analysis, word string) *protocol.Hover {
	if doc, ok := keywordDocs[word]; ok {
		return markdownHover(fmt.Sprintf("**%s**\n\n%s", word, doc))
	}

	for _, sym := range result.symbols {
		if sym.Name != word {
			continue
		}

		var b strings.Builder
		fmt.Fprintf(&b, "**%s**: %s, slot %d", sym.Name, sym.Class, sym.Slot)
		if d, ok := result.decls[word]; ok {
			if d.constant {
				fmt.Fprintf(&b, "\n\n`const %s = %d`", word, d.value)
			}
			fmt.Fprintf(&b, "\n\nDeclared at line %d.", d.pos.Line)
		}
		return markdownHover(b.String())
	}
	return nil
}

func markdownHover(value string) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
	}
}

func complete(result analysis, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem

	keywords := make([]string, 0, len(keywordDocs))
	for kw := range keywordDocs {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)

	for _, kw := range keywords {
		if !strings.HasPrefix(kw, prefix) {
			continue
		}
		kind := protocol.CompletionItemKindKeyword
		label := kw
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			InsertText: &label,
		})
	}

	for _, sym := range result.symbols {
		if !strings.HasPrefix(sym.Name, prefix) {
			continue
		}
		kind := protocol.CompletionItemKindVariable
		if sym.Class == compiler.ClassConstant {
			kind = protocol.CompletionItemKindConstant
		}
		detail := sym.Class.String()
		name := sym.Name
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &name,
		})
	}

	return items
}

func references(result analysis, word string, includeDecl bool) []protocol.Range {
	decl, declared := result.decls[word]

	var ranges []protocol.Range
	for _, tok := range result.tokens {
		if tok.Type != compiler.TokenIdentifier || tok.Literal != word {
			continue
		}
		if !includeDecl && declared && tok.Pos == decl.pos {
			continue
		}
		ranges = append(ranges, tokenRange(tok.Pos, len(word)))
	}
	return ranges
}

// --- Text helpers ---

func tokenRange(pos compiler.Position, length int) protocol.Range {
	start := protocol.Position{
		Line:      protocol.UInteger(max(pos.Line-1, 0)),
		Character: protocol.UInteger(max(pos.Column-1, 0)),
	}
	end := start
	end.Character += protocol.UInteger(length)
	return protocol.Range{Start: start, End: end}
}

// lexemeLen returns the length of the word or symbol run starting at offset.
func lexemeLen(text string, offset int) int {
	if offset >= len(text) {
		return 0
	}
	end := offset
	if isWordByte(text[offset]) {
		for end < len(text) && isWordByte(text[end]) {
			end++
		}
		return end - offset
	}
	for end < len(text) && !isWordByte(text[end]) && !isSpaceByte(text[end]) {
		end++
	}
	return end - offset
}

func isWordByte(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9'
}

func isSpaceByte(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\v' || ch == '\f'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := min(int(pos.Character), len(line))

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isWordByte(line[start-1]) {
		start--
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := min(int(pos.Character), len(line))

	start := col
	for start > 0 && isWordByte(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isWordByte(line[end]) {
		end++
	}

	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
