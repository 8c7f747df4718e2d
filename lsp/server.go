// Package lsp serves lox diagnostics, completion, hover and navigation to
// editors over the Language Server Protocol.
package lsp

import (
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"
)

const lspName = "lox-lsp"

var log = commonlog.GetLogger("lox.lsp")

// Server bridges LSP editor features to the lox compiler.
type Server struct {
	mu   sync.Mutex
	docs map[string]*document // URI → analyzed content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// New creates a language server. Call Run to serve it.
func New(version string) *Server {
	s := &Server{
		docs:    make(map[string]*document),
		version: version,
	}

	// Only open documents carry state.
	nop := func(*glsp.Context) error { return nil }
	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: func(*glsp.Context, *protocol.InitializedParams) error { return nil },
		Shutdown:    nop,
		SetTrace:    func(*glsp.Context, *protocol.SetTraceParams) error { return nil },

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

// Run serves on stdio. Blocks until the client disconnects.
func (s *Server) Run() error {
	return s.server.RunStdio()
}

// open analyzes text and stores it as the current content of uri.
func (s *Server) open(uri protocol.DocumentUri, text string) *document {
	doc := analyze(text)
	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()
	log.Debugf("analyzed %s: %d tokens, %d diagnostics", uri, len(doc.tokens), len(doc.diagnostics))
	return doc
}

func (s *Server) close(uri protocol.DocumentUri) {
	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()
}

func (s *Server) lookup(uri protocol.DocumentUri) (*document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[string(uri)]
	return doc, ok
}

// initialize advertises whole-document sync plus the features a
// document analysis can answer.
func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Infof("%s %s initializing", lspName, s.version)

	openClose := true
	syncKind := protocol.TextDocumentSyncKindFull
	caps := s.handler.CreateServerCapabilities()
	caps.TextDocumentSync = &protocol.TextDocumentSyncOptions{OpenClose: &openClose, Change: &syncKind}
	caps.CompletionProvider = &protocol.CompletionOptions{}
	caps.HoverProvider = true
	caps.DefinitionProvider = true
	caps.ReferencesProvider = true

	info := &protocol.InitializeResultServerInfo{Name: lspName, Version: &s.version}
	return protocol.InitializeResult{Capabilities: caps, ServerInfo: info}, nil
}

// --- Document synchronization ---

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	publishDiagnostics(ctx, uri, s.open(uri, params.TextDocument.Text).lspDiagnostics())
	return nil
}

// textDocumentDidChange reanalyzes the document. Under full sync only the
// last change matters: it carries the whole text.
func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	n := len(params.ContentChanges)
	if n == 0 {
		return nil
	}
	whole, ok := params.ContentChanges[n-1].(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		log.Warningf("ignoring incremental change to %s", params.TextDocument.URI)
		return nil
	}
	uri := params.TextDocument.URI
	publishDiagnostics(ctx, uri, s.open(uri, whole.Text).lspDiagnostics())
	return nil
}

// textDocumentDidClose forgets the document and clears its diagnostics.
func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.close(params.TextDocument.URI)
	publishDiagnostics(ctx, params.TextDocument.URI, []protocol.Diagnostic{})
	return nil
}

func publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, diagnostics []protocol.Diagnostic) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// --- Language features ---

func (s *Server) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc, ok := s.lookup(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := doc.prefixAt(params.Position)
	if prefix == "" {
		return nil, nil
	}
	return doc.complete(prefix), nil
}

func (s *Server) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, ok := s.lookup(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return doc.hover(params.Position), nil
}

func (s *Server) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc, ok := s.lookup(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	locations := doc.definition(params.TextDocument.URI, params.Position)
	if locations == nil {
		return nil, nil
	}
	return locations, nil
}

func (s *Server) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	doc, ok := s.lookup(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return doc.references(params.TextDocument.URI, params.Position), nil
}
