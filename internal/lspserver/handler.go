// Package lspserver implements an LSP server over z0's analyzer: on
// open/change/save of a .ll document, it parses the document and runs the
// same internal/driver.Run the CLI runs, republishing the result as
// textDocument/publishDiagnostics instead of printing it.
package lspserver

import (
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/llir/llvm/asm"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"z0/internal/config"
	"z0/internal/diag"
	"z0/internal/driver"
)

// Handler implements the LSP methods z0-lsp wires up. One Handler serves
// every open document; per-document state lives in the mutex-guarded maps
// below.
type Handler struct {
	cfg config.Config

	mu      sync.RWMutex
	content map[string]string
}

// NewHandler builds a Handler analyzing documents with cfg (loaded once at
// server startup, same as cmd/z0's flag/config loading).
func NewHandler(cfg config.Config) *Handler {
	return &Handler{
		cfg:     cfg,
		content: make(map[string]string),
	}
}

// Initialize advertises the server's capabilities: open/close/full-change
// sync only. z0 has no source grammar of its own to offer completion or
// semantic tokens for (its input is already-compiled IR), so neither
// capability is advertised.
func (h *Handler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
				Save:      &protocol.SaveOptions{IncludeText: ptrBool(true)},
			},
		},
	}, nil
}

func (h *Handler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (h *Handler) Shutdown(ctx *glsp.Context) error {
	return nil
}

func (h *Handler) SetTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// TextDocumentDidOpen analyzes the document's initial content.
func (h *Handler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	return h.analyzeAndPublish(ctx, params.TextDocument.URI, params.TextDocument.Text)
}

// TextDocumentDidChange re-analyzes on every full-document change, per the
// TextDocumentSyncKindFull capability advertised above.
func (h *Handler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	change, ok := params.ContentChanges[len(params.ContentChanges)-1].(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return nil
	}
	return h.analyzeAndPublish(ctx, params.TextDocument.URI, change.Text)
}

// TextDocumentDidSave re-analyzes on save, falling back to the cached
// content when the save notification omits the document text.
func (h *Handler) TextDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	if params.Text == nil {
		h.mu.RLock()
		text, ok := h.content[string(params.TextDocument.URI)]
		h.mu.RUnlock()
		if !ok {
			return nil
		}
		return h.analyzeAndPublish(ctx, params.TextDocument.URI, text)
	}
	return h.analyzeAndPublish(ctx, params.TextDocument.URI, *params.Text)
}

// TextDocumentDidClose drops the document's cached content.
func (h *Handler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	h.mu.Lock()
	delete(h.content, string(params.TextDocument.URI))
	h.mu.Unlock()
	return nil
}

// analyzeAndPublish parses text as LLVM IR, runs the analyzer over it, and
// publishes the resulting diagnostics, replacing whatever was previously
// published for this document (an empty slice clears stale diagnostics,
// matching the LSP convention for "now clean").
func (h *Handler) analyzeAndPublish(ctx *glsp.Context, uri protocol.DocumentUri, text string) error {
	h.mu.Lock()
	h.content[string(uri)] = text
	h.mu.Unlock()

	path, err := uriToPath(string(uri))
	if err != nil {
		return fmt.Errorf("invalid document URI %s: %w", uri, err)
	}

	m, err := asm.ParseString(path, text)
	if err != nil {
		ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
			URI:         uri,
			Diagnostics: []protocol.Diagnostic{parseErrorDiagnostic(err)},
		})
		return nil
	}

	rep := diag.NewReporter(discardWriter{}, discardWriter{})
	results, _ := driver.Run(m, h.cfg, rep)

	diagnostics := make([]protocol.Diagnostic, 0)
	for _, res := range results {
		diagnostics = append(diagnostics, resultToDiagnostics(res)...)
	}

	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
	return nil
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func parseErrorDiagnostic(err error) protocol.Diagnostic {
	return protocol.Diagnostic{
		Range:    zeroRange(),
		Severity: ptrSeverity(protocol.DiagnosticSeverityError),
		Source:   ptrString("z0"),
		Message:  fmt.Sprintf("failed to parse IR: %v", err),
	}
}

// resultToDiagnostics turns one function's driver.Result into LSP
// diagnostics: the fatal diagnostic (if any), with its counterexample
// folded into the message body, plus one diagnostic per warning.
func resultToDiagnostics(res driver.Result) []protocol.Diagnostic {
	var out []protocol.Diagnostic
	if res.Fatal != nil {
		out = append(out, toDiagnostic(*res.Fatal, protocol.DiagnosticSeverityError))
	}
	for _, w := range res.Warnings {
		out = append(out, toDiagnostic(w, protocol.DiagnosticSeverityWarning))
	}
	return out
}

func toDiagnostic(d diag.Diagnostic, severity protocol.DiagnosticSeverity) protocol.Diagnostic {
	msg := fmt.Sprintf("[%s] %s: %s", d.Kind, d.Function, d.Message)
	if len(d.Counterexample) > 0 {
		msg = msg + "\ncounterexample: " + strings.Join(d.Counterexample, ", ")
	}
	return protocol.Diagnostic{
		Range:    zeroRange(),
		Severity: ptrSeverity(severity),
		Source:   ptrString("z0"),
		Message:  msg,
	}
}

// zeroRange anchors every diagnostic at the document start: z0's
// diagnostics are identified by IR function/value identity, not by a
// source span, since the input is already-compiled IR with no
// source-position information of its own.
func zeroRange() protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: 0, Character: 0},
		End:   protocol.Position{Line: 0, Character: 1},
	}
}

func uriToPath(rawURI string) (string, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return "", fmt.Errorf("invalid URI %s: %w", rawURI, err)
	}
	path := u.Path
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && len(path) > 3 && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path), nil
}

func ptrBool(b bool) *bool                                                       { return &b }
func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind { return &k }
func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity     { return &s }
func ptrString(s string) *string                                                { return &s }
