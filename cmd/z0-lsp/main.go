// SPDX-License-Identifier: Apache-2.0
package main

import (
	"log"
	"os"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"z0/internal/config"
	"z0/internal/lspserver"
)

const lsName = "z0"

var version = "0.0.1"

func main() {
	commonlog.Configure(1, nil)

	cfg, err := config.Load(".z0.yml")
	if err != nil {
		log.Println("z0-lsp: using default configuration:", err)
		cfg = config.Default()
	}

	h := lspserver.NewHandler(cfg)
	handler := protocol.Handler{
		Initialize:            h.Initialize,
		Initialized:           h.Initialized,
		Shutdown:              h.Shutdown,
		SetTrace:              h.SetTrace,
		TextDocumentDidOpen:   h.TextDocumentDidOpen,
		TextDocumentDidChange: h.TextDocumentDidChange,
		TextDocumentDidSave:   h.TextDocumentDidSave,
		TextDocumentDidClose:  h.TextDocumentDidClose,
	}

	s := server.NewServer(&handler, lsName, false)

	log.Println("Starting z0 LSP server...")
	if err := s.RunStdio(); err != nil {
		log.Println("Error starting z0 LSP server:", err)
		os.Exit(1)
	}
}
