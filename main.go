// =============================================================================
// CFDI Stamp Reconciler - Main Entry Point
// =============================================================================
//
// This is the main entry point for the CFDI Stamp Reconciler CLI application.
// It initializes the Cobra CLI framework and delegates command execution to
// the cmd package.
//
// USAGE:
//   stamp-reconciler generate       - Generate querys.sql/search.sql per company
//   stamp-reconciler validate       - Check XMLs and index ledgers without writing
//   stamp-reconciler verify         - Replay generated SQL against in-memory SQLite
//   stamp-reconciler version        - Display the application version
//
// ARCHITECTURE:
//   This application follows a modular design where:
//   - cmd/           : Contains all CLI command definitions (Cobra)
//   - internal/      : Contains core business logic (not for external import)
//   - pkg/           : Contains shared utilities
//
// =============================================================================

package main

import (
	"github.com/cfdi-tools/stamp-reconciler/cmd"
)

// main is the entry point of the application.
// It simply calls the Execute function from the cmd package, which
// initializes and runs the Cobra CLI.
func main() {
	cmd.Execute()
}
