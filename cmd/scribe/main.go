// Package main provides the scribe CLI.
//
// Usage:
//
//	scribe [flags] <command> [args]
//
// Commands:
//
//	session    - Session lifecycle: create, list, show, live, complete, cancel
//	transcript - Show a session's persisted transcript
//	summarize  - Generate a SOAP note from a completed session
//	config     - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.scribe/config.yaml.
//	Use 'scribe config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/attunehealth/scribe/cmd/scribe/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
