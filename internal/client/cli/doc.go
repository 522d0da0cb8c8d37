// Package cli is the coach command-line client.
//
// Run parses the global flags, loads the configuration and dispatches one
// command. The dashboard command starts a read-eval-print loop that accepts
// the same commands and keeps running when one of them fails.
//
// All workout and goal commands work offline against the local store. After
// a change the App pushes it right away when auto_sync is on and a session
// exists; a failed automatic sync only prints a warning.
package cli
