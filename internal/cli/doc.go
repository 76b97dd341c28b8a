// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// builds the nodeweave command tree with cobra, translates persistent flags
// into the application's configuration and maps failures to ExitError
// codes:
//
//	1  the command ran and failed (evaluation errors, unreadable documents)
//	2  the command line or configuration is invalid
package cli
