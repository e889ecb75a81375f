// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Sync operations
	OpSync      Op = "sync plays"
	OpSyncClear Op = "clear caches"

	// Last.fm account
	OpAuthStart  Op = "start last.fm authorization"
	OpAuthFinish Op = "link last.fm account"
	OpLogout     Op = "unlink last.fm account"

	// Library
	OpLibraryOpen Op = "open library"

	// Diagnostics
	OpLogLoad     Op = "load sync log"
	OpHistoryLoad Op = "load scrobble history"
	OpStatusLoad  Op = "load status"

	// Background service
	OpDaemonStart Op = "start background service"

	// Initialization
	OpInitialize Op = "initialize application"
	OpConfigLoad Op = "load configuration"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
