// Package core provides the table normalizer and validation engine.
//
// # Error Codes Reference
//
// This file maps technical errors to user-friendly messages with codes for
// support reference. Finding codes (STR, INT, QLT) are listed in findings.go;
// the codes below cover failures outside the validation engine.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum size limit
//	          Action: Split the file or remove unused columns
//	          Patterns: "file too large"
//
//	FILE002 - Unreadable file: The file could not be read in its declared format
//	          Action: Export the file again as .csv or .xlsx
//	          Patterns: "unreadable file"
//
//	FILE003 - Too many files: Too many files in one upload
//	          Action: Upload fewer files at a time
//	          Patterns: "too many files"
//
//	FILE004 - No file: No file was selected
//	          Action: Please select a .csv or .xlsx file to upload
//	          Patterns: "no file provided"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - System busy: Too many uploads in progress
//	         Action: Please wait a moment and try again
//	         Patterns: "too many uploads"
//
//	UPL002 - Request cancelled: Request was cancelled
//	         Action: Please try again
//	         Patterns: "context canceled"
//
//	UPL003 - Request timeout: Request timed out
//	         Action: Try uploading smaller files or check your connection
//	         Patterns: "context deadline exceeded", "timeout"
//
//	UPL004 - Invalid request: The request body could not be read
//	         Action: Check the request format and try again
//	         Patterns: "invalid request"
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session expired: Editing session not found
//	         Action: The session may have expired. Please upload your files again
//	         Patterns: "session not found"
//
//	SES002 - Unknown table: No table at that position in the session
//	         Action: Refresh the session and try again
//	         Patterns: "unknown table"
//
//	SES003 - Unknown row: The row does not exist in that table
//	         Action: Refresh the session and try again
//	         Patterns: "row out of range"
//
// # Rules Errors (RUL001-RUL099)
//
//	RUL001 - Invalid rules: The rules document is not valid
//	         Action: Criterion values must be between 0 and 100 and every criterion needs a key
//	         Patterns: "invalid rules"
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Export blocked: The data still has validation errors
//	         Action: Fix every error finding before exporting
//	         Patterns: "export blocked"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns are defined
// before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file or remove unused columns",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unreadable file",
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Export the file again as .csv or .xlsx",
			Code:    "FILE002",
		},
	},
	{
		pattern: "too many files",
		msg: UserMessage{
			Message: "Too many files in one upload",
			Action:  "Upload fewer files at a time",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a .csv or .xlsx file to upload",
			Code:    "FILE004",
		},
	},

	// Upload errors
	{
		pattern: "too many uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try uploading smaller files or check your connection",
			Code:    "UPL003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try uploading smaller files or check your connection",
			Code:    "UPL003",
		},
	},
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request could not be read",
			Action:  "Check the request format and try again",
			Code:    "UPL004",
		},
	},

	// Session errors
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Editing session not found",
			Action:  "The session may have expired. Please upload your files again",
			Code:    "SES001",
		},
	},
	{
		pattern: "unknown table",
		msg: UserMessage{
			Message: "Table not found in this session",
			Action:  "Refresh the session and try again",
			Code:    "SES002",
		},
	},
	{
		pattern: "row out of range",
		msg: UserMessage{
			Message: "Row not found in this table",
			Action:  "Refresh the session and try again",
			Code:    "SES003",
		},
	},

	// Rules errors
	{
		pattern: "invalid rules",
		msg: UserMessage{
			Message: "The rules document is not valid",
			Action:  "Criterion values must be between 0 and 100 and every criterion needs a key",
			Code:    "RUL001",
		},
	},

	// Export errors
	{
		pattern: "export blocked",
		msg: UserMessage{
			Message: "The data still has validation errors",
			Action:  "Fix every error finding before exporting",
			Code:    "EXP001",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// Support staff should check application logs for the original technical
// error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching pattern, or ERR000 when nothing matches.
//
// Example:
//
//	msg := MapError(fmt.Errorf("normalize: %w", ErrFileTooLarge))
//	// msg.Code == "FILE001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
