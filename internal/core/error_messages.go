package core

// # Error Codes Reference
//
// User-facing errors carry a code that users can quote when asking for help.
// Codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: The file exceeds the upload size limit
//	          Patterns: "file too large"
//	FILE002 - Invalid CSV: The file is not a valid CSV
//	          Patterns: "invalid csv"
//	FILE003 - Unsupported format: Only .csv, .xlsx, .xlsm and .xls are accepted
//	          Patterns: "unsupported file format"
//	FILE004 - No file: No file was selected
//	          Patterns: "no file provided"
//	FILE005 - Empty file: The file has no header row
//	          Patterns: "empty file"
//	FILE006 - Spreadsheet: The workbook or sheet could not be read
//	          Patterns: "sheet not found", "read workbook", "read sheet"
//
// # Mapping Errors (MAP001-MAP099)
//
//	MAP001 - Link not mapped: The link field has no column or text
//	         Patterns: "mapping incomplete"
//	MAP002 - Unknown column: A field points at a column that does not exist
//	         Patterns: "unknown column", "unknown slot"
//
// # Generation Errors (GEN001-GEN099)
//
//	GEN001 - No rows: The file has no data rows
//	GEN002 - Nothing generated: No row had a usable link
//	GEN003 - Invalid style: The design settings are invalid
//	GEN004 - Aborted: Generation stopped on an unrecoverable error
//	GEN005 - Format: The output format is not supported
//	GEN006 - No preview: The first row has no link to preview
//	GEN007 - No output: There was nothing to encode
//
// # Template Errors (TPL001-TPL099)
//
//	TPL001 - Limit reached, TPL002 - Not found, TPL003 - Bad share code,
//	TPL004 - Missing name, TPL005 - No template storage configured
//
// # Session Errors (UPL001-UPL099)
//
//	UPL002 - Busy: A batch is already running or all slots are taken
//	UPL003 - Session expired: The upload session is gone
//	UPL004 - Download expired: The archive was already downloaded or expired
//	UPL005 - Timeout: The request timed out
//
// # Request (REQ001), Rate Limiting (RATE001) and Default (ERR000)
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

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

var errorPatterns = []errorPattern{
	// File errors
	{"file too large", UserMessage{"The file exceeds the upload size limit", "Split the file or remove unused sheets", "FILE001"}},
	{"invalid csv", UserMessage{"The file is not a valid CSV", "Check quoting and save the file as comma-separated", "FILE002"}},
	{"unsupported file format", UserMessage{"This file type is not supported", "Upload a .csv, .xlsx, .xlsm or .xls file", "FILE003"}},
	{"no file provided", UserMessage{"No file was selected", "Choose a CSV or spreadsheet file to upload", "FILE004"}},
	{"empty file", UserMessage{"The file has no header row", "Make sure the first row holds column names", "FILE005"}},
	{"sheet not found", UserMessage{"That sheet does not exist in the workbook", "Pick one of the listed sheets", "FILE006"}},
	{"read workbook", UserMessage{"The spreadsheet could not be read", "Re-save the file as .xlsx and try again", "FILE006"}},
	{"read sheet", UserMessage{"The sheet could not be read", "Re-save the file as .xlsx and try again", "FILE006"}},

	// Mapping errors
	{"mapping incomplete", UserMessage{"The link field is not mapped", "Choose the column that holds the links, or enter a fixed link", "MAP001"}},
	{"unknown column", UserMessage{"A field is mapped to a column that does not exist", "Re-select the column for each field", "MAP002"}},
	{"unknown slot", UserMessage{"Unknown mapping field", "Use url, firstName, lastName or platform", "MAP002"}},

	// Generation errors
	{"no rows to generate", UserMessage{"The file has no data rows", "Add rows below the header row", "GEN001"}},
	{"nothing generated", UserMessage{"No QR codes were generated", "Check that the link column has values", "GEN002"}},
	{"invalid style", UserMessage{"The design settings are invalid", "Review colors, sizes and the logo image", "GEN003"}},
	{"batch aborted", UserMessage{"Generation stopped on an unexpected error", "Try again; if it repeats, try a different format or design", "GEN004"}},
	{"unsupported output format", UserMessage{"This output format is not supported", "Choose SVG, PNG or JPEG", "GEN005"}},
	{"no preview available", UserMessage{"The first row has no link to preview", "Map the link field or fill the first row", "GEN006"}},
	{"renderer produced no output", UserMessage{"There was nothing to encode", "Enter some text or a link", "GEN007"}},

	// Template errors
	{"template limit reached", UserMessage{"You have reached the template limit", "Delete a template before saving a new one", "TPL001"}},
	{"template not found", UserMessage{"That template no longer exists", "Refresh the template list", "TPL002"}},
	{"invalid share code", UserMessage{"The share code is not valid", "Copy the whole code and try again", "TPL003"}},
	{"template name is required", UserMessage{"The template needs a name", "Enter a name and save again", "TPL004"}},
	{"template storage is not configured", UserMessage{"Design templates are not available", "Ask the administrator to configure template storage", "TPL005"}},

	// Session errors
	{"batch already running", UserMessage{"A batch is already running for this file", "Wait for it to finish", "UPL002"}},
	{"too many concurrent batch runs", UserMessage{"The system is busy generating other batches", "Please wait a moment and try again", "UPL002"}},
	{"session not found", UserMessage{"Upload session not found", "The session may have expired. Please upload the file again", "UPL003"}},
	{"download not found", UserMessage{"The archive is no longer available", "Generate the batch again", "UPL004"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or export size", "UPL005"}},

	// Request errors
	{"invalid request body", UserMessage{"The request could not be read", "Reload the page and try again", "REQ001"}},

	// Rate limiting
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when no pattern matches (ERR000). The technical
// error is in the logs.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. If no
// pattern matches, the ERR000 fallback is returned.
//
// Example:
//
//	msg := MapError(ErrMappingIncomplete)
//	// msg.Code == "MAP001"
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

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
