package core

// # Error Codes Reference
//
// User-facing messages with codes for support reference. Users quote the
// code; support looks it up here.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key            Patterns: "duplicate key", "violates unique"
//	DB002 - Value too long           Patterns: "value too long"
//	DB003 - Invalid stored value     Patterns: "invalid input syntax", "out of range"
//	DB004 - Connection refused       Patterns: "connection refused"
//	DB005 - Connection reset         Patterns: "connection reset"
//	DB006 - Timeout                  Patterns: "timeout"
//	DB007 - Deadlock                 Patterns: "deadlock"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date            Patterns: "invalid date"
//	VAL002 - Invalid integer         Patterns: "invalid integer"
//	VAL003 - Schema mismatch         Patterns: "schema_mismatch"
//	VAL004 - Row validation failed   Patterns: "row_errors"
//	VAL005 - Too many rows           Patterns: "too many rows"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large         Patterns: "file too large"
//	FILE002 - Malformed file         Patterns: "invalid csv", "invalid xlsx"
//	FILE003 - Encoding error         Patterns: "encoding error"
//	FILE004 - No file                Patterns: "no file provided"
//	FILE005 - Empty file             Patterns: "empty file"
//	FILE006 - Extension not allowed  Patterns: "extension not allowed"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL002 - System busy             Patterns: "too many uploads"
//	UPL004 - Request cancelled       Patterns: "context canceled"
//	UPL005 - Request timeout         Patterns: "context deadline exceeded"
//
// # Rule Errors (RULE001-RULE099)
//
//	RULE001 - Unknown rule           Patterns: "rule not found"
//	RULE002 - Rule not executable    Patterns: "rule has no validator"
//	RULE003 - Rule parameters        Patterns: "missing required params", "params of the wrong type"
//	RULE004 - Rule on unknown column Patterns: "is not part of the dataset", "undeclared column"
//
// # Project Errors (PRJ001-PRJ099)
//
//	PRJ001 - Project not found       Patterns: "project not found"
//	PRJ002 - Duplicate project       Patterns: "project name already exists"
//	PRJ003 - Invalid definition      Patterns: "invalid project definition"
//	PRJ004 - Table already exists    Patterns: "already exists"
//
// # Other
//
//	AUTH001 - Unauthorized           Patterns: "unauthorized", "token"
//	RATE001 - Rate limited           Patterns: "rate limit"
//	ERR000  - Unknown error          Fallback; check the logs for the original error.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

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
	patterns []string
	msg      UserMessage
}

var errorPatterns = []errorPattern{
	// Rule configuration comes first: its messages embed rule and column names.
	{[]string{"rule not found"}, UserMessage{
		Message: "A rule bound to this project does not exist",
		Action:  "Pick a rule from the validation catalog",
		Code:    "RULE001",
	}},
	{[]string{"rule has no validator"}, UserMessage{
		Message: "A rule bound to this project cannot be executed",
		Action:  "Contact support; the rule catalog is out of sync",
		Code:    "RULE002",
	}},
	{[]string{"missing required params", "params of the wrong type"}, UserMessage{
		Message: "A rule is missing parameters or has parameters of the wrong type",
		Action:  "Review the parameters of the project's rules",
		Code:    "RULE003",
	}},
	{[]string{"is not part of the dataset", "undeclared column"}, UserMessage{
		Message: "A rule targets a column the schema does not declare",
		Action:  "Bind rules only to declared columns",
		Code:    "RULE004",
	}},

	// Diagnostics
	{[]string{"schema_mismatch"}, UserMessage{
		Message: "The file's columns do not match the project schema",
		Action:  "Make the header row list exactly the declared columns",
		Code:    "VAL003",
	}},
	{[]string{"row_errors"}, UserMessage{
		Message: "Some rows failed validation",
		Action:  "Fix the listed rows and upload again",
		Code:    "VAL004",
	}},
	{[]string{"too many rows"}, UserMessage{
		Message: "The file has more rows than allowed",
		Action:  "Split the file into smaller files",
		Code:    "VAL005",
	}},

	// Projects
	{[]string{"project not found"}, UserMessage{
		Message: "Project not found",
		Action:  "It may have been deleted after a failed upload; declare it again",
		Code:    "PRJ001",
	}},
	{[]string{"project name already exists"}, UserMessage{
		Message: "A project with this name already exists",
		Action:  "Choose a different project name",
		Code:    "PRJ002",
	}},
	{[]string{"invalid project definition"}, UserMessage{
		Message: "The project definition is invalid",
		Action:  "Check table, column and rule names",
		Code:    "PRJ003",
	}},

	// Database
	{[]string{"duplicate key", "violates unique"}, UserMessage{
		Message: "A record with this key already exists",
		Action:  "Check for duplicate entries in your file",
		Code:    "DB001",
	}},
	{[]string{"value too long"}, UserMessage{
		Message: "A value is longer than its column allows (255 characters)",
		Action:  "Shorten the value or declare the column as text",
		Code:    "DB002",
	}},
	{[]string{"invalid input syntax", "out of range"}, UserMessage{
		Message: "A value does not fit its column type",
		Action:  "Check numbers and dates against the declared column types",
		Code:    "DB003",
	}},
	{[]string{"connection refused"}, UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{[]string{"connection reset"}, UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{[]string{"deadlock"}, UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},

	// Values
	{[]string{"invalid date"}, UserMessage{
		Message: "Invalid date format detected",
		Action:  "Use YYYY-MM-DD",
		Code:    "VAL001",
	}},
	{[]string{"invalid integer"}, UserMessage{
		Message: "Invalid whole number detected",
		Action:  "Integer columns accept whole numbers only",
		Code:    "VAL002",
	}},

	// Files
	{[]string{"file too large"}, UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}},
	{[]string{"invalid csv", "invalid xlsx", "unsupported format"}, UserMessage{
		Message: "The file could not be read as a table",
		Action:  "Ensure the file is a comma-separated CSV or an XLSX workbook",
		Code:    "FILE002",
	}},
	{[]string{"encoding error"}, UserMessage{
		Message: "File contains invalid characters",
		Action:  "Save the file with UTF-8 encoding",
		Code:    "FILE003",
	}},
	{[]string{"no file provided"}, UserMessage{
		Message: "No file was selected",
		Action:  "Please select a file to upload",
		Code:    "FILE004",
	}},
	{[]string{"empty file"}, UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a file with a header row",
		Code:    "FILE005",
	}},
	{[]string{"extension not allowed"}, UserMessage{
		Message: "This file type is not accepted",
		Action:  "Upload a .csv or .xlsx file",
		Code:    "FILE006",
	}},

	// Table provisioning, after the file patterns so it does not shadow them.
	{[]string{"already exists"}, UserMessage{
		Message: "The project's table already exists",
		Action:  "Use the re-upload endpoint or choose another table name",
		Code:    "PRJ004",
	}},

	// Upload process
	{[]string{"too many uploads"}, UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}},
	{[]string{"context canceled"}, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}},
	{[]string{"context deadline exceeded"}, UserMessage{
		Message: "Request timed out",
		Action:  "Try uploading a smaller file or check your connection",
		Code:    "UPL005",
	}},
	{[]string{"timeout"}, UserMessage{
		Message: "Operation timed out",
		Action:  "Try uploading a smaller file or try again later",
		Code:    "DB006",
	}},

	{[]string{"rate limit"}, UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
	{[]string{"unauthorized", "token"}, UserMessage{
		Message: "You are not signed in or your session expired",
		Action:  "Sign in again",
		Code:    "AUTH001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		for _, p := range ep.patterns {
			if strings.Contains(errStr, p) {
				return ep.msg
			}
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string { return e.User.Message }

func (e *UserError) Unwrap() error { return e.Technical }

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
