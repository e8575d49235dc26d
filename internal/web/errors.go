package web

// errors.go provides unified error response handling for the API.
//
// Technical errors are logged server-side with the request ID; clients
// receive a user-friendly message, an action suggestion where one exists,
// and a stable code they can quote to support.

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/partstock-io/partstock/internal/logging"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
	Code   string `json:"code"`
}

// userMessage pairs a technical error pattern with what the client sees.
type userMessage struct {
	pattern string
	message string
	action  string
	code    string
}

// messageTable maps error substrings to user-facing responses, first
// match wins. Codes: DB = database, IMP = import, PRT = parts, DS = datasheet.
var messageTable = []userMessage{
	{"connection refused", "Unable to reach the database", "Please try again in a few moments", "DB001"},
	{"connection reset", "The database connection was interrupted", "Please try again", "DB002"},
	{"deadline exceeded", "The operation timed out", "Try a smaller file or try again later", "DB003"},
	{"duplicate key", "A part with this identity already exists", "Check for duplicate rows in your CSV", "DB004"},
	{"missing header row", "The file has no header row", "Ensure the first row contains column names", "IMP001"},
	{"unsupported encoding", "The selected file encoding is not supported", "Use utf-8, latin-1, windows-1252 or utf-16", "IMP002"},
	{"header map", "The import column configuration is invalid", "Review the header map file", "IMP003"},
	{"category rules", "The category rule configuration is invalid", "Review the category rules file", "IMP004"},
	{"no file provided", "No file was selected", "Choose a CSV file to import", "IMP005"},
	{"request body too large", "The file exceeds the upload size limit", "Split the file into smaller chunks", "IMP006"},
	{"no import has run", "No import has been run yet", "Run an import first", "IMP007"},
	{"too many concurrent imports", "The server is busy with other imports", "Please retry in a moment", "IMP008"},
	{"part not found", "The part was not found", "It may have been deleted", "PRT001"},
	{"invalid part id", "The part id is not a valid UUID", "Check the id and try again", "PRT002"},
	{"no datasheet url", "This part has no datasheet URL", "Add a datasheet_url attribute first", "DS001"},
	{"fetch datasheet", "The datasheet could not be downloaded", "Check the URL and try again", "DS002"},
}

// mapError translates a technical error into a user-facing message.
func mapError(err error) (message, action, code string) {
	msg := strings.ToLower(err.Error())
	for _, um := range messageTable {
		if strings.Contains(msg, um.pattern) {
			return um.message, um.action, um.code
		}
	}
	return "An unexpected error occurred", "Please try again or contact support", "GEN001"
}

// respondError logs the technical error and writes the JSON error body.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	message, action, code := mapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", code,
	)

	respondJSON(w, statusCode, ErrorResponse{Error: message, Action: action, Code: code})
}

// respondJSON writes v as the JSON response body.
func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
