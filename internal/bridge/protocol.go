// Package bridge runs an external parser as a persistent child process
// speaking line-delimited JSON over stdin/stdout, and exposes it as a
// LanguageSupport so the core consumes it like any other parser.
package bridge

import "encoding/json"

// Commands understood by the child process.
const (
	CommandParseContent = "parse_content"
	CommandParseFile    = "parse_file"
	CommandShutdown     = "shutdown"
)

// Request is one line sent to the child process.
type Request struct {
	ID      string          `json:"id"`
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is one line read back. It echoes the request id and carries
// either a result or an error with an optional traceback.
type Response struct {
	ID        string          `json:"id"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Traceback string          `json:"traceback,omitempty"`
}

// ParseContentPayload is the payload for parse_content requests.
type ParseContentPayload struct {
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// ParseFilePayload is the payload for parse_file requests.
type ParseFilePayload struct {
	FilePath string `json:"filePath"`
	Language string `json:"language"`
}
