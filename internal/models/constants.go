// Package models contains data types and constants shared by the chat
// client, the controller and the terminal UI.
package models

// Backend defaults
const (
	DefaultBaseURL   = "http://127.0.0.1:8000"
	DefaultAPIPrefix = "/chat"
)

// Endpoint paths, relative to the API prefix
const (
	PathSessions        = "/sessions"
	PathSessionMessages = "/sessions/%d/messages"
	PathSessionsAll     = "/sessions/all"
	PathStream          = "/stream"
	PathSend            = "/"
	PathUpload          = "/upload"
)

// Fixed assistant texts
const (
	// GreetingInitial is shown when the client starts with no session selected.
	GreetingInitial = "Ultron Mark II Online. Select a memory archive or initialize a new directive."
	// GreetingNewSession is shown after the user starts a new session.
	GreetingNewSession = "New sequence initialized. Awaiting input."
	// FailureText is appended when a send fails or is aborted.
	FailureText = "System Malfunction: Connection interrupted."
)

// MaxTitleLength is the number of message characters the backend keeps when
// it titles a session created by a first message.
const MaxTitleLength = 30

// AttachmentMarker formats the inline marker inserted into a draft after an
// upload succeeds.
func AttachmentMarker(filename string) string {
	return " [Attached: " + filename + "] "
}
