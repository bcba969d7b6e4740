// Package api provides the HTTP client for the assistant backend.
package api

// GJSON paths for extracting values from backend responses.
const (
	// FastAPI error envelope
	PathDetail = "detail"

	// Session object
	PathSessionID        = "id"
	PathSessionTitle     = "title"
	PathSessionUpdatedAt = "updated_at"

	// Message object
	PathMessageID         = "id"
	PathMessageRole       = "role"
	PathMessageContent    = "content"
	PathMessageTimestamp  = "timestamp"
	PathMessageAttachment = "attachment_url"

	// Non-streaming send response
	PathSendResponse  = "response"
	PathSendSessionID = "session_id"

	// DELETE /sessions/all response
	PathSessionsDeleted = "sessions_deleted"
	PathClearMessage    = "message"

	// Upload response
	PathUploadURL      = "url"
	PathUploadFilename = "filename"
)
