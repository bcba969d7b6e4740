package devserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ultronhq/ultron/internal/models"
)

// maxUploadMemory is the multipart memory budget; larger parts spill to disk
const maxUploadMemory = 32 << 20

type chatRequest struct {
	Message   string `json:"message"`
	SessionID *int   `json:"session_id"`
}

// writeJSON sends a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeDetail sends an error in the backend's {"detail": ...} shape
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return req, false
	}
	if req.Message == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "message is required")
		return req, false
	}
	return req, true
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.list())
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title *string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == nil {
		writeDetail(w, http.StatusUnprocessableEntity, "title is required")
		return
	}
	writeJSON(w, http.StatusOK, s.store.createSession(*body.Title))
}

func (s *Server) clearAll(w http.ResponseWriter, r *http.Request) {
	n := s.store.clear()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "success",
		"message":          fmt.Sprintf("Cleared %d chat sessions.", n),
		"sessions_deleted": n,
	})
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "session id must be an integer")
		return
	}
	writeJSON(w, http.StatusOK, s.store.messages(id))
}

// stream replies in fragments. A missing or unknown session id starts a new
// session titled after the message. The reply is stored only once it has
// been streamed completely.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	var id int
	if req.SessionID != nil && s.store.exists(*req.SessionID) {
		id = *req.SessionID
	} else {
		id = s.store.createSession(truncateTitle(req.Message, models.MaxTitleLength)).ID
	}
	s.store.addMessage(id, string(models.RoleUser), req.Message)

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	reply := s.opts.Reply(req.Message)
	for i, frag := range fragments(reply, s.opts.WordsPerFragment) {
		if i > 0 && s.opts.FragmentDelay > 0 {
			select {
			case <-time.After(s.opts.FragmentDelay):
			case <-r.Context().Done():
				s.opts.Logger.Debug().Int("session_id", id).Msg("client left mid-stream")
				return
			}
		}
		if _, err := io.WriteString(w, frag); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	s.store.addMessage(id, string(models.RoleAssistant), reply)
}

// send is the non-streaming variant; it titles new sessions with an ellipsis
func (s *Server) send(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	var id int
	if req.SessionID != nil && *req.SessionID != 0 {
		id = *req.SessionID
		if !s.store.exists(id) {
			writeDetail(w, http.StatusNotFound, "Session not found")
			return
		}
	} else {
		id = s.store.createSession(truncateTitle(req.Message, models.MaxTitleLength) + "...").ID
	}

	reply := s.opts.Reply(req.Message)
	s.store.addMessage(id, string(models.RoleUser), req.Message)
	s.store.addMessage(id, string(models.RoleAssistant), reply)

	writeJSON(w, http.StatusOK, map[string]any{
		"response":   reply,
		"session_id": id,
	})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "expected a multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()

	name := uuid.NewString() + "." + extension(header.Filename)
	dst, err := os.Create(filepath.Join(s.opts.UploadDir, name))
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"url":      "/uploads/" + name,
		"filename": header.Filename,
	})
}

// extension returns the text after the last dot, or the whole name when
// there is none
func extension(filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return filename[i+1:]
	}
	return filename
}
