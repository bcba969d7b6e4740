package devserver

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// tickingClock advances one second per call
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	opts.Logger = zerolog.Nop()
	opts.UploadDir = t.TempDir()
	if opts.Now == nil {
		opts.Now = tickingClock()
	}
	srv, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func TestSessionsLifecycle(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/chat/sessions", map[string]string{"title": "Dentist"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}
	created := decode[sessionJSON](t, body)
	if created.ID != 1 || created.Title != "Dentist" {
		t.Errorf("created = %+v", created)
	}

	doJSON(t, http.MethodPost, ts.URL+"/chat/sessions", map[string]string{"title": "Gym"})

	_, body = doJSON(t, http.MethodGet, ts.URL+"/chat/sessions", nil)
	list := decode[[]sessionJSON](t, body)
	if len(list) != 2 || list[0].Title != "Gym" {
		t.Errorf("list = %+v, want newest first", list)
	}

	_, body = doJSON(t, http.MethodDelete, ts.URL+"/chat/sessions/all", nil)
	cleared := decode[map[string]any](t, body)
	if cleared["sessions_deleted"] != float64(2) {
		t.Errorf("cleared = %v", cleared)
	}

	_, body = doJSON(t, http.MethodGet, ts.URL+"/chat/sessions", nil)
	if got := decode[[]sessionJSON](t, body); len(got) != 0 {
		t.Errorf("sessions after clear = %+v", got)
	}
}

func TestStream_NewSession(t *testing.T) {
	ts := newTestServer(t, Options{Reply: func(string) string { return "Sure, let's plan your week." }})

	message := "Plan my week around the product launch"
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/chat/stream", map[string]any{"message": message})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}
	if string(body) != "Sure, let's plan your week." {
		t.Errorf("body = %q", body)
	}

	_, data := doJSON(t, http.MethodGet, ts.URL+"/chat/sessions", nil)
	list := decode[[]sessionJSON](t, data)
	if len(list) != 1 {
		t.Fatalf("sessions = %+v", list)
	}
	if list[0].Title != message[:30] {
		t.Errorf("title = %q, want first 30 characters", list[0].Title)
	}

	_, data = doJSON(t, http.MethodGet, ts.URL+"/chat/sessions/1/messages", nil)
	msgs := decode[[]messageJSON](t, data)
	if len(msgs) != 2 {
		t.Fatalf("messages = %+v", msgs)
	}
	if msgs[0].Role != "user" || msgs[0].Content != message {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "Sure, let's plan your week." {
		t.Errorf("second message = %+v", msgs[1])
	}
	if msgs[1].AttachmentURL != nil {
		t.Error("attachment_url should be null")
	}
}

func TestStream_ExistingAndUnknownSession(t *testing.T) {
	ts := newTestServer(t, Options{Reply: func(string) string { return "ok" }})

	doJSON(t, http.MethodPost, ts.URL+"/chat/sessions", map[string]string{"title": "Existing"})

	doJSON(t, http.MethodPost, ts.URL+"/chat/stream", map[string]any{"message": "hi", "session_id": 1})
	_, data := doJSON(t, http.MethodGet, ts.URL+"/chat/sessions", nil)
	if list := decode[[]sessionJSON](t, data); len(list) != 1 {
		t.Fatalf("known session should be reused, got %+v", list)
	}

	doJSON(t, http.MethodPost, ts.URL+"/chat/stream", map[string]any{"message": "hello", "session_id": 99})
	_, data = doJSON(t, http.MethodGet, ts.URL+"/chat/sessions", nil)
	list := decode[[]sessionJSON](t, data)
	if len(list) != 2 || list[0].ID != 2 {
		t.Errorf("unknown session should start a new one, got %+v", list)
	}
}

func TestSend(t *testing.T) {
	ts := newTestServer(t, Options{Reply: func(string) string { return "Done." }})

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/chat/", map[string]any{"message": "Book a call"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	out := decode[map[string]any](t, body)
	if out["response"] != "Done." || out["session_id"] != float64(1) {
		t.Errorf("response = %v", out)
	}

	_, data := doJSON(t, http.MethodGet, ts.URL+"/chat/sessions", nil)
	if list := decode[[]sessionJSON](t, data); list[0].Title != "Book a call..." {
		t.Errorf("title = %q", list[0].Title)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/chat/", map[string]any{"message": "x", "session_id": 42})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session status = %d", resp.StatusCode)
	}
	if detail := decode[map[string]string](t, body)["detail"]; detail != "Session not found" {
		t.Errorf("detail = %q", detail)
	}
}

func TestValidation(t *testing.T) {
	ts := newTestServer(t, Options{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"stream bad json", http.MethodPost, "/chat/stream", "{"},
		{"stream empty message", http.MethodPost, "/chat/stream", `{"message":""}`},
		{"send missing message", http.MethodPost, "/chat/", `{}`},
		{"create without title", http.MethodPost, "/chat/sessions", `{}`},
		{"messages bad id", http.MethodGet, "/chat/sessions/abc/messages", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, ts.URL+tt.path, strings.NewReader(tt.body))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", resp.StatusCode)
			}
			data, _ := io.ReadAll(resp.Body)
			if decode[map[string]string](t, data)["detail"] == "" {
				t.Error("error body should carry a detail")
			}
		})
	}
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t, Options{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "agenda.png")
	_, _ = part.Write([]byte("PNGDATA"))
	_ = mw.Close()

	resp, err := http.Post(ts.URL+"/chat/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}

	out := decode[map[string]string](t, data)
	if out["filename"] != "agenda.png" {
		t.Errorf("filename = %q", out["filename"])
	}
	if !strings.HasPrefix(out["url"], "/uploads/") || !strings.HasSuffix(out["url"], ".png") {
		t.Errorf("url = %q", out["url"])
	}

	resp, err = http.Get(ts.URL + out["url"])
	if err != nil {
		t.Fatal(err)
	}
	content, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(content) != "PNGDATA" {
		t.Errorf("served content = %q", content)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	ts := newTestServer(t, Options{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "x")
	_ = mw.Close()

	resp, err := http.Post(ts.URL+"/chat/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Options{})
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestFragments(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		words int
		want  int
	}{
		{"two words each", "one two three four five", 2, 3},
		{"single chunk", "hello", 2, 1},
		{"zero clamps to one", "a b c", 0, 3},
		{"empty", "", 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fragments(tt.reply, tt.words)
			if len(got) != tt.want {
				t.Errorf("fragments = %q, want %d chunks", got, tt.want)
			}
			if strings.Join(got, "") != tt.reply {
				t.Errorf("joined fragments = %q, want %q", strings.Join(got, ""), tt.reply)
			}
		})
	}
}

func TestTruncateTitle(t *testing.T) {
	if got := truncateTitle("short", 30); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateTitle("äöüäöü", 3); got != "äöü" {
		t.Errorf("multi-byte truncation = %q", got)
	}
}

func TestIsoformat(t *testing.T) {
	whole := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	if got := isoformat(whole); got != "2025-03-10T09:30:00" {
		t.Errorf("isoformat = %q", got)
	}
	frac := whole.Add(1500 * time.Microsecond)
	if got := isoformat(frac); got != "2025-03-10T09:30:00.001500" {
		t.Errorf("isoformat = %q", got)
	}
}

func TestDefaultReply(t *testing.T) {
	if !strings.Contains(DefaultReply("Can you plan my WEEK?"), "draft for your week") {
		t.Error("week keyword should pick the planning reply")
	}
	if !strings.Contains(DefaultReply("water plants"), `"water plants"`) {
		t.Error("fallback reply should echo the directive")
	}
}
