package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ultronhq/ultron/internal/api"
	"github.com/ultronhq/ultron/internal/chat"
	"github.com/ultronhq/ultron/internal/config"
	apierrors "github.com/ultronhq/ultron/internal/errors"
	"github.com/ultronhq/ultron/internal/models"
)

func newTestModel(t *testing.T, mock *api.MockClient) (Model, *chat.Controller) {
	t.Helper()
	ctrl := chat.NewController(mock)
	t.Cleanup(ctrl.Close)

	cfg := config.DefaultConfig()
	cfg.Markdown.Style = "notty"
	m := NewModel(context.Background(), ctrl, Options{Config: cfg, BaseURL: "http://backend.test"})
	return resize(m, 120, 40), ctrl
}

func resize(m Model, w, h int) Model {
	nm, _ := m.Update(tea.WindowSizeMsg{Width: w, Height: h})
	return nm.(Model)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	nm, cmd := m.Update(msg)
	model, ok := nm.(Model)
	if !ok {
		t.Fatalf("Update returned %T", nm)
	}
	return model, cmd
}

func typeText(m Model, text string) Model {
	m.textarea.SetValue(text)
	return m
}

// drain waits for background work and feeds queued events to the model
func drain(t *testing.T, m Model, ctrl *chat.Controller) Model {
	t.Helper()
	ctrl.Wait()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	evs, err := ctrl.WaitEvents(ctx)
	if err != nil {
		return m
	}
	m, _ = update(t, m, eventsMsg{events: evs})
	return m
}

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func TestModel_InitialView(t *testing.T) {
	m, _ := newTestModel(t, &api.MockClient{})

	if !m.ready {
		t.Fatal("model should be ready after a window size message")
	}
	view := m.View()
	for _, want := range []string{"ULTRON", "Unsaved session", "Ultron Mark II Online", "Memory archives"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}

func TestModel_NotReadyView(t *testing.T) {
	ctrl := chat.NewController(&api.MockClient{})
	defer ctrl.Close()
	m := NewModel(context.Background(), ctrl, Options{Config: config.DefaultConfig()})
	if !strings.Contains(m.View(), "Initializing") {
		t.Error("view before sizing should show the initializing text")
	}
}

func TestModel_SendMessage(t *testing.T) {
	mock := &api.MockClient{Fragments: []string{"Sure", ", ", "let's plan."}}
	m, ctrl := newTestModel(t, mock)

	m = typeText(m, "  Plan my week  ")
	m, _ = update(t, m, enter)

	reqs := mock.StreamRequests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 stream request, got %d", len(reqs))
	}
	if reqs[0].Text != "Plan my week" {
		t.Errorf("sent text = %q", reqs[0].Text)
	}
	if m.textarea.Value() != "" {
		t.Error("input should be cleared after a send")
	}

	m = drain(t, m, ctrl)
	view := m.View()
	if !strings.Contains(view, "let's plan.") {
		t.Errorf("view should show the assembled reply:\n%s", view)
	}
}

func TestModel_BlankInputIgnored(t *testing.T) {
	mock := &api.MockClient{}
	m, _ := newTestModel(t, mock)

	m = typeText(m, "   ")
	_, _ = update(t, m, enter)
	if len(mock.StreamRequests()) != 0 {
		t.Error("blank input must not be sent")
	}
}

func TestModel_BusyKeepsDraft(t *testing.T) {
	gate := make(chan struct{})
	mock := &api.MockClient{
		OpenStreamFunc: func(ctx context.Context, text string, sessionID *int) (api.FragmentStream, error) {
			s := api.NewMockStream(ctx, []string{"x"}, nil)
			s.Gate = gate
			return s, nil
		},
	}
	m, ctrl := newTestModel(t, mock)

	m = typeText(m, "first")
	m, _ = update(t, m, enter)
	m = typeText(m, "second")
	m, _ = update(t, m, enter)

	if m.textarea.Value() != "second" {
		t.Errorf("draft should be kept while busy, got %q", m.textarea.Value())
	}
	if !strings.Contains(m.info, "still working") {
		t.Errorf("info = %q", m.info)
	}
	close(gate)
	ctrl.Wait()
}

func TestModel_EscAbortsReply(t *testing.T) {
	gate := make(chan struct{})
	mock := &api.MockClient{
		OpenStreamFunc: func(ctx context.Context, text string, sessionID *int) (api.FragmentStream, error) {
			s := api.NewMockStream(ctx, []string{"never"}, nil)
			s.Gate = gate
			return s, nil
		},
	}
	m, ctrl := newTestModel(t, mock)

	m = typeText(m, "long question")
	m, _ = update(t, m, enter)
	m.snap = ctrl.Snapshot()

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if cmd != nil {
		if _, quit := cmd().(tea.QuitMsg); quit {
			t.Fatal("esc during a reply should abort, not quit")
		}
	}

	m = drain(t, m, ctrl)
	msgs := ctrl.Messages()
	if got := msgs[len(msgs)-1].Content; got != models.FailureText {
		t.Errorf("last message = %q, want the failure text", got)
	}
	if !strings.Contains(m.View(), "Connection interrupted") {
		t.Error("failure text should be visible")
	}
}

func TestModel_EscQuitsWhenIdle(t *testing.T) {
	m, _ := newTestModel(t, &api.MockClient{})

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("esc while idle should quit")
	}
}

func TestModel_AttachSuccess(t *testing.T) {
	mock := &api.MockClient{UploadVal: &models.Upload{URL: "/uploads/a.png", Filename: "a.png"}}
	m, _ := newTestModel(t, mock)

	m = typeText(m, "/attach ~/pics/a.png")
	m, cmd := update(t, m, enter)
	if cmd == nil {
		t.Fatal("attach should return an upload command")
	}
	m, _ = update(t, m, cmd())

	if got := m.textarea.Value(); got != " [Attached: a.png] " {
		t.Errorf("draft = %q", got)
	}
	if len(mock.Uploads) != 1 || strings.HasPrefix(mock.Uploads[0], "~") {
		t.Errorf("uploads = %v, want one expanded path", mock.Uploads)
	}
}

func TestModel_AttachFailureShowsNotice(t *testing.T) {
	mock := &api.MockClient{UploadErr: apierrors.NewUploadError("/tmp/big.bin", 413, "too large", nil)}
	m, _ := newTestModel(t, mock)

	m = typeText(m, "/attach /tmp/big.bin")
	m, cmd := update(t, m, enter)
	m, _ = update(t, m, cmd())

	if m.notice == "" {
		t.Fatal("upload failure should raise a notice")
	}
	if !strings.Contains(m.View(), "dismiss") {
		t.Error("notice should be shown")
	}

	// typing is blocked until the notice is dismissed
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	if m.textarea.Value() != "" {
		t.Error("input must be blocked while a notice is shown")
	}
	m, _ = update(t, m, enter)
	if m.notice != "" {
		t.Error("enter should dismiss the notice")
	}
	if len(mock.StreamRequests()) != 0 {
		t.Error("dismissing the notice must not send anything")
	}
}

func TestModel_SlashCommands(t *testing.T) {
	m, _ := newTestModel(t, &api.MockClient{})

	m = typeText(m, "/bogus")
	m, _ = update(t, m, enter)
	if m.err == nil || !strings.Contains(m.err.Error(), "unknown command /bogus") {
		t.Errorf("err = %v", m.err)
	}

	m = typeText(m, "/attach")
	m, _ = update(t, m, enter)
	if m.err == nil || !strings.Contains(m.err.Error(), "usage") {
		t.Errorf("err = %v", m.err)
	}

	m = typeText(m, "/help")
	m, _ = update(t, m, enter)
	if !m.help.ShowAll {
		t.Error("/help should expand the help")
	}
	if !strings.Contains(m.View(), "/clear-all") {
		t.Error("expanded help should list slash commands")
	}

	m = typeText(m, "/quit")
	_, cmd := update(t, m, enter)
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("/quit should quit")
	}
}

func TestModel_ClearAll(t *testing.T) {
	mock := &api.MockClient{ClearedCount: 3}
	m, _ := newTestModel(t, mock)

	m = typeText(m, "/clear-all")
	m, cmd := update(t, m, enter)
	m, _ = update(t, m, cmd())
	if m.info != "Deleted 3 sessions" {
		t.Errorf("info = %q", m.info)
	}
}

func TestModel_Export(t *testing.T) {
	m, _ := newTestModel(t, &api.MockClient{})
	path := t.TempDir() + "/out.md"

	m = typeText(m, "/export "+path)
	m, cmd := update(t, m, enter)
	m, _ = update(t, m, cmd())
	if m.err != nil {
		t.Fatalf("export failed: %v", m.err)
	}
	if !strings.Contains(m.info, path) {
		t.Errorf("info = %q", m.info)
	}
}

func TestModel_SidebarSelect(t *testing.T) {
	mock := &api.MockClient{
		Sessions: []models.Session{{ID: 5, Title: "Dentist"}, {ID: 2, Title: "Gym plan"}},
		Messages: map[int][]models.Message{
			2: {{ID: 1, Role: models.RoleAssistant, Content: "Leg day on Friday"}},
		},
	}
	m, ctrl := newTestModel(t, mock)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	m = drain(t, m, ctrl)
	if !strings.Contains(m.View(), "Gym plan") {
		t.Fatal("sidebar should list sessions")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != focusSidebar {
		t.Fatal("tab should focus the sidebar")
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, enter)
	if m.focus != focusInput {
		t.Error("selecting a session should return focus to the input")
	}

	m = drain(t, m, ctrl)
	if id := ctrl.ActiveID(); id == nil || *id != 2 {
		t.Fatalf("active = %v, want 2", id)
	}
	if !strings.Contains(m.View(), "Leg day on Friday") {
		t.Error("selected session history should be shown")
	}
}

func TestModel_ToggleSidebar(t *testing.T) {
	m, _ := newTestModel(t, &api.MockClient{})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlB})
	if m.sidebarOpen {
		t.Fatal("ctrl+b should close the sidebar")
	}
	if strings.Contains(m.View(), "Memory archives") {
		t.Error("closed sidebar should not render")
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != focusInput {
		t.Error("tab must not focus a closed sidebar")
	}
}

func TestModel_NewSession(t *testing.T) {
	m, _ := newTestModel(t, &api.MockClient{})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	if !strings.Contains(m.View(), models.GreetingNewSession) {
		t.Error("ctrl+n should show the new-session greeting")
	}
}

func TestModel_ScrollFollow(t *testing.T) {
	var history []models.Message
	for i := 0; i < 40; i++ {
		history = append(history, models.Message{ID: i + 1, Role: models.RoleAssistant, Content: fmt.Sprintf("entry %d", i)})
	}
	mock := &api.MockClient{Messages: map[int][]models.Message{9: history}}
	m, ctrl := newTestModel(t, mock)

	nine := 9
	if err := ctrl.Select(context.Background(), &nine); err != nil {
		t.Fatal(err)
	}
	m = drain(t, m, ctrl)
	if !m.viewport.AtBottom() {
		t.Fatal("loading a session should follow to the bottom")
	}

	m.viewport.GotoTop()
	m.applyEvents([]chat.Event{{Kind: chat.EventMessageUpdated, Role: models.RoleAssistant, LogLen: 40}})
	if m.viewport.YOffset != 0 {
		t.Errorf("assistant update while scrolled up must not move the view, offset=%d", m.viewport.YOffset)
	}

	m.applyEvents([]chat.Event{{Kind: chat.EventMessageAppended, Role: models.RoleUser, LogLen: 41}})
	if !m.viewport.AtBottom() {
		t.Error("a user message should always follow")
	}
}

func TestModel_ControllerClosedStopsListening(t *testing.T) {
	m, _ := newTestModel(t, &api.MockClient{})
	_, cmd := update(t, m, eventsMsg{err: chat.ErrClosed})
	if cmd != nil {
		t.Error("no further listen after the controller closed")
	}
}

func TestModel_FailedLoadBlocksSendAndExport(t *testing.T) {
	mock := &api.MockClient{MessagesErr: fmt.Errorf("backend down")}
	m, ctrl := newTestModel(t, mock)

	nine := 9
	if err := ctrl.Select(context.Background(), &nine); err != nil {
		t.Fatal(err)
	}
	m = drain(t, m, ctrl)

	m = typeText(m, "plan my week")
	m, _ = update(t, m, enter)
	if !strings.Contains(m.info, "failed to load") {
		t.Errorf("info = %q", m.info)
	}
	if m.textarea.Value() != "plan my week" {
		t.Errorf("draft should be kept, got %q", m.textarea.Value())
	}
	if len(mock.StreamRequests()) != 0 {
		t.Error("nothing may be sent to an unloaded session")
	}

	path := t.TempDir() + "/out.md"
	m = typeText(m, "/export "+path)
	m, cmd := update(t, m, enter)
	m, _ = update(t, m, cmd())
	if !errors.Is(m.err, chat.ErrNotLoaded) {
		t.Errorf("export err = %v, want ErrNotLoaded", m.err)
	}
}
