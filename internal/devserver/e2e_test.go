package devserver_test

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ultronhq/ultron/internal/api"
	"github.com/ultronhq/ultron/internal/chat"
	"github.com/ultronhq/ultron/internal/devserver"
)

func startBackend(t *testing.T) *api.Client {
	t.Helper()
	srv, err := devserver.New(devserver.Options{
		Logger:    zerolog.Nop(),
		UploadDir: t.TempDir(),
		Reply:     func(string) string { return "Blocked Monday 09:00 for deep work." },
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client, err := api.NewClient(api.WithBaseURL(ts.URL), api.WithTimeout(5*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestClientStreamsFromDevServer(t *testing.T) {
	client := startBackend(t)
	ctx := context.Background()

	stream, err := client.OpenStream(ctx, "Plan my Monday", nil)
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		frag, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		sb.WriteString(frag)
	}
	if sb.String() != "Blocked Monday 09:00 for deep work." {
		t.Errorf("reply = %q", sb.String())
	}

	sessions, err := client.ListSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].Title != "Plan my Monday" {
		t.Fatalf("sessions = %+v", sessions)
	}

	msgs, err := client.ListMessages(ctx, sessions[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[1].Content != "Blocked Monday 09:00 for deep work." {
		t.Errorf("messages = %+v", msgs)
	}
	if msgs[0].SentAt.IsZero() {
		t.Error("timestamps should parse")
	}
}

func TestControllerAgainstDevServer(t *testing.T) {
	client := startBackend(t)
	ctrl := chat.NewController(client)
	defer ctrl.Close()

	ctx := context.Background()
	if err := ctrl.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Send(ctx, "Plan my Monday"); err != nil {
		t.Fatal(err)
	}
	ctrl.Wait()

	id := ctrl.ActiveID()
	if id == nil {
		t.Fatal("finished ephemeral send should adopt the new session")
	}
	msgs := ctrl.Messages()
	if got := msgs[len(msgs)-1].Content; got != "Blocked Monday 09:00 for deep work." {
		t.Errorf("last message = %q", got)
	}
}
