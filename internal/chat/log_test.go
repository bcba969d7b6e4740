package chat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ultronhq/ultron/internal/models"
)

func msg(role models.Role, content string) models.Message {
	return models.Message{Role: role, Content: content}
}

func TestMessageLog_AppendAndMutate(t *testing.T) {
	log := NewMessageLog()
	require.Equal(t, 1, log.Append(msg(models.RoleUser, "hi")))
	require.Equal(t, 2, log.Append(msg(models.RoleAssistant, "")))

	require.NoError(t, log.MutateLast("He"))
	require.NoError(t, log.MutateLast("Hello"))

	msgs := log.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "hi", msgs[0].Content)
	require.Equal(t, "Hello", msgs[1].Content)
}

func TestMessageLog_MutateLastRejectsUser(t *testing.T) {
	log := NewMessageLog(msg(models.RoleAssistant, "greeting"), msg(models.RoleUser, "plan my week"))

	err := log.MutateLast("overwritten")
	require.ErrorIs(t, err, ErrNotAssistant)

	last, ok := log.Last()
	require.True(t, ok)
	require.Equal(t, "plan my week", last.Content)
	require.Equal(t, 2, log.Len())
}

func TestMessageLog_MutateLastEmpty(t *testing.T) {
	require.ErrorIs(t, NewMessageLog().MutateLast("x"), ErrEmptyLog)
}

func TestMessageLog_ReplaceAll(t *testing.T) {
	log := NewMessageLog(msg(models.RoleAssistant, "greeting"))
	history := []models.Message{msg(models.RoleUser, "a"), msg(models.RoleAssistant, "b")}

	log.ReplaceAll(history)
	history[0].Content = "mutated by caller"

	msgs := log.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "a", msgs[0].Content, "log must not alias the caller's slice")
}

func TestMessageLog_MessagesIsCopy(t *testing.T) {
	log := NewMessageLog(msg(models.RoleAssistant, "x"))
	msgs := log.Messages()
	msgs[0].Content = "changed"

	last, _ := log.Last()
	require.Equal(t, "x", last.Content)
}

func TestMessageLog_Visible(t *testing.T) {
	tests := []struct {
		name string
		msgs []models.Message
		want []string
	}{
		{
			name: "empty placeholder hidden",
			msgs: []models.Message{msg(models.RoleUser, "q"), msg(models.RoleAssistant, "")},
			want: []string{"q"},
		},
		{
			name: "empty user message kept",
			msgs: []models.Message{msg(models.RoleUser, "")},
			want: []string{""},
		},
		{
			name: "all content shown",
			msgs: []models.Message{msg(models.RoleAssistant, "a"), msg(models.RoleUser, "b")},
			want: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := NewMessageLog(tt.msgs...)
			var got []string
			for _, m := range log.Visible() {
				got = append(got, m.Content)
			}
			require.Equal(t, tt.want, got)
			// hidden messages still exist
			require.Equal(t, len(tt.msgs), log.Len())
		})
	}
}

func TestMessageLog_HiddenStillMutates(t *testing.T) {
	log := NewMessageLog(msg(models.RoleUser, "q"), msg(models.RoleAssistant, ""))
	require.Len(t, log.Visible(), 1)

	require.NoError(t, log.MutateLast("first fragment"))
	require.Len(t, log.Visible(), 2)
}
