package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ultronhq/ultron/internal/api"
	"github.com/ultronhq/ultron/internal/models"
)

func TestRegistry_Refresh(t *testing.T) {
	mock := &api.MockClient{Sessions: []models.Session{{ID: 9, Title: "newest"}, {ID: 2, Title: "older"}}}
	r := NewRegistry(mock)

	sessions, err := r.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, 9, r.Sessions()[0].ID, "server order is kept")

	s, ok := r.Lookup(2)
	require.True(t, ok)
	require.Equal(t, "older", s.Title)
	_, ok = r.Lookup(5)
	require.False(t, ok)

	mock.SessionsErr = errors.New("down")
	sessions, err = r.Refresh(context.Background())
	require.Error(t, err)
	require.Len(t, sessions, 2)
	require.Len(t, r.Sessions(), 2)
}

func TestRegistry_Active(t *testing.T) {
	r := NewRegistry(&api.MockClient{})
	require.Nil(t, r.Active())
	require.True(t, r.IsActive(nil))

	id := 4
	r.Select(&id)
	id = 5
	require.Equal(t, 4, *r.Active(), "select must copy the id")

	four := 4
	require.True(t, r.IsActive(&four))
	require.False(t, r.IsActive(nil))

	got := r.Active()
	*got = 100
	require.Equal(t, 4, *r.Active())
}
