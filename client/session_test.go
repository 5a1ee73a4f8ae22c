package client

import (
	"path/filepath"
	"testing"

	usermodel "VChat/module/user/model"

	"github.com/stretchr/testify/require"
)

func TestSessionStoreRoundtrip(t *testing.T) {
	t.Parallel()
	store := NewSessionStore(filepath.Join(t.TempDir(), "session.json"))

	// nothing persisted yet
	sess, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, sess)

	in := &Session{
		Token: "tok-123",
		User:  &usermodel.User{ID: "u1", FullName: "Alice", Email: "a@example.com"},
	}
	require.NoError(t, store.Save(in))

	out, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, in.Token, out.Token)
	require.Equal(t, in.User.ID, out.User.ID)
}

func TestSessionStoreClearIsIdempotent(t *testing.T) {
	t.Parallel()
	store := NewSessionStore(filepath.Join(t.TempDir(), "session.json"))

	require.NoError(t, store.Clear())

	require.NoError(t, store.Save(&Session{Token: "t", User: &usermodel.User{ID: "u"}}))
	require.NoError(t, store.Clear())

	sess, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, sess)
}

func TestSessionStoreIgnoresPartialRecord(t *testing.T) {
	t.Parallel()
	store := NewSessionStore(filepath.Join(t.TempDir(), "session.json"))

	require.NoError(t, store.Save(&Session{Token: "", User: nil}))

	sess, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, sess)
}
