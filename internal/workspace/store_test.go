package workspace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	t.Run("Should create and fetch sessions", func(t *testing.T) {
		st := NewStore(newEngine(), 4, time.Minute)
		s := st.Create()
		require.NotEmpty(t, s.ID)

		got, err := st.Get(s.ID)
		require.NoError(t, err)
		assert.Same(t, s, got)
		assert.Equal(t, 1, st.Len())
	})

	t.Run("Should report unknown ids", func(t *testing.T) {
		st := NewStore(newEngine(), 4, time.Minute)
		_, err := st.Get("nope")
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.ErrorIs(t, st.Delete("nope"), ErrSessionNotFound)
	})

	t.Run("Should delete sessions", func(t *testing.T) {
		st := NewStore(newEngine(), 4, time.Minute)
		s := st.Create()
		require.NoError(t, st.Delete(s.ID))
		_, err := st.Get(s.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("Should evict the least recently used session", func(t *testing.T) {
		st := NewStore(newEngine(), 2, time.Minute)
		a := st.Create()
		b := st.Create()
		_, err := st.Get(a.ID)
		require.NoError(t, err)
		st.Create()

		_, err = st.Get(b.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		_, err = st.Get(a.ID)
		assert.NoError(t, err)
	})

	t.Run("Should expire idle sessions", func(t *testing.T) {
		st := NewStore(newEngine(), 4, 50*time.Millisecond)
		s := st.Create()
		time.Sleep(120 * time.Millisecond)
		_, err := st.Get(s.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("Should apply defaults", func(t *testing.T) {
		st := NewStore(newEngine(), 0, 0)
		st.Create()
		st.Purge()
		assert.Equal(t, 0, st.Len())
	})
}
