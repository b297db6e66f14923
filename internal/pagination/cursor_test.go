package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.UTC)
	encoded := EncodeCursor("doc-1", ts)
	assert.NotContains(t, encoded, "=")
	assert.NotContains(t, encoded, "/")

	c, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", c.LastID)
	assert.True(t, ts.Equal(c.Timestamp))
}

func TestEncodeCursor_EmptyID(t *testing.T) {
	assert.Empty(t, EncodeCursor("", time.Now()))
}

func TestDecodeCursor(t *testing.T) {
	c, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, c)

	for _, bad := range []string{"!!!", "bm8tc2VwYXJhdG9y", "fG5vdC1hLXRpbWU"} {
		_, err := DecodeCursor(bad)
		assert.ErrorIs(t, err, ErrInvalidCursor, bad)
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(-3))
	assert.Equal(t, 7, ClampLimit(7))
	assert.Equal(t, MaxLimit, ClampLimit(1000))
}

type pageItem struct {
	id string
	at time.Time
}

func TestTrim(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	items := []pageItem{{"c", base.Add(2 * time.Minute)}, {"b", base.Add(time.Minute)}, {"a", base}}
	key := func(p pageItem) (string, time.Time) { return p.id, p.at }

	t.Run("more rows than limit", func(t *testing.T) {
		page, next := Trim(items, 2, key)
		require.Len(t, page, 2)
		assert.Equal(t, "b", page[1].id)

		cursor, err := DecodeCursor(next)
		require.NoError(t, err)
		assert.Equal(t, "b", cursor.LastID)
		assert.True(t, cursor.Timestamp.Equal(base.Add(time.Minute)))
	})

	t.Run("last page", func(t *testing.T) {
		page, next := Trim(items, 3, key)
		assert.Len(t, page, 3)
		assert.Empty(t, next)
	})
}
