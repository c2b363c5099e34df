package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitClamps(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
	assert.Equal(t, 5, Pagination{PageSize: 5}.Limit())
}

func TestBuildCursorPageInfo(t *testing.T) {
	rows := []int{1, 2, 3}

	page, info := BuildCursorPageInfo(rows, 2, func(v int) Cursor {
		return Cursor{ID: "id", CreatedAt: "2026-01-01T00:00:00Z"}
	})
	assert.Equal(t, []int{1, 2}, page)
	require.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "id", cursor.ID)

	page, info = BuildCursorPageInfo(rows, 3, func(v int) Cursor { return Cursor{} })
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
}
