package utils

import (
	"testing"

	"blog_engine/internal/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagination(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p := Pagination{}
		p.Normalize(6)
		offset, limit := p.GetPageOffset()
		assert.Equal(t, 0, offset)
		assert.Equal(t, 6, limit)
	})

	t.Run("caps limit", func(t *testing.T) {
		p := Pagination{Page: 3, Limit: 500}
		p.Normalize(6)
		offset, limit := p.GetPageOffset()
		assert.Equal(t, 200, offset)
		assert.Equal(t, 100, limit)
	})

	t.Run("total pages", func(t *testing.T) {
		r := NewPageResult([]int{}, 13, Pagination{Page: 1, Limit: 6})
		assert.Equal(t, 3, r.TotalPages)
	})
}

func TestTokenRoundTrip(t *testing.T) {
	config.GlobalConfig.JWT.Secret = "0123456789abcdef0123456789abcdef"
	config.GlobalConfig.JWT.Expire = 1

	token, expireAt, err := GenerateToken(42, "alice")
	require.NoError(t, err)
	require.NotNil(t, expireAt)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	_, err = ParseToken(token + "x")
	assert.Error(t, err)
}
