package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCode(t *testing.T) {
	code, err := NormalizeCode("  owner01 ")
	require.NoError(t, err)
	assert.Equal(t, "OWNER01", code)

	for _, bad := range []string{"", "   ", "TOOLONGCODE", "a b", "x/y"} {
		_, err := NormalizeCode(bad)
		assert.ErrorIs(t, err, ErrInvalidCode, bad)
	}
}

func TestRoomKey(t *testing.T) {
	s := Session{Code: "OWNER01", Name: "Owner's Diner"}
	assert.Equal(t, "owner01", s.RoomKey())
	assert.Equal(t, "owner01", RoomKey(" Owner01"))
	assert.False(t, s.Empty())
	assert.True(t, Session{}.Empty())
}
