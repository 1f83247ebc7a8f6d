package repository

import (
	"testing"

	"github.com/softadastra-group/softadastra-chat/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalPair(t *testing.T) {
	lo, hi := CanonicalPair(9, 3)
	assert.Equal(t, uint(3), lo)
	assert.Equal(t, uint(9), hi)

	lo2, hi2 := CanonicalPair(3, 9)
	assert.Equal(t, lo, lo2)
	assert.Equal(t, hi, hi2)
}

func TestCanonicalPairEqualIdentities(t *testing.T) {
	lo, hi := CanonicalPair(5, 5)
	assert.Equal(t, uint(5), lo)
	assert.Equal(t, uint(5), hi)
}

func TestPeer(t *testing.T) {
	thread := &models.Thread{UserAID: 1, UserBID: 2}
	assert.Equal(t, uint(2), Peer(thread, 1))
	assert.Equal(t, uint(1), Peer(thread, 2))
}
