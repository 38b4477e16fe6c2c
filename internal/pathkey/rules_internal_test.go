package pathkey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pathkey-service/internal/domain"
)

func TestMeetsThreshold(t *testing.T) {
	r := DefaultRules()
	assert.True(t, r.meetsThreshold(5, 5))
	assert.False(t, r.meetsThreshold(4, 5))
	assert.True(t, r.meetsThreshold(9, 10))
	assert.False(t, r.meetsThreshold(8, 10))
	assert.False(t, r.meetsThreshold(0, 0))
}

func TestAdvanceChunk(t *testing.T) {
	r := DefaultRules()
	now := time.Date(2024, 11, 22, 0, 0, 0, 0, time.UTC)

	p := domain.BusinessDriverProgress{Driver: domain.DriverPeople}
	for i, correct := range []bool{true, true, true, true} {
		var done, mastered bool
		p, done, mastered = advanceChunk(p, correct, r, now)
		assert.False(t, done)
		assert.False(t, mastered)
		assert.Equal(t, i+1, p.ChunkQuestions)
	}

	p, done, mastered := advanceChunk(p, false, r, now)
	assert.True(t, done)
	assert.False(t, mastered)
	assert.Equal(t, 0, p.ChunkQuestions)
	assert.Equal(t, 0, p.ChunkCorrect)

	for i := 0; i < r.ChunkSize; i++ {
		p, done, mastered = advanceChunk(p, true, r, now)
	}
	assert.True(t, done)
	assert.True(t, mastered)
	assert.True(t, p.Mastered)
	assert.Equal(t, now, *p.MasteredAt)

	same, done, mastered := advanceChunk(p, false, r, now.Add(time.Hour))
	assert.Equal(t, p, same)
	assert.False(t, done)
	assert.False(t, mastered)
}

func TestRulesValidate(t *testing.T) {
	assert.NoError(t, DefaultRules().Validate())

	bad := DefaultRules()
	bad.ChunkSize = 0
	assert.Error(t, bad.Validate())

	bad = DefaultRules()
	bad.AccuracyThreshold = 1.5
	assert.Error(t, bad.Validate())

	bad = DefaultRules()
	bad.Rewards.PlacementBonuses = []int{10, 20}
	assert.Error(t, bad.Validate())
}
