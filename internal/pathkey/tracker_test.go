package pathkey_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathkey-service/internal/domain"
	"pathkey-service/internal/pathkey"
)

func answerAll(t *testing.T, tr *pathkey.Tracker, student, career string, driver domain.BusinessDriver, results ...bool) pathkey.DriverOutcome {
	t.Helper()
	var out pathkey.DriverOutcome
	for _, correct := range results {
		var err error
		out, err = tr.Record(context.Background(), student, career, driver, correct)
		require.NoError(t, err)
	}
	return out
}

func TestTracker_ChunkBelowThresholdResets(t *testing.T) {
	s := newCatalogStore()
	tr := pathkey.NewTracker(s, pathkey.DefaultRules(), quietLogger())

	out := answerAll(t, tr, "s1", "nurse", domain.DriverPeople, true, true, true, false, true)

	assert.True(t, out.ChunkCompleted)
	assert.False(t, out.NewlyMastered)
	assert.False(t, out.Progress.Mastered)
	assert.Equal(t, 0, out.Progress.ChunkQuestions)
	assert.Equal(t, 0, out.Progress.ChunkCorrect)
	assert.Equal(t, domain.DriverAccruing, out.Progress.State())
}

func TestTracker_PartialChunkPersists(t *testing.T) {
	s := newCatalogStore()
	tr := pathkey.NewTracker(s, pathkey.DefaultRules(), quietLogger())

	out := answerAll(t, tr, "s1", "nurse", domain.DriverPeople, true, false, true)

	assert.False(t, out.ChunkCompleted)
	assert.Equal(t, 3, out.Progress.ChunkQuestions)
	assert.Equal(t, 2, out.Progress.ChunkCorrect)

	stored, err := s.GetDriverProgress(context.Background(), "s1", "nurse", domain.DriverPeople)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.ChunkQuestions)
}

func TestTracker_FullMasteryScenario(t *testing.T) {
	s := newCatalogStore()
	tr := pathkey.NewTracker(s, pathkey.DefaultRules(), quietLogger())

	out := answerAll(t, tr, "s1", "nurse", domain.DriverPeople, true, true, true, false, true)
	require.False(t, out.Progress.Mastered)

	out = answerAll(t, tr, "s1", "nurse", domain.DriverPeople, true, true, true, true, true)
	assert.True(t, out.NewlyMastered)
	assert.True(t, out.Progress.Mastered)
	assert.NotNil(t, out.Progress.MasteredAt)
	assert.Equal(t, domain.DriverMastered, out.Progress.State())

	// Mastered is terminal.
	for _, correct := range []bool{false, false, false, false, false, false} {
		next, err := tr.Record(context.Background(), "s1", "nurse", domain.DriverPeople, correct)
		require.NoError(t, err)
		assert.True(t, next.Ignored)
		assert.True(t, next.Progress.Mastered)
	}
}

func TestTracker_DriversAreIndependent(t *testing.T) {
	s := newCatalogStore()
	tr := pathkey.NewTracker(s, pathkey.DefaultRules(), quietLogger())

	answerAll(t, tr, "s1", "nurse", domain.DriverPeople, true, true, true, true, true)
	out := answerAll(t, tr, "s1", "nurse", domain.DriverProduct, true, true)
	assert.False(t, out.Progress.Mastered)

	out = answerAll(t, tr, "s1", "developer", domain.DriverPeople, true)
	assert.False(t, out.Progress.Mastered, "progress is per career")
}

func TestTracker_RejectsUnknownDriver(t *testing.T) {
	tr := pathkey.NewTracker(newCatalogStore(), pathkey.DefaultRules(), quietLogger())
	_, err := tr.Record(context.Background(), "s1", "nurse", domain.BusinessDriver("marketing"), true)
	assert.ErrorIs(t, err, domain.ErrUnknownDriver)
}

func TestTracker_SectionThreeWaitsForCareerMastery(t *testing.T) {
	s := newCatalogStore()
	o := pathkey.NewOrchestrator(s, pathkey.DefaultRules(), quietLogger())
	tr := o.Tracker()

	var last pathkey.DriverOutcome
	for _, d := range domain.BusinessDrivers {
		last = answerAll(t, tr, "s1", "nurse", d, true, true, true, true, true)
	}
	assert.True(t, last.NewlyMastered)
	assert.False(t, last.SectionThreeUnlocked, "section 3 must not unlock before section 1")

	rec := record(t, s, "s1", "nurse")
	assert.False(t, rec.BusinessDriverMasteryUnlocked)
	require.NoError(t, rec.Validate())

	grantCareerMastery(t, o, s, "s1", "nurse")

	rec = record(t, s, "s1", "nurse")
	assert.True(t, rec.CareerMasteryUnlocked)
	assert.True(t, rec.BusinessDriverMasteryUnlocked)
	assert.NotNil(t, rec.BusinessDriverMasteryUnlockedAt)
}

func TestTracker_SectionThreeUnlocksOnSixthDriver(t *testing.T) {
	s := newCatalogStore()
	o := pathkey.NewOrchestrator(s, pathkey.DefaultRules(), quietLogger())
	grantCareerMastery(t, o, s, "s1", "nurse")
	tr := o.Tracker()

	for i, d := range domain.BusinessDrivers {
		out := answerAll(t, tr, "s1", "nurse", d, true, true, true, true, true)
		if i < len(domain.BusinessDrivers)-1 {
			assert.False(t, out.SectionThreeUnlocked, "driver %s", d)
			continue
		}
		assert.True(t, out.SectionThreeUnlocked)
	}
	assert.True(t, record(t, s, "s1", "nurse").BusinessDriverMasteryUnlocked)
}

func TestTracker_RetriesOnVersionConflict(t *testing.T) {
	fs := &faultStore{Store: newCatalogStore(), driverConflicts: 2}
	tr := pathkey.NewTracker(fs, pathkey.DefaultRules(), quietLogger())

	out, err := tr.Record(context.Background(), "s1", "nurse", domain.DriverPeople, true)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Progress.ChunkQuestions)
}

func TestTracker_GivesUpAfterRetries(t *testing.T) {
	rules := pathkey.DefaultRules()
	fs := &faultStore{Store: newCatalogStore(), driverConflicts: rules.MaxConflictRetries}
	tr := pathkey.NewTracker(fs, rules, quietLogger())

	_, err := tr.Record(context.Background(), "s1", "nurse", domain.DriverPeople, true)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
}
