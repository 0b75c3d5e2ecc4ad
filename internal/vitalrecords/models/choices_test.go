package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelationshipChoices(t *testing.T) {
	birth := RelationshipChoices(TypeBirth)
	death := RelationshipChoices(TypeDeath)

	assert.True(t, HasChoice(birth, "self"))
	assert.False(t, HasChoice(birth, "surviving_next_of_kin"))
	assert.False(t, HasChoice(death, "self"))
	assert.True(t, HasChoice(death, "surviving_next_of_kin"))
	assert.Equal(t, len(birth), len(death))
	assert.Equal(t, RelationshipChoices(TypeBirth), RelationshipChoices(TypeMarriage))
}

func TestChoiceLists(t *testing.T) {
	assert.Len(t, CountyChoices, 59)
	assert.Len(t, NumberChoices, 10)
	assert.Equal(t, "01 - January", LabelOf(MonthChoices, "1"))
	assert.Equal(t, "Los Angeles", LabelOf(CountyChoices, "Los Angeles"))
	assert.Equal(t, "California", LabelOf(StateChoices, "CA"))
	assert.False(t, HasChoice(TypeChoices, ""))
	assert.True(t, IsFire("eaton"))
	assert.False(t, IsFire("Eaton"))
	assert.Equal(t, []Choice{{"palisades", "Palisades fire"}, {"eaton", "Eaton fire"}}, FireChoices)
	assert.False(t, IsFire("hurst"))
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusStarted.CanTransitionTo(StatusSubmitted))
	assert.False(t, StatusStarted.CanTransitionTo(StatusEnqueued))
	assert.False(t, StatusSubmitted.CanTransitionTo(StatusStarted))
	assert.False(t, StatusFinished.CanTransitionTo(StatusInitialized))
	assert.False(t, Status("bogus").CanTransitionTo(StatusStarted))

	st, ok := ParseStatus("packaged")
	assert.True(t, ok)
	assert.Equal(t, "Request Packaged", st.Label())
	_, ok = ParseStatus("lost")
	assert.False(t, ok)
}
