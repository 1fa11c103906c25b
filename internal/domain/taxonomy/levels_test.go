package taxonomy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevels_Ordering(t *testing.T) {
	levels := Levels()
	assert.Len(t, levels, Count)
	assert.Equal(t, LevelRemember, levels[0])
	assert.Equal(t, LevelCreate, levels[Count-1])

	for i := 1; i < len(levels); i++ {
		assert.True(t, levels[i].Above(levels[i-1]))
		assert.False(t, levels[i-1].Above(levels[i]))
	}

	assert.Equal(t, LevelRemember, Lowest())
	assert.Equal(t, LevelCreate, Highest())
}

func TestLevel_ParseRoundTrip(t *testing.T) {
	for _, level := range Levels() {
		parsed, err := Parse(level.String())
		assert.NoError(t, err)
		assert.Equal(t, level, parsed)
	}
}

func TestLevel_ParseUnknown(t *testing.T) {
	_, err := Parse("transcend")
	assert.ErrorIs(t, err, ErrUnknownLevel)

	// Canonical names are lowercase; anything else is rejected.
	_, err = Parse("Apply")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestLevel_JSONMapKeys(t *testing.T) {
	scores := map[Level]float64{
		LevelApply:  80,
		LevelCreate: 45,
	}

	data, err := json.Marshal(scores)
	assert.NoError(t, err)
	assert.Contains(t, string(data), `"apply"`)
	assert.Contains(t, string(data), `"create"`)

	var decoded map[Level]float64
	assert.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, scores, decoded)
}

func TestLevel_IsValid(t *testing.T) {
	assert.True(t, LevelRemember.IsValid())
	assert.True(t, LevelCreate.IsValid())
	assert.False(t, Level(-1).IsValid())
	assert.False(t, Level(Count).IsValid())
}

func TestAtOrAbove_Clamping(t *testing.T) {
	assert.Equal(t, LevelRemember, AtOrAbove(-3))
	assert.Equal(t, LevelApply, AtOrAbove(2))
	assert.Equal(t, LevelCreate, AtOrAbove(99))
}
