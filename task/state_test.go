package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseViewState(t *testing.T) {
	for _, name := range []string{"task", "results", "solutions"} {
		v, ok := ParseViewState(name)
		assert.True(t, ok, name)
		assert.Equal(t, ViewState(name), v)
	}
	for _, name := range []string{"", "Task", "answered", "solution"} {
		_, ok := ParseViewState(name)
		assert.False(t, ok, name)
	}
}

func TestParseSnapshot(t *testing.T) {
	s, err := ParseSnapshot([]byte(`{"viewState":"solutions","lastInterpretations":["paris","pari"]}`))
	require.NoError(t, err)
	assert.Equal(t, &Snapshot{ViewState: StateSolutions, LastInterpretations: []string{"paris", "pari"}}, s)

	s, err = ParseSnapshot([]byte(`{"viewState":"weird"}`))
	require.NoError(t, err)
	assert.Equal(t, StateTask, s.ViewState)
	assert.Equal(t, []string{}, s.LastInterpretations)

	_, err = ParseSnapshot([]byte(`not json`))
	assert.Error(t, err)
}
