package fixture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, OutcomeHome, OutcomeFor(2, 0))
	assert.Equal(t, OutcomeAway, OutcomeFor(0, 3))
	assert.Equal(t, OutcomeDraw, OutcomeFor(1, 1))
	assert.Equal(t, OutcomeDraw, OutcomeFor(0, 0))
}

func TestSourcesPriorityOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "main", Sources[0].Name)
	assert.Equal(t, "test", Sources[1].Name)
	assert.Equal(t, "casual", Sources[2].Name)
}
