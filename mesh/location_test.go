package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogicalLocationOrdering(t *testing.T) {
	// level-major, finer first
	assert.True(t, Greater(
		LogicalLocation{Level: 3, LX1: 0},
		LogicalLocation{Level: 2, LX1: 7}))
	assert.True(t, Greater(
		LogicalLocation{Level: 2, LX1: 1},
		LogicalLocation{Level: 2, LX1: 0}))
	assert.True(t, Greater(
		LogicalLocation{Level: 2, LX1: 1, LX2: 1},
		LogicalLocation{Level: 2, LX1: 1, LX2: 0}))
	assert.False(t, Greater(
		LogicalLocation{Level: 2, LX1: 1},
		LogicalLocation{Level: 2, LX1: 1}))
}

func TestParentChildRoundTrip(t *testing.T) {
	loc := LogicalLocation{Level: 4, LX1: 5, LX2: 9, LX3: 2}
	for k := int64(0); k <= 1; k++ {
		for j := int64(0); j <= 1; j++ {
			for i := int64(0); i <= 1; i++ {
				c := loc.Child(i, j, k)
				assert.Equal(t, loc.Level+1, c.Level)
				assert.Equal(t, loc, c.Parent())
				f1, f2, f3 := c.Octant()
				assert.Equal(t, int(i), f1)
				assert.Equal(t, int(j), f2)
				assert.Equal(t, int(k), f3)
			}
		}
	}
}

func TestGroupAnchor(t *testing.T) {
	base := LogicalLocation{Level: 3, LX1: 4, LX2: 6, LX3: 2}
	assert.True(t, base.IsGroupAnchor())
	assert.False(t, LogicalLocation{Level: 3, LX1: 5, LX2: 6, LX3: 2}.IsGroupAnchor())
	assert.False(t, LogicalLocation{Level: 3, LX1: 4, LX2: 7, LX3: 2}.IsGroupAnchor())
}
