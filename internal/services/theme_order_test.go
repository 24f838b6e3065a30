package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themeorama/server/internal/models"
)

func TestPlanLoadOrder(t *testing.T) {
	t.Run("parents come in earlier waves", func(t *testing.T) {
		themes := []models.Theme{
			childTheme("leaf", "mid"),
			childTheme("mid", "root"),
			namedTheme("root"),
			childTheme("sibling", "root"),
		}

		plan := planLoadOrder(themes)

		assert.Equal(t, [][]int{{2}, {1, 3}, {0}}, plan.waves)
		assert.Empty(t, plan.cycles)
	})

	t.Run("parents outside the batch do not delay a theme", func(t *testing.T) {
		plan := planLoadOrder([]models.Theme{childTheme("a", "cached"), namedTheme("b")})

		assert.Equal(t, [][]int{{0, 1}}, plan.waves)
	})

	t.Run("cycles are excluded and their descendants go last", func(t *testing.T) {
		themes := []models.Theme{
			childTheme("x", "y"),
			childTheme("y", "z"),
			childTheme("z", "x"),
			childTheme("below", "x"),
			namedTheme("free"),
		}

		plan := planLoadOrder(themes)

		require.Len(t, plan.cycles, 1)
		assert.Equal(t, []string{"x", "y", "z", "x"}, plan.cycles[0].err.Chain)
		assert.Equal(t, [][]int{{4}, {3}}, plan.waves)
	})

	t.Run("self inheritance is left for the loader to report", func(t *testing.T) {
		plan := planLoadOrder([]models.Theme{childTheme("me", "me")})

		assert.Equal(t, [][]int{{0}}, plan.waves)
		assert.Empty(t, plan.cycles)
	})

	t.Run("earlier copies of a name are superseded", func(t *testing.T) {
		themes := []models.Theme{namedTheme("dup"), childTheme("kid", "dup"), namedTheme("dup")}

		plan := planLoadOrder(themes)

		assert.Equal(t, []int{0}, plan.superseded)
		assert.Equal(t, [][]int{{2}, {1}}, plan.waves)
	})
}
