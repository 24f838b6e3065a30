package services

import (
	"github.com/themeorama/server/internal/models"
)

// loadPlan is the order in which a batch of themes is loaded. Indexes refer to the input slice.
type loadPlan struct {
	// waves[n] only inherits from themes of earlier waves or from themes outside the batch
	waves [][]int
	// cycles found among batch members; their members are never loaded
	cycles []batchCycle
	// earlier copies of a name that appears again later in the batch
	superseded []int
}

type batchCycle struct {
	index int
	err   *models.CircularInheritanceError
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

// planLoadOrder sorts a batch by its inherits edges. Only edges between batch members count;
// a parent outside the batch is looked up in the cache at load time. Themes that descend from
// a cycle are loaded last, once everything loadable is cached.
func planLoadOrder(themes []models.Theme) loadPlan {
	var plan loadPlan

	byName := make(map[string]int, len(themes))
	for i, theme := range themes {
		if prev, ok := byName[theme.Name()]; ok {
			plan.superseded = append(plan.superseded, prev)
		}
		byName[theme.Name()] = i
	}

	parentOf := func(i int) (int, bool) {
		parentName := themes[i].Inherits()
		if parentName == "" || parentName == themes[i].Name() {
			return 0, false
		}
		p, ok := byName[parentName]
		return p, ok
	}

	state := make(map[int]visitState, len(byName))
	level := make(map[int]int, len(byName))
	inCycle := make(map[int]bool)
	blocked := make(map[int]bool)

	// visit returns the wave of i, or false when i sits on or below a cycle.
	// stack is the chain of children that led here and is copied, never shared.
	var visit func(i int, stack []int) (int, bool)
	visit = func(i int, stack []int) (int, bool) {
		switch state[i] {
		case visited:
			if inCycle[i] || blocked[i] {
				return 0, false
			}
			return level[i], true
		case visiting:
			start := 0
			for pos, j := range stack {
				if j == i {
					start = pos
					break
				}
			}
			chain := make([]string, 0, len(stack)-start+1)
			for _, j := range stack[start:] {
				chain = append(chain, themes[j].Name())
				inCycle[j] = true
			}
			chain = append(chain, themes[i].Name())
			plan.cycles = append(plan.cycles, batchCycle{
				index: i,
				err:   &models.CircularInheritanceError{Chain: chain},
			})
			return 0, false
		}

		state[i] = visiting
		lvl, ok := 0, true
		if p, has := parentOf(i); has {
			child := make([]int, len(stack), len(stack)+1)
			copy(child, stack)
			child = append(child, i)
			var parentLevel int
			parentLevel, ok = visit(p, child)
			lvl = parentLevel + 1
		}
		state[i] = visited
		if !ok {
			if !inCycle[i] {
				blocked[i] = true
			}
			return 0, false
		}
		level[i] = lvl
		return lvl, true
	}

	superseded := make(map[int]bool, len(plan.superseded))
	for _, i := range plan.superseded {
		superseded[i] = true
	}

	var order []int
	for i := range themes {
		if superseded[i] {
			continue
		}
		visit(i, nil)
		order = append(order, i)
	}

	var tail []int
	for _, i := range order {
		switch {
		case inCycle[i]:
		case blocked[i]:
			tail = append(tail, i)
		default:
			for len(plan.waves) <= level[i] {
				plan.waves = append(plan.waves, nil)
			}
			plan.waves[level[i]] = append(plan.waves[level[i]], i)
		}
	}
	if len(tail) > 0 {
		plan.waves = append(plan.waves, tail)
	}
	return plan
}
