package migrate

import "sort"

// tableGraph is the minimal shape orderTables needs: a table name and the
// names of other in-batch tables it has a foreign key to.
type tableGraph map[string][]string

// plan is the result of topologically ordering a batch of tables by foreign
// key dependency.
type plan struct {
	// Order lists every table once, in an order where each table appears
	// after every table it depends on (except where a cycle forced an edge
	// to be dropped).
	Order []string
	// Level assigns each table a wave number: tables sharing a level have no
	// dependency on one another and may load concurrently. A table's level
	// is always greater than every dependency's level it was not forced to
	// drop.
	Level map[string]int
	// FKDisabled marks every table that participates in a foreign key cycle;
	// its connector's ToggleFK(false) must be held for the duration of its
	// load.
	FKDisabled map[string]bool
}

// orderTables builds a load plan from a dependency graph (table name ->
// names of tables it foreign-keys to). Cycles are broken by dropping the
// back-edge discovered during DFS; every table touched by a dropped edge is
// marked FKDisabled so the loader can safely ignore referential integrity
// for it.
func orderTables(deps tableGraph) *plan {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sort.Strings(deps[name])
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(names))
	fkDisabled := make(map[string]bool)
	dropped := make(map[string]map[string]bool, len(names))

	var stack []string
	var order []string
	var visit func(name string)
	visit = func(name string) {
		if state[name] == done {
			return
		}
		if state[name] == inStack {
			return
		}
		state[name] = inStack
		stack = append(stack, name)
		for _, dep := range deps[name] {
			if state[dep] == inStack {
				fkDisabled[name] = true
				fkDisabled[dep] = true
				if dropped[name] == nil {
					dropped[name] = make(map[string]bool)
				}
				dropped[name][dep] = true
				continue
			}
			visit(dep)
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		order = append(order, name)
	}
	for _, name := range names {
		visit(name)
	}

	level := make(map[string]int, len(names))
	for _, name := range order {
		max := -1
		for _, dep := range deps[name] {
			if dropped[name][dep] {
				continue
			}
			if level[dep] > max {
				max = level[dep]
			}
		}
		level[name] = max + 1
	}

	return &plan{Order: order, Level: level, FKDisabled: fkDisabled}
}

// levels groups p.Order into waves, ordered by Level, suitable for a
// scheduler that loads one wave at a time with intra-wave concurrency.
func (p *plan) levels() [][]string {
	maxLevel := -1
	for _, l := range p.Level {
		if l > maxLevel {
			maxLevel = l
		}
	}
	waves := make([][]string, maxLevel+1)
	for _, name := range p.Order {
		l := p.Level[name]
		waves[l] = append(waves[l], name)
	}
	return waves
}
