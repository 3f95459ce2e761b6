package plugin

// FindCycles returns the dependency cycles among the given packages.
// Only edges between the given packages are followed. Each cycle lists
// package names starting and ending with the same name, e.g.
// [a b a]. Packages are visited in the given order so the result is
// deterministic.
func FindCycles(pkgs []*Descriptor) [][]string {
	const (
		white = 0 // unvisited
		gray  = 1 // in current path
		black = 2 // finished
	)

	deps := make(map[string][]string, len(pkgs))
	for _, d := range pkgs {
		if _, dup := deps[d.Name]; !dup {
			deps[d.Name] = d.Dependencies
		}
	}

	colour := make(map[string]int, len(deps))
	var cycles [][]string

	type frame struct {
		name  string
		deps  []string
		index int
	}

	for _, start := range pkgs {
		if colour[start.Name] != white {
			continue
		}

		stack := []frame{{name: start.Name, deps: deps[start.Name]}}
		colour[start.Name] = gray

		for len(stack) > 0 {
			top := &stack[len(stack)-1]

			if top.index >= len(top.deps) {
				colour[top.name] = black
				stack = stack[:len(stack)-1]
				continue
			}

			dep := top.deps[top.index]
			top.index++

			if _, known := deps[dep]; !known {
				continue
			}

			switch colour[dep] {
			case gray:
				// Back edge: the cycle is the stack suffix starting at dep.
				var cycle []string
				for i := range stack {
					if stack[i].name == dep {
						for _, f := range stack[i:] {
							cycle = append(cycle, f.name)
						}
						break
					}
				}
				cycles = append(cycles, append(cycle, dep))
			case white:
				colour[dep] = gray
				stack = append(stack, frame{name: dep, deps: deps[dep]})
			}
		}
	}

	return cycles
}
