package schema

// topologicalSort orders items so that every dependency comes before its
// dependents, using a depth-first walk with visiting/visited marks. Dependencies
// outside items are ignored. The second result is false when a cycle is found.
func topologicalSort[T any](items []T, dependencies map[string][]string, getID func(T) string) ([]T, bool) {
	var sorted []T
	visited := make(map[string]bool)
	visiting := make(map[string]bool)
	itemMap := make(map[string]T)

	for _, item := range items {
		itemMap[getID(item)] = item
	}

	var visit func(string) bool
	visit = func(id string) bool {
		if visiting[id] {
			return false
		}
		if visited[id] {
			return true
		}

		visiting[id] = true
		for _, dep := range dependencies[id] {
			if dep == id {
				continue // self-references never block creation
			}
			if _, exists := itemMap[dep]; exists {
				if !visit(dep) {
					return false
				}
			}
		}
		visiting[id] = false
		visited[id] = true

		if item, exists := itemMap[id]; exists {
			sorted = append(sorted, item)
		}
		return true
	}

	for _, item := range items {
		if id := getID(item); !visited[id] {
			if !visit(id) {
				return nil, false
			}
		}
	}
	return sorted, true
}
