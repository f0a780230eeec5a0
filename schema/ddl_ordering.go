package schema

import "fmt"

// SortModelsByDependencies orders models so that the targets of foreign keys
// and many-to-many relations are created before the models referring to them.
// Foreign keys are deferred until the session closes, so a cycle is not fatal
// for execution, but the caller asked for an order and gets an error instead
// of a silently broken one.
func SortModelsByDependencies(models []*Model) ([]*Model, error) {
	dependencies := make(map[string][]string)
	for _, m := range models {
		for _, f := range m.Fields {
			switch kind := f.kind().(type) {
			case ForeignKey:
				dependencies[m.Table] = append(dependencies[m.Table], kind.TargetTable)
			case ManyToMany:
				if kind.Through == nil || kind.AutoCreated {
					continue
				}
				// An explicit junction model depends on its owner.
				dependencies[kind.Through.Table] = append(dependencies[kind.Through.Table], m.Table)
			}
		}
	}

	sorted, ok := topologicalSort(models, dependencies, func(m *Model) string { return m.Table })
	if !ok {
		return nil, fmt.Errorf("circular foreign key dependency among %d models", len(models))
	}
	return sorted, nil
}
