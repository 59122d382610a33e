package esm

import "github.com/Sumatoshi-tech/globalesm/pkg/jsast"

// partitionExports splits exports into keyed bindings and spread bindings,
// keeping collection order within each.
func partitionExports(exports []ExportBinding) (named, spread []ExportBinding) {
	for _, exp := range exports {
		if exp.Kind == KindNamespaceOrAll {
			spread = append(spread, exp)
		} else {
			named = append(named, exp)
		}
	}

	return named, spread
}

// namedObject builds `{ default: x, a, c: b }`.
func namedObject(named []ExportBinding) *jsast.Object {
	obj := &jsast.Object{Props: make([]jsast.Prop, 0, len(named))}

	for _, exp := range named {
		key := exp.ExportedName()

		if key == exp.Local {
			obj.Props = append(obj.Props, jsast.Prop{Key: key, Shorthand: true})

			continue
		}

		obj.Props = append(obj.Props, jsast.Prop{Key: key, Value: &jsast.Ident{Name: exp.Local}})
	}

	return obj
}

// spreadObject builds `{ ...a, ...b }`.
func spreadObject(spread []ExportBinding) *jsast.Object {
	obj := &jsast.Object{Props: make([]jsast.Prop, 0, len(spread))}

	for _, exp := range spread {
		obj.Props = append(obj.Props, jsast.Prop{Value: &jsast.Ident{Name: exp.Local}, Spread: true})
	}

	return obj
}
