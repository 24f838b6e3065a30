package models

// DeepMerge returns a new tree holding target overlaid with source.
// Nested maps present on both sides are merged key by key; every other source value
// (scalars, arrays, nil) replaces the target value wholesale. Neither input is modified.
func DeepMerge(target, source map[string]any) map[string]any {
	out := make(map[string]any, len(target)+len(source))
	for k, v := range target {
		out[k] = deepCopyValue(v)
	}
	for k, v := range source {
		srcTree, srcIsTree := asTree(v)
		dstTree, dstIsTree := asTree(out[k])
		if srcIsTree && dstIsTree {
			out[k] = DeepMerge(dstTree, srcTree)
			continue
		}
		out[k] = deepCopyValue(v)
	}
	return out
}

// DeepCopy returns a structural copy of tree. Maps and slices are duplicated at every level.
func DeepCopy(tree map[string]any) map[string]any {
	if tree == nil {
		return nil
	}
	out := make(map[string]any, len(tree))
	for k, v := range tree {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return DeepCopy(val)
	case Theme:
		return DeepCopy(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return val
	}
}

func asTree(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case map[string]any:
		return val, val != nil
	case Theme:
		return val, val != nil
	default:
		return nil, false
	}
}
