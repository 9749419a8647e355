// Package scene turns domain records into keyed visual elements and works out,
// per layer, which elements enter, stay or leave the rendering surface.
package scene

// Diff is the keyed set difference between the elements currently on a
// surface and the items of a new pass
type Diff[K comparable, T any] struct {
	Entering   []T // Items whose key was not present, in input order
	Continuing []T // Items whose key was already present, in input order
	Exiting    []K // Present keys with no matching item, in old-key order
	Duplicates []T // Later items repeating a key seen earlier in the pass
}

// Reconcile classifies items against the keys already bound to a layer. It
// has no side effects. When two items share a key the first one wins and the
// others are reported as duplicates.
func Reconcile[K comparable, T any](oldKeys []K, items []T, key func(T) K) Diff[K, T] {
	old := make(map[K]struct{}, len(oldKeys))
	for _, k := range oldKeys {
		old[k] = struct{}{}
	}

	var d Diff[K, T]
	seen := make(map[K]struct{}, len(items))
	for _, item := range items {
		k := key(item)
		if _, dup := seen[k]; dup {
			d.Duplicates = append(d.Duplicates, item)
			continue
		}
		seen[k] = struct{}{}

		if _, ok := old[k]; ok {
			d.Continuing = append(d.Continuing, item)
		} else {
			d.Entering = append(d.Entering, item)
		}
	}

	exited := make(map[K]struct{})
	for _, k := range oldKeys {
		if _, ok := seen[k]; ok {
			continue
		}
		if _, done := exited[k]; done {
			continue
		}
		exited[k] = struct{}{}
		d.Exiting = append(d.Exiting, k)
	}
	return d
}
