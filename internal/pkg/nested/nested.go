// Package nested reads and writes values inside JSON-shaped documents
// (map[string]any / []any trees) addressed by dotted paths such as
// "businessData.address.city" or "sections.faq.items.0.question".
package nested

import (
	"sort"
	"strconv"
	"strings"

	jujuerrors "github.com/juju/errors"
)

// Split breaks a dotted path into segments. An empty path has no segments.
func Split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Get walks doc along path. It reports false at the first missing segment,
// including when an intermediate value is not a container.
func Get(doc any, path string) (any, bool) {
	cur := doc
	for _, seg := range Split(path) {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
		if cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// Set returns a copy of doc with the value at path replaced. Only the
// containers along path are copied; every other subtree is shared with doc,
// which is left untouched. Missing intermediates become empty maps. A path
// that TrySet rejects leaves doc as it is.
func Set(doc map[string]any, path string, value any) map[string]any {
	out, err := TrySet(doc, path, value)
	if err != nil {
		return doc
	}
	return out
}

// TrySet is Set, but it fails instead of rewriting an existing list when a
// segment addressing it is not an index in 0..len(list).
func TrySet(doc map[string]any, path string, value any) (map[string]any, error) {
	segs := Split(path)
	if len(segs) == 0 {
		return doc, nil
	}
	node, err := setIn(doc, segs, value, "")
	if err != nil {
		return doc, err
	}
	out, _ := node.(map[string]any)
	return out, nil
}

func setIn(node any, segs []string, value any, at string) (any, error) {
	if len(segs) == 0 {
		return value, nil
	}
	seg, rest := segs[0], segs[1:]
	here := seg
	if at != "" {
		here = at + "." + seg
	}

	if list, ok := node.([]any); ok {
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i > len(list) {
			return nil, jujuerrors.NotValidf("index %q for %q (len %d)", seg, at, len(list))
		}
		cp := make([]any, len(list), len(list)+1)
		copy(cp, list)
		if i == len(list) {
			cp = append(cp, nil)
		}
		child, err := setIn(cp[i], rest, value, here)
		if err != nil {
			return nil, err
		}
		cp[i] = child
		return cp, nil
	}

	src, _ := node.(map[string]any)
	cp := make(map[string]any, len(src)+1)
	for k, v := range src {
		cp[k] = v
	}
	child, err := setIn(cp[seg], rest, value, here)
	if err != nil {
		return nil, err
	}
	cp[seg] = child
	return cp, nil
}

// Delete returns a copy of doc without the key at path, sharing untouched
// subtrees. A missing path returns doc unchanged.
func Delete(doc map[string]any, path string) map[string]any {
	segs := Split(path)
	if len(segs) == 0 {
		return doc
	}
	if _, ok := Get(doc, path); !ok {
		return doc
	}
	parent := strings.Join(segs[:len(segs)-1], ".")
	last := segs[len(segs)-1]

	var container any = doc
	if parent != "" {
		container, _ = Get(doc, parent)
	}
	m, ok := container.(map[string]any)
	if !ok {
		return doc
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		if k != last {
			cp[k] = v
		}
	}
	if parent == "" {
		return cp
	}
	return Set(doc, parent, cp)
}

// Flatten lists the leaf paths of a nested patch. Arrays and empty objects
// count as leaves so that they replace, rather than merge into, the target.
func Flatten(patch map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", patch)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok && len(child) > 0 {
			flattenInto(out, path, child)
			continue
		}
		out[path] = v
	}
}

// Merge applies every leaf of patch onto doc with Set, in sorted path order.
func Merge(doc map[string]any, patch map[string]any) map[string]any {
	leaves := Flatten(patch)
	paths := make([]string, 0, len(leaves))
	for p := range leaves {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := doc
	if out == nil {
		out = map[string]any{}
	}
	for _, p := range paths {
		out = Set(out, p, leaves[p])
	}
	return out
}
