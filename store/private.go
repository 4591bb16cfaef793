package store

import "strings"

// StripPrivateFields removes every dotted subpath in private from data,
// returning a copy. "a.b.c" deletes key "c" inside data["a"]["b"]; a path
// whose prefix isn't an object (or doesn't exist) is a no-op for that path.
// Arrays are not indexable by a dotted path and are left untouched.
func StripPrivateFields(data map[string]interface{}, private []string) map[string]interface{} {
	out := deepCopyObject(data)
	for _, path := range private {
		stripPath(out, strings.Split(path, "."))
	}
	return out
}

func stripPath(obj map[string]interface{}, segments []string) {
	if len(segments) == 0 {
		return
	}
	if len(segments) == 1 {
		delete(obj, segments[0])
		return
	}
	next, ok := obj[segments[0]].(map[string]interface{})
	if !ok {
		return
	}
	stripPath(next, segments[1:])
}

func deepCopyObject(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = deepCopyObject(nested)
			continue
		}
		out[k] = v
	}
	return out
}
