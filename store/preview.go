package store

import "fmt"

const previewTextLimit = 200

// Preview renders a compact, human-scannable summary of an arbitrary
// task_input/task_output value for list views, where the full payload would
// be too large or too noisy to show. Text is truncated; images are rendered
// as a bracketed reference rather than inlined; everything else is
// flattened into a labelled key/value list one level deep.
func Preview(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return truncateRunes(t, previewTextLimit)
	case map[string]interface{}:
		return previewObject(t)
	default:
		return truncateRunes(fmt.Sprintf("%v", t), previewTextLimit)
	}
}

func previewObject(m map[string]interface{}) string {
	if url, ok := imageURL(m); ok {
		return fmt.Sprintf("[img:%s]", truncateRunes(url, previewTextLimit))
	}

	out := ""
	for k, v := range m {
		entry := fmt.Sprintf("%s=%v", k, previewScalar(v))
		if out != "" {
			out += ", "
		}
		out += entry
		if len(out) >= previewTextLimit {
			break
		}
	}
	return truncateRunes(out, previewTextLimit)
}

func previewScalar(v interface{}) string {
	switch t := v.(type) {
	case string:
		return truncateRunes(t, 40)
	case map[string]interface{}:
		if url, ok := imageURL(t); ok {
			return fmt.Sprintf("[img:%s]", truncateRunes(url, 40))
		}
		return "{...}"
	case []interface{}:
		return fmt.Sprintf("[%d items]", len(t))
	default:
		return fmt.Sprintf("%v", t)
	}
}

// imageURL recognizes an image object of the shape
// {"type": "image", "url": "..."}.
func imageURL(m map[string]interface{}) (string, bool) {
	if m["type"] != "image" {
		return "", false
	}
	url, ok := m["url"].(string)
	return url, ok
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
