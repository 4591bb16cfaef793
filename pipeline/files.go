package pipeline

import (
	"fmt"

	"github.com/workflowai/gateway/adapter"
)

// ExtractFiles walks a validated structured input and hoists every embedded
// file-shaped object (one with a "url" and/or "data" key, optionally with
// "content_type", "format" or "storage_url", and no other key) into a
// separate, ordered file list, replacing it in-place
// with a positional placeholder `{"$file_ref": <index>}` (§4.2: "replaced in
// the payload by positional placeholders").
//
// The returned data is the stripped payload (the "variables" dictionary);
// files is in first-seen, depth-first order.
func ExtractFiles(data interface{}) (interface{}, []adapter.File) {
	var files []adapter.File
	stripped := extractNode(data, &files)
	return stripped, files
}

func extractNode(node interface{}, files *[]adapter.File) interface{} {
	switch n := node.(type) {
	case map[string]interface{}:
		if f, ok := asFile(n); ok {
			idx := len(*files)
			*files = append(*files, f)
			// float64, the type a JSON decode yields, so RehydrateFiles
			// accepts fresh and persisted payloads alike.
			return map[string]interface{}{"$file_ref": float64(idx)}
		}
		out := make(map[string]interface{}, len(n))
		for k, v := range n {
			out[k] = extractNode(v, files)
		}
		return out

	case []interface{}:
		out := make([]interface{}, len(n))
		for i, v := range n {
			out[i] = extractNode(v, files)
		}
		return out

	default:
		return n
	}
}

// asFile reports whether m structurally matches the canonical File shape
// (at least one of "url"/"data" present, optionally "content_type"/"format").
// This mirrors the internalDefs the schema streamliner recognizes.
func asFile(m map[string]interface{}) (adapter.File, bool) {
	url, hasURL := m["url"].(string)
	data, hasData := m["data"].(string)
	if !hasURL && !hasData {
		return adapter.File{}, false
	}
	// Require that this look like a leaf file object, not a general record
	// that happens to have a "url" field among many unrelated ones.
	for k := range m {
		switch k {
		case "url", "data", "content_type", "format", "storage_url":
		default:
			return adapter.File{}, false
		}
	}
	f := adapter.File{URL: url, Data: data}
	if hasURL {
		f.URL = url
	}
	if hasData {
		f.Data = data
	}
	if ct, ok := m["content_type"].(string); ok {
		f.ContentType = ct
	}
	if fmtField, ok := m["format"].(string); ok {
		f.Format = fmtField
	} else {
		f.Format = InferFormat(f.ContentType)
	}
	return f, true
}

// InferFormat buckets a MIME content-type into the canonical File.Format
// taxonomy (spec §3: "image | audio | pdf | document").
func InferFormat(contentType string) string {
	switch {
	case len(contentType) >= 6 && contentType[:6] == "image/":
		return "image"
	case len(contentType) >= 6 && contentType[:6] == "audio/":
		return "audio"
	case contentType == "application/pdf":
		return "pdf"
	default:
		return "document"
	}
}

// RehydrateFiles reverses ExtractFiles for adapters that need the files
// inlined back into the payload (e.g. a provider whose wire format expects
// files positioned in-line rather than passed as a side list).
func RehydrateFiles(data interface{}, files []adapter.File) (interface{}, error) {
	return rehydrateNode(data, files)
}

func rehydrateNode(node interface{}, files []adapter.File) (interface{}, error) {
	switch n := node.(type) {
	case map[string]interface{}:
		if refVal, ok := n["$file_ref"]; ok && len(n) == 1 {
			idx, ok := refVal.(float64)
			if !ok || int(idx) < 0 || int(idx) >= len(files) {
				return nil, fmt.Errorf("pipeline: invalid file reference %v", refVal)
			}
			f := files[int(idx)]
			return map[string]interface{}{
				"url": f.URL, "data": f.Data, "content_type": f.ContentType,
			}, nil
		}
		out := make(map[string]interface{}, len(n))
		for k, v := range n {
			rv, err := rehydrateNode(v, files)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil

	case []interface{}:
		out := make([]interface{}, len(n))
		for i, v := range n {
			rv, err := rehydrateNode(v, files)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil

	default:
		return n, nil
	}
}
