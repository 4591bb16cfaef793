// Package pipeline implements the input pipeline (C2): schema validation,
// file extraction, message templating, and canonical input hashing.
package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/workflowai/gateway/core"
)

// internalDefs are the gateway's canonical file-shaped schema fragments.
// Streamlining replaces any `$ref` pointing at one of these names with the
// concrete shape so downstream consumers (adapters, the UI) never need to
// resolve refs themselves.
var internalDefs = map[string]map[string]interface{}{
	"File": {
		"type": "object",
		"properties": map[string]interface{}{
			"url":          map[string]interface{}{"type": "string"},
			"data":         map[string]interface{}{"type": "string"},
			"content_type": map[string]interface{}{"type": "string"},
		},
	},
	"Image":         nil, // aliases of File; filled in below
	"Audio":         nil,
	"PDF":           nil,
	"DatetimeLocal": {
		"type": "string",
		"format": "date-time",
	},
}

func init() {
	for _, alias := range []string{"Image", "Audio", "PDF"} {
		internalDefs[alias] = internalDefs["File"]
	}
}

// Schema is a streamlined JSON schema: internal refs inlined, metadata
// dropped, nullability normalized to anyOf[T, null].
type Schema struct {
	Raw        map[string]interface{}
	Compiled   *jsonschema.Schema
	IsMessages bool // format: "messages" (input) or "message" (output)
}

// Streamline inlines `$ref`s (including the internal File/Image/Audio/PDF/
// DatetimeLocal defs), drops non-structural metadata (title, description,
// examples), and compiles the result for structural validation.
//
// processingRefs guards against cyclic $ref graphs: a ref already being
// inlined on the current path is left as-is rather than recursed into again.
func Streamline(raw map[string]interface{}) (*Schema, error) {
	defs, _ := raw["$defs"].(map[string]interface{})
	streamlined := streamlineNode(raw, defs, map[string]bool{}).(map[string]interface{})
	delete(streamlined, "$defs")

	format, _ := streamlined["format"].(string)

	compiler := jsonschema.NewCompiler()
	raw2, err := json.Marshal(streamlined)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal streamlined schema: %v", core.ErrInvalidConfiguration, err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw2, &doc); err != nil {
		return nil, err
	}
	const resourceURL = "mem://streamlined.json"
	if err := compiler.AddResource(resourceURL, doc); err != nil {
		return nil, fmt.Errorf("%w: invalid schema: %v", core.ErrInvalidConfiguration, err)
	}
	compiled, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid schema: %v", core.ErrInvalidConfiguration, err)
	}

	return &Schema{
		Raw:        streamlined,
		Compiled:   compiled,
		IsMessages: format == "messages" || format == "message",
	}, nil
}

func streamlineNode(node interface{}, defs map[string]interface{}, processingRefs map[string]bool) interface{} {
	switch n := node.(type) {
	case map[string]interface{}:
		if ref, ok := n["$ref"].(string); ok {
			name := refName(ref)
			if def, isInternal := internalDefs[name]; isInternal && def != nil {
				return streamlineNode(deepCopy(def), defs, processingRefs)
			}
			if processingRefs[ref] {
				// cyclic reference: stop recursing, keep the ref as a leaf.
				return map[string]interface{}{"$ref": ref}
			}
			if target, ok := defs[name]; ok {
				processingRefs[ref] = true
				resolved := streamlineNode(target, defs, processingRefs)
				delete(processingRefs, ref)
				return resolved
			}
		}

		out := make(map[string]interface{}, len(n))
		for k, v := range n {
			switch k {
			case "title", "description", "examples", "$defs", "$id", "$schema":
				continue
			}
			out[k] = streamlineNode(v, defs, processingRefs)
		}
		normalizeNullability(out)
		return out

	case []interface{}:
		out := make([]interface{}, len(n))
		for i, v := range n {
			out[i] = streamlineNode(v, defs, processingRefs)
		}
		return out

	default:
		return n
	}
}

// normalizeNullability converts the common `"type": ["string", "null"]`
// shorthand to an explicit `anyOf` so every streamlined schema uses one
// nullability idiom.
func normalizeNullability(node map[string]interface{}) {
	types, ok := node["type"].([]interface{})
	if !ok || len(types) != 2 {
		return
	}
	hasNull := false
	var other interface{}
	for _, t := range types {
		if t == "null" {
			hasNull = true
		} else {
			other = t
		}
	}
	if !hasNull || other == nil {
		return
	}
	delete(node, "type")
	node["anyOf"] = []interface{}{
		map[string]interface{}{"type": other},
		map[string]interface{}{"type": "null"},
	}
}

func refName(ref string) string {
	for i := len(ref) - 1; i >= 0; i-- {
		if ref[i] == '/' {
			return ref[i+1:]
		}
	}
	return ref
}

func deepCopy(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if mv, ok := v.(map[string]interface{}); ok {
			out[k] = deepCopy(mv)
		} else {
			out[k] = v
		}
	}
	return out
}

// Validate checks data against the streamlined schema.
func (s *Schema) Validate(data interface{}) error {
	if s.Compiled == nil {
		return nil
	}
	if err := s.Compiled.Validate(data); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidConfiguration, err)
	}
	return nil
}
