package adapter

// PrepareStructuredSchema transforms a streamlined output schema into the
// shape OpenAI/Gemini-style schema-guided decoding requires: every object
// gets `additionalProperties: false`, every property is marked required (with
// originally-optional ones made nullable via `anyOf[T, null]` instead of
// being omitted), recursively. Adapters call this from Build when
// req.StructuredOutput is true and the model supports schema-guided decoding.
func PrepareStructuredSchema(schema map[string]interface{}) map[string]interface{} {
	return prepareNode(schema, nil).(map[string]interface{})
}

func prepareNode(node interface{}, requiredElsewhere []string) interface{} {
	switch n := node.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(n))
		for k, v := range n {
			out[k] = v
		}

		if t, _ := out["type"].(string); t == "object" {
			props, _ := out["properties"].(map[string]interface{})
			if props != nil {
				origRequired := map[string]bool{}
				if reqList, ok := out["required"].([]interface{}); ok {
					for _, r := range reqList {
						if s, ok := r.(string); ok {
							origRequired[s] = true
						}
					}
				}

				allNames := make([]string, 0, len(props))
				newProps := make(map[string]interface{}, len(props))
				for name, pv := range props {
					allNames = append(allNames, name)
					prepared := prepareNode(pv, nil)
					if !origRequired[name] {
						prepared = makeNullable(prepared)
					}
					newProps[name] = prepared
				}
				out["properties"] = newProps
				out["required"] = allNames
				out["additionalProperties"] = false
			}
		}

		if items, ok := out["items"]; ok {
			out["items"] = prepareNode(items, nil)
		}
		for _, key := range []string{"anyOf", "oneOf", "allOf"} {
			if list, ok := out[key].([]interface{}); ok {
				newList := make([]interface{}, len(list))
				for i, e := range list {
					newList[i] = prepareNode(e, nil)
				}
				out[key] = newList
			}
		}

		return out

	default:
		return node
	}
}

func makeNullable(schema interface{}) interface{} {
	m, ok := schema.(map[string]interface{})
	if !ok {
		return schema
	}
	if anyOf, ok := m["anyOf"].([]interface{}); ok {
		for _, e := range anyOf {
			if em, ok := e.(map[string]interface{}); ok && em["type"] == "null" {
				return schema // already nullable
			}
		}
	}
	return map[string]interface{}{
		"anyOf": []interface{}{m, map[string]interface{}{"type": "null"}},
	}
}

// IsSchemaCompatible reports whether schema avoids constructs the supported
// schema-guided decoding backends can't express (e.g. open-ended
// `additionalProperties: true` maps without declared keys). It is
// deliberately permissive: unknown keywords pass through.
func IsSchemaCompatible(schema map[string]interface{}) bool {
	t, _ := schema["type"].(string)
	if t == "object" {
		if ap, ok := schema["additionalProperties"].(bool); ok && ap {
			if _, hasProps := schema["properties"]; !hasProps {
				return false
			}
		}
	}
	return true
}
