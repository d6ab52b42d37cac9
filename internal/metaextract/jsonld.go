package metaextract

import "encoding/json"

// jsonldNode is a loosely-typed JSON-LD object. Schema.org fields are
// frequently either a bare string or a nested object (e.g. "author" can
// be "Jane Doe" or {"@type":"Person","name":"Jane Doe"}), so values are
// kept as any and resolved field-by-field.
type jsonldNode map[string]any

// parseJSONLDBlocks unmarshals every <script type="application/ld+json">
// block into a flat list of nodes, expanding @graph arrays and top-level
// arrays, tolerating individually malformed blocks.
func parseJSONLDBlocks(blocks []string) []jsonldNode {
	var nodes []jsonldNode
	for _, raw := range blocks {
		var generic any
		if err := json.Unmarshal([]byte(raw), &generic); err != nil {
			continue
		}
		nodes = append(nodes, flattenJSONLD(generic)...)
	}
	return nodes
}

func flattenJSONLD(v any) []jsonldNode {
	switch val := v.(type) {
	case map[string]any:
		nodes := []jsonldNode{jsonldNode(val)}
		if graph, ok := val["@graph"].([]any); ok {
			for _, g := range graph {
				nodes = append(nodes, flattenJSONLD(g)...)
			}
		}
		return nodes
	case []any:
		var nodes []jsonldNode
		for _, item := range val {
			nodes = append(nodes, flattenJSONLD(item)...)
		}
		return nodes
	default:
		return nil
	}
}

func (n jsonldNode) typeIs(t string) bool {
	switch v := n["@type"].(type) {
	case string:
		return v == t
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == t {
				return true
			}
		}
	}
	return false
}

func (n jsonldNode) str(key string) string {
	if v, ok := n[key].(string); ok {
		return v
	}
	return ""
}

// personName resolves a field that may be a bare string or a nested
// Person/Organization object with a "name" key.
func personName(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		if name, ok := val["name"].(string); ok {
			return name
		}
	case []any:
		for _, item := range val {
			if name := personName(item); name != "" {
				return name
			}
		}
	}
	return ""
}

func stringList(v any) []string {
	switch val := v.(type) {
	case string:
		return splitAndTrim(val, ",")
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
