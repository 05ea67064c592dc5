package schema

import (
	"strings"

	"github.com/bytedance/sonic"
)

// Name identifies the schema in structured-output requests.
const Name = "ProductSchema"

// JSONSchema returns the contract as a strict JSON Schema object. Strict
// structured output requires every property to be listed as required, so
// nullable fields advertise a null type instead of being optional.
func JSONSchema() map[string]any {
	properties := make(map[string]any, len(Fields))
	required := make([]string, 0, len(Fields))

	for _, f := range Fields {
		properties[f.Name] = fieldSchema(f)
		required = append(required, f.Name)
	}

	return map[string]any{
		"type":                 "object",
		"title":                Name,
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func fieldSchema(f Field) map[string]any {
	var prop map[string]any

	switch f.Kind {
	case KindStringList:
		items := map[string]any{"type": "string"}
		if len(f.Enum) > 0 {
			items["enum"] = f.Enum
		}
		prop = map[string]any{"type": "array", "items": items}
	default:
		prop = map[string]any{"type": "string"}
		if len(f.Enum) > 0 {
			prop["enum"] = f.Enum
		}
	}

	if f.Nullable {
		prop["type"] = []string{prop["type"].(string), "null"}
	}
	prop["description"] = f.Description
	return prop
}

// Describe renders the contract as indented JSON Schema text for backends
// that only accept a schema through the prompt.
func Describe() string {
	out, err := sonic.ConfigStd.MarshalIndent(JSONSchema(), "", "  ")
	if err != nil {
		return Name
	}
	return string(out)
}

// FieldNames lists the contract's property names in order.
func FieldNames() []string {
	names := make([]string, len(Fields))
	for i, f := range Fields {
		names[i] = f.Name
	}
	return names
}

// Lookup finds a field by name.
func Lookup(name string) (Field, bool) {
	for _, f := range Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Field{}, false
}
