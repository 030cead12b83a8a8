package registry

import (
	"fmt"
	"reflect"
	"strings"
)

// validateArgs checks an argument map against a JSON-schema object. Only the
// subset of the schema vocabulary the engine produces is understood: type,
// properties, required, enum, and items for arrays. A nil schema accepts
// anything.
func validateArgs(tool string, schema map[string]any, args map[string]any) error {
	if schema == nil {
		return nil
	}

	props, _ := schema["properties"].(map[string]any)

	if required, ok := schema["required"].([]string); ok {
		for _, field := range required {
			if _, present := args[field]; !present {
				return &SchemaError{Tool: tool, Field: field, Message: "required argument missing"}
			}
		}
	} else if required, ok := schema["required"].([]any); ok {
		for _, f := range required {
			field, _ := f.(string)
			if _, present := args[field]; !present {
				return &SchemaError{Tool: tool, Field: field, Message: "required argument missing"}
			}
		}
	}

	for field, value := range args {
		propSchema, known := props[field]
		if !known {
			if props != nil {
				return &SchemaError{Tool: tool, Field: field, Message: "argument not in schema"}
			}
			continue
		}
		prop, _ := propSchema.(map[string]any)
		if err := validateValue(tool, field, prop, value); err != nil {
			return err
		}
	}

	return nil
}

// validateValue checks a single value against its property schema.
func validateValue(tool, field string, prop map[string]any, value any) error {
	if prop == nil {
		return nil
	}

	if wantType, ok := prop["type"].(string); ok {
		if !matchesType(wantType, value) {
			return &SchemaError{
				Tool:    tool,
				Field:   field,
				Message: fmt.Sprintf("expected %s, got %T", wantType, value),
			}
		}
	}

	if enum, ok := prop["enum"].([]any); ok {
		found := false
		for _, allowed := range enum {
			if reflect.DeepEqual(allowed, value) {
				found = true
				break
			}
		}
		if !found {
			return &SchemaError{Tool: tool, Field: field, Message: "value not in enum"}
		}
	}

	if items, ok := prop["items"].(map[string]any); ok {
		if list, ok := value.([]any); ok {
			for i, elem := range list {
				if err := validateValue(tool, fmt.Sprintf("%s[%d]", field, i), items, elem); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// matchesType reports whether a Go value satisfies a JSON-schema type name.
// JSON numbers decode as float64, so "integer" accepts whole floats too.
func matchesType(want string, value any) bool {
	if value == nil {
		return want == "null"
	}
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "number":
		return isNumeric(value)
	case "integer":
		switch v := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			return v == float64(int64(v))
		default:
			return false
		}
	case "array":
		k := reflect.TypeOf(value).Kind()
		return k == reflect.Slice || k == reflect.Array
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

func isNumeric(value any) bool {
	switch value.(type) {
	case int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}

// CreateSchema builds a JSON-schema object from a Go struct using reflection.
// Field names come from json tags; a "description" tag becomes the property
// description; fields without omitempty are required.
func CreateSchema(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	properties := make(map[string]any)
	required := make([]string, 0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		fieldName := field.Name
		parts := strings.Split(jsonTag, ",")
		if parts[0] != "" {
			fieldName = parts[0]
		}

		fieldSchema := map[string]any{
			"type": jsonTypeFor(field.Type),
		}
		if desc := field.Tag.Get("description"); desc != "" {
			fieldSchema["description"] = desc
		}
		properties[fieldName] = fieldSchema

		if !strings.Contains(jsonTag, "omitempty") && field.Type.Kind() != reflect.Ptr {
			required = append(required, fieldName)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// jsonTypeFor maps a Go type to its JSON-schema type name.
func jsonTypeFor(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return "string"
	}
}
