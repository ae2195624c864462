package util

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// ValidationError reports the first argument that does not fit a tool's
// parameter schema.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Message)
}

// CreateSchema derives an object schema from the exported fields of a struct.
//
// Field names follow the json tag. A field is required unless it is a pointer
// or tagged omitempty. The description tag becomes the property description
// and a comma separated enum tag restricts string values.
func CreateSchema(structType any) map[string]any {
	properties := map[string]any{}
	schema := map[string]any{"type": "object", "properties": properties}

	t := reflect.TypeOf(structType)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t == nil || t.Kind() != reflect.Struct {
		return schema
	}

	var required []string

	for i := range t.NumField() {
		f := t.Field(i)

		name, optional, ok := jsonName(f)
		if !ok {
			continue
		}

		prop := map[string]any{"type": jsonType(f.Type)}

		if d := f.Tag.Get("description"); d != "" {
			prop["description"] = d
		}

		if e := f.Tag.Get("enum"); e != "" {
			prop["enum"] = strings.Split(e, ",")
		}

		properties[name] = prop

		if !optional {
			required = append(required, name)
		}
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// ValidateParameters checks decoded tool arguments against a schema built by
// CreateSchema or decoded from JSON. Unknown arguments are ignored.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	for _, name := range stringList(schema["required"]) {
		if _, ok := params[name]; !ok {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]any)

	for name, value := range params {
		prop, ok := properties[name].(map[string]any)
		if !ok || value == nil {
			continue
		}

		want, _ := prop["type"].(string)
		if !matchesType(value, want) {
			return &ValidationError{Field: name, Value: value, Message: fmt.Sprintf("expected %s, got %T", want, value)}
		}

		allowed := stringList(prop["enum"])
		if s, isString := value.(string); isString && s != "" && len(allowed) > 0 && !slices.Contains(allowed, s) {
			return &ValidationError{Field: name, Value: value, Message: "must be one of " + strings.Join(allowed, ", ")}
		}
	}

	return nil
}

func jsonName(f reflect.StructField) (name string, optional, ok bool) {
	if !f.IsExported() {
		return "", false, false
	}

	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, false
	}

	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}

	optional = f.Type.Kind() == reflect.Pointer || slices.Contains(strings.Split(opts, ","), "omitempty")

	return name, optional, true
}

// stringList accepts both []string (built in Go) and []any (decoded JSON).
func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))

		for _, item := range l {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}

		return out
	}

	return nil
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Pointer:
		return jsonType(t.Elem())
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
	}

	return "string"
}

func matchesType(value any, want string) bool {
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "integer":
		switch v := value.(type) {
		case float64:
			return v == float64(int64(v))
		case float32:
			return v == float32(int64(v))
		}

		return isInteger(reflect.TypeOf(value).Kind())
	case "number":
		k := reflect.TypeOf(value).Kind()
		return isInteger(k) || k == reflect.Float32 || k == reflect.Float64
	case "array":
		k := reflect.TypeOf(value).Kind()
		return k == reflect.Slice || k == reflect.Array
	case "object":
		_, ok := value.(map[string]any)
		return ok
	}

	return true
}

func isInteger(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Uint64
}
