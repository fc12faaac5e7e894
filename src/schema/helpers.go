package schema

import (
	jsonschema "github.com/swaggest/jsonschema-go"
)

// CreateStringSchema creates a JSON schema for a string field
func CreateStringSchema(description string) *jsonschema.Schema {
	strType := jsonschema.String
	return &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &strType},
		Description: &description,
	}
}

// CreateNullableStringSchema creates a schema accepting a string or null.
func CreateNullableStringSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: &jsonschema.Type{
			SliceOfSimpleTypeValues: []jsonschema.SimpleType{jsonschema.String, jsonschema.Null},
		},
		Description: &description,
	}
}

// CreateBoundedStringSchema creates a string schema with a minimum length
// and, when maxLength > 0, a maximum length.
func CreateBoundedStringSchema(description string, minLength, maxLength int64) *jsonschema.Schema {
	s := CreateStringSchema(description)
	s.MinLength = minLength
	if maxLength > 0 {
		s.MaxLength = &maxLength
	}
	return s
}

// CreateObjectSchema creates a JSON schema for an object with properties and required fields
func CreateObjectSchema(properties map[string]*jsonschema.Schema, required []string) *jsonschema.Schema {
	schemaProps := make(map[string]jsonschema.SchemaOrBool, len(properties))
	for name, prop := range properties {
		schemaProps[name] = jsonschema.SchemaOrBool{TypeObject: prop}
	}

	objType := jsonschema.Object
	return &jsonschema.Schema{
		Type:       &jsonschema.Type{SimpleTypes: &objType},
		Properties: schemaProps,
		Required:   required,
	}
}

// CreateArraySchema creates a schema for an array of items.
func CreateArraySchema(description string, items *jsonschema.Schema) *jsonschema.Schema {
	arrType := jsonschema.Array
	return &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &arrType},
		Description: &description,
		Items:       &jsonschema.Items{SchemaOrBool: &jsonschema.SchemaOrBool{TypeObject: items}},
	}
}

// CreateStringSchemaEnum creates a JSON schema for a string field with enum values
func CreateStringSchemaEnum(description string, enumValues []string) *jsonschema.Schema {
	s := CreateStringSchema(description)
	s.Enum = make([]interface{}, len(enumValues))
	for i, v := range enumValues {
		s.Enum[i] = v
	}
	return s
}
