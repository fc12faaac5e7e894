package schema

import (
	jsonschema "github.com/swaggest/jsonschema-go"
)

const draft = "http://json-schema.org/draft-07/schema#"

// ChatRequestSchema describes the body of POST /api/chat. maxBytes bounds
// the message; JSON Schema counts characters, so the bound is advisory.
func ChatRequestSchema(maxBytes int) *jsonschema.Schema {
	s := CreateObjectSchema(map[string]*jsonschema.Schema{
		"message": CreateBoundedStringSchema("The user's message. Must contain non-whitespace text.", 1, int64(maxBytes)),
		"chatId":  CreateNullableStringSchema("Conversation to continue. Omit or null to start a new one."),
	}, []string{"message"})
	return titled(s, "ChatRequest")
}

// HelloRequestSchema describes the body of POST /api/hello.
func HelloRequestSchema(maxBytes int) *jsonschema.Schema {
	s := CreateObjectSchema(map[string]*jsonschema.Schema{
		"message": CreateBoundedStringSchema("A single question answered without history.", 1, int64(maxBytes)),
	}, []string{"message"})
	return titled(s, "HelloRequest")
}

// HistoryResponseSchema describes the body of GET /api/chats/{chatId}.
func HistoryResponseSchema() *jsonschema.Schema {
	turn := CreateObjectSchema(map[string]*jsonschema.Schema{
		"role":    CreateStringSchemaEnum("Author of the turn.", []string{"user", "assistant"}),
		"content": CreateStringSchema("Text of the turn."),
	}, []string{"role", "content"})
	s := CreateObjectSchema(map[string]*jsonschema.Schema{
		"chatId": CreateStringSchema("Conversation id."),
		"turns":  CreateArraySchema("Turns in the order they were stored.", turn),
	}, []string{"chatId", "turns"})
	return titled(s, "HistoryResponse")
}

// ErrorResponseSchema describes JSON error bodies.
func ErrorResponseSchema() *jsonschema.Schema {
	s := CreateObjectSchema(map[string]*jsonschema.Schema{
		"error": CreateStringSchema("Human readable error message."),
	}, []string{"error"})
	return titled(s, "ErrorResponse")
}

// APIDocument bundles every payload schema under definitions, with the chat
// request as the root.
func APIDocument(maxBytes int) *jsonschema.Schema {
	root := ChatRequestSchema(maxBytes)
	d := draft
	root.Schema = &d
	root.Definitions = map[string]jsonschema.SchemaOrBool{
		"HelloRequest":    {TypeObject: HelloRequestSchema(maxBytes)},
		"HistoryResponse": {TypeObject: HistoryResponseSchema()},
		"ErrorResponse":   {TypeObject: ErrorResponseSchema()},
	}
	return root
}

func titled(s *jsonschema.Schema, title string) *jsonschema.Schema {
	s.Title = &title
	return s
}
