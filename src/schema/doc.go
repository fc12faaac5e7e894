// Package schema describes the relay's HTTP payloads as JSON Schema.
//
// The schemas are built by hand with small helpers so that they match the
// decoder's lenient behavior: unknown fields are allowed and chatId may be
// null or absent.
//
//	doc := schema.APIDocument(32 << 10)
//	b, _ := json.MarshalIndent(doc, "", "  ")
package schema
