package diffwire

// schemaJSON is the JSON Schema a wire diff document must satisfy before
// decoding, the same validate-before-decode shape cmd/uast/validate.go uses
// for UAST documents. Kept inline rather than in an external schema file
// since the wire format is small and owned entirely by this package.
const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["verbs"],
  "properties": {
    "verbs": {
      "type": "array",
      "items": { "$ref": "#/definitions/verb" }
    }
  },
  "definitions": {
    "verb": {
      "type": "object",
      "required": ["selector"],
      "properties": {
        "selector": {
          "type": "string",
          "enum": ["ins", "del", "pick", "find", "skip", "set", "after", "mut", "emu"]
        },
        "marker": {
          "type": "string",
          "enum": ["ATTRIBS", "END"]
        },
        "arg": { "$ref": "#/definitions/node" }
      }
    },
    "node": {
      "type": "object",
      "required": ["symbol", "kind", "role"],
      "properties": {
        "symbol": { "type": "string" },
        "role": {
          "type": "string",
          "enum": ["attribute", "child"]
        },
        "kind": {
          "type": "string",
          "enum": ["int", "uint", "bool", "double", "string", "time", "duration", "hash", "record"]
        },
        "value": {},
        "children": {
          "type": "object",
          "properties": {
            "typeTag": { "type": "string" },
            "attributes": { "type": "array", "items": { "$ref": "#/definitions/node" } },
            "children": { "type": "array", "items": { "$ref": "#/definitions/node" } }
          }
        }
      }
    }
  }
}`
