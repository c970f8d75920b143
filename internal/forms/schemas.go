// internal/forms/schemas.go
package forms

// Per-form JSON Schemas for the open form_data map. Adding a season means
// adding a schema here plus a row in the forms table; the applications table
// itself never changes shape.
var formSchemas = map[string]string{
	"2026-cfg-application":   cfgApplicationSchema,
	"2026-judge-application": judgeApplicationSchema,
}

const cfgApplicationSchema = `{
	"type": "object",
	"required": [
		"first_name", "last_name", "email", "age", "country", "university",
		"major", "graduation_year", "phone", "why_hackduke", "why_track",
		"community_agr", "photo_agr", "waiver_agr"
	],
	"properties": {
		"first_name": {"type": "string", "minLength": 1},
		"last_name": {"type": "string", "minLength": 1},
		"pref_name": {"type": "string"},
		"email": {"type": "string", "format": "email"},
		"age": {"type": ["number", "string"]},
		"resume": {"type": "string"},
		"country": {"type": "string", "minLength": 1},
		"university": {"type": "string", "minLength": 1},
		"major": {"type": "string", "minLength": 1},
		"graduation_year": {"type": ["number", "string"]},
		"phone": {"type": "string", "minLength": 7},
		"why_hackduke": {"type": "string", "minLength": 1},
		"why_track": {"type": "string", "minLength": 1},
		"community_agr": {"type": "boolean", "enum": [true]},
		"photo_agr": {"type": "boolean", "enum": [true]},
		"waiver_agr": {"type": "boolean", "enum": [true]}
	}
}`

const judgeApplicationSchema = `{
	"type": "object",
	"required": ["first_name", "last_name", "email", "affiliation", "track_preference"],
	"properties": {
		"first_name": {"type": "string", "minLength": 1},
		"last_name": {"type": "string", "minLength": 1},
		"email": {"type": "string", "format": "email"},
		"affiliation": {"type": "string", "minLength": 1},
		"track_preference": {"type": "string"},
		"prior_judging": {"type": "boolean"}
	}
}`
