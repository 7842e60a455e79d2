package validation

const patternList = `{"type": "array", "items": {"type": "string", "maxLength": 512}, "maxItems": 200}`

// DisplayRulesSchema describes the stored per-campaign display rules.
const DisplayRulesSchema = `{
	"type": "object",
	"properties": {
		"showDurationMs": {"type": "integer", "minimum": 0, "maximum": 600000},
		"intervalMs":     {"type": "integer", "minimum": 0, "maximum": 86400000},
		"maxPerPage":     {"type": "integer", "minimum": 0, "maximum": 1000},
		"maxPerSession":  {"type": "integer", "minimum": 0, "maximum": 10000},
		"urlAllow":       ` + patternList + `,
		"urlDeny":        ` + patternList + `,
		"referrerAllow":  ` + patternList + `,
		"referrerDeny":   ` + patternList + `,
		"geoAllow":       ` + patternList + `,
		"geoDeny":        ` + patternList + `,
		"enforceVerifiedOnly": {"type": "boolean"},
		"triggers": {
			"type": "object",
			"properties": {
				"minTimeOnPageMs": {"type": "integer", "minimum": 0},
				"scrollDepthPct":  {"type": "integer", "minimum": 0, "maximum": 100},
				"exitIntent":      {"type": "boolean"}
			}
		}
	}
}`

const PlaylistRulesSchema = `{
	"type": "object",
	"properties": {
		"sequenceMode":       {"type": "string", "enum": ["priority", "sequential", "random"]},
		"maxPerSession":      {"type": "integer", "minimum": 0},
		"cooldownSeconds":    {"type": "integer", "minimum": 0},
		"conflictResolution": {"type": "string", "enum": ["priority", "newest", "oldest"]}
	}
}`

const pageSchema = `{
	"type": "object",
	"required": ["url"],
	"properties": {
		"url":               {"type": "string", "minLength": 1, "maxLength": 4096},
		"referrer":          {"type": "string", "maxLength": 4096},
		"geoCode":           {"type": "string", "maxLength": 8},
		"isVerifiedVisitor": {"type": "boolean"},
		"timeOnPageMs":      {"type": "integer", "minimum": 0},
		"scrollDepthPct":    {"type": "integer", "minimum": 0, "maximum": 100},
		"exitIntent":        {"type": "boolean"}
	}
}`

const sessionSchema = `{
	"type": "object",
	"required": ["sessionId"],
	"properties": {
		"sessionId":  {"type": "string", "minLength": 1, "maxLength": 128},
		"pageViewId": {"type": "string", "maxLength": 128}
	}
}`

// AdmissionRequestSchema describes POST /v1/widgets/{widgetID}/admissions.
const AdmissionRequestSchema = `{
	"type": "object",
	"required": ["session", "page"],
	"properties": {
		"session":    ` + sessionSchema + `,
		"pageViewId": {"type": "string", "maxLength": 128},
		"page":       ` + pageSchema + `
	}
}`

// DisplayRequestSchema describes POST /v1/widgets/{widgetID}/displays.
const DisplayRequestSchema = `{
	"type": "object",
	"required": ["session", "eventId", "campaignId"],
	"properties": {
		"session":    ` + sessionSchema + `,
		"pageViewId": {"type": "string", "maxLength": 128},
		"eventId":    {"type": "string", "minLength": 1},
		"campaignId": {"type": "string", "minLength": 1},
		"playlistId": {"type": "string"}
	}
}`
