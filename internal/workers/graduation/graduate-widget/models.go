package graduatewidget

import "proof-engine/internal/common/validation"

type Input struct {
	WidgetID string `json:"widgetId"`
}

// Output is written back to the process as job variables.
type Output struct {
	WidgetID           string  `json:"widgetId"`
	Graduated          bool    `json:"graduated"`
	Changed            bool    `json:"changed"`
	Ready              bool    `json:"ready"`
	GraduationProgress float64 `json:"graduationProgress"`
	TargetRatio        float64 `json:"targetRatio"`
	HealthScore        float64 `json:"healthScore"`
}

const inputSchemaJSON = `{
  "type": "object",
  "required": ["widgetId"],
  "properties": {
    "widgetId": {"type": "string", "minLength": 1}
  }
}`

var inputSchema = validation.MustCompile("graduate-widget-input", inputSchemaJSON)
