package util

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slotQuery struct {
	VaccineName string  `json:"vaccine_name" description:"Canonical vaccine name"`
	Limit       int     `json:"limit,omitempty"`
	Clinic      *string `json:"clinic"`
}

// -------------------- Schema Tests --------------------

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(slotQuery{})
	props := schema["properties"].(map[string]any)

	assert.Equal(t, "string", props["vaccine_name"].(map[string]any)["type"])
	assert.Equal(t, "Canonical vaccine name", props["vaccine_name"].(map[string]any)["description"])
	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])
	assert.Equal(t, []string{"vaccine_name"}, schema["required"])
}

func TestValidateParameters_RequiredFromGoSchema(t *testing.T) {
	schema := CreateSchema(slotQuery{})

	err := ValidateParameters(map[string]any{"limit": 2.0}, schema)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "vaccine_name", verr.Field)

	assert.NoError(t, ValidateParameters(map[string]any{"vaccine_name": "Influenza (INF)"}, schema))
}

func TestValidateParameters_RequiredFromJSONSchema(t *testing.T) {
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"type":"object","properties":{"id":{"type":"integer"}},"required":["id"]}`), &schema))

	assert.Error(t, ValidateParameters(map[string]any{}, schema))
	assert.Error(t, ValidateParameters(map[string]any{"id": 1.5}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"id": 3.0}, schema))
}

func TestValidateParameters_Enum(t *testing.T) {
	type clinicQuery struct {
		ClinicType string `json:"clinic_type,omitempty" enum:"polyclinic,gp"`
	}

	schema := CreateSchema(clinicQuery{})
	props := schema["properties"].(map[string]any)
	assert.Equal(t, []string{"polyclinic", "gp"}, props["clinic_type"].(map[string]any)["enum"])
	assert.NotContains(t, schema, "required")

	assert.NoError(t, ValidateParameters(map[string]any{"clinic_type": "gp"}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"clinic_type": ""}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{}, schema))

	err := ValidateParameters(map[string]any{"clinic_type": "hospital"}, schema)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "clinic_type", verr.Field)
	assert.Equal(t, "hospital", verr.Value)
}

// -------------------- Template Tests --------------------

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", out)

	out, err = RenderTemplate(`From {{.date}} to {{addDays .date 3}} for {{default "any vaccine" .vaccine}}`, map[string]any{"date": "2025-02-27", "vaccine": ""})
	require.NoError(t, err)
	assert.Equal(t, "From 2025-02-27 to 2025-03-02 for any vaccine", out)

	out, err = RenderTemplate(`{{upper .a}}`, map[string]any{"a": "x & y"})
	require.NoError(t, err)
	assert.Equal(t, "X & Y", out)

	out, err = RenderTemplate(`{{.date}}{{with weekday .date}} ({{.}}){{end}}`, map[string]any{"date": "2024-06-29"})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-29 (Saturday)", out)

	_, err = RenderTemplate("{{.broken", nil)
	assert.Error(t, err)
}
