package agents

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/shinise-scout/internal/ports"
)

func TestShape_Validate(t *testing.T) {
	tests := []struct {
		name    string
		shape   *Shape
		raw     string
		wantErr bool
	}{
		{
			name:  "scored agent answer",
			shape: Praiser.Shape(),
			raw:   `{"summary":"創業60年","details":["a","b"],"score":88}`,
		},
		{
			name:  "missing optional fields",
			shape: Praiser.Shape(),
			raw:   `{}`,
		},
		{
			name:  "optional fields may be null",
			shape: Critic.Shape(),
			raw:   `{"summary":null,"details":null,"riskLevel":null}`,
		},
		{
			name:  "unknown risk values pass",
			shape: Critic.Shape(),
			raw:   `{"summary":"x","riskLevel":"extreme"}`,
		},
		{
			name:  "extra fields are ignored",
			shape: Menu.Shape(),
			raw:   `{"summary":"x","bonus":true}`,
		},
		{
			name:    "score of the wrong type",
			shape:   Praiser.Shape(),
			raw:     `{"summary":"x","score":"high"}`,
			wantErr: true,
		},
		{
			name:    "details must be strings",
			shape:   Crowd.Shape(),
			raw:     `{"details":[1,2]}`,
			wantErr: true,
		},
		{
			name:    "score task requires score",
			shape:   Score.Shape(),
			raw:     `{"reasoning":"r"}`,
			wantErr: true,
		},
		{
			name:  "candidates list",
			shape: Candidates.Shape(),
			raw:   `{"candidates":[{"name":"A","tabelog_rating":3.5,"reasoning":"r","founding_year":"1970年"}]}`,
		},
		{
			name:    "candidate without a name",
			shape:   Candidates.Shape(),
			raw:     `{"candidates":[{"tabelog_rating":3.5}]}`,
			wantErr: true,
		},
		{
			name:    "not an object",
			shape:   Guide.Shape(),
			raw:     `["a"]`,
			wantErr: true,
		},
		{
			name:    "not json",
			shape:   Guide.Shape(),
			raw:     `{broken`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.shape.Validate(json.RawMessage(tt.raw))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var pe *ports.ParseError
			assert.ErrorAs(t, err, &pe)
			assert.ErrorIs(t, err, ports.ErrInvalidResponse)
		})
	}
}

func TestShape_JSONSchema(t *testing.T) {
	shape := NewShape(
		Field{Name: "name", Kind: KindString, Required: true},
		Field{Name: "tags", Kind: KindStringList},
	)

	schema := shape.JSONSchema()

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"name"}, schema["required"])
	props := schema["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string"}, props["name"])
	assert.Contains(t, props["tags"], "anyOf")
}
