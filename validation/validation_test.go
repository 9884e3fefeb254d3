package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = MustCompile([]byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string"},
    "count": {"type": "integer", "minimum": 0}
  }
}`), "test.schema.json")

func TestValidateYAML(t *testing.T) {
	assert.Empty(t, ValidateYAML(testSchema, []byte("name: x\ncount: 2\n")))

	errs := ValidateYAML(testSchema, []byte("count: -1\n"))
	require.Len(t, errs, 2)
	joined := strings.Join(errs, "\n")
	assert.Contains(t, joined, "/count")
	assert.Contains(t, joined, "name")
}

func TestValidateYAMLParseError(t *testing.T) {
	errs := ValidateYAML(testSchema, []byte("name: [unclosed"))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "YAML parse error")
}

func TestValidateJSONUsesTags(t *testing.T) {
	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	assert.Empty(t, ValidateJSON(testSchema, doc{Name: "x", Count: 1}))
	assert.NotEmpty(t, ValidateJSON(testSchema, doc{Name: "x", Count: -3}))
}

func TestMustCompilePanicsOnBadSchema(t *testing.T) {
	assert.Panics(t, func() { MustCompile([]byte("{"), "bad.json") })
}
