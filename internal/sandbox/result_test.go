package sandbox

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  RawResult
		want Kind
	}{
		{"png wins over text", RawResult{PNG: "AAAA", Text: "<Figure>"}, KindImage},
		{"jpeg", RawResult{JPEG: "AAAA"}, KindImage},
		{"svg", RawResult{SVG: "<svg/>"}, KindImage},
		{"chart", RawResult{Chart: json.RawMessage(`{"type":"bar","title":"Cost"}`), Text: "<Figure>"}, KindChart},
		{"table split", RawResult{Data: json.RawMessage(`{"columns":["a"],"data":[[1]]}`)}, KindTable},
		{"integer", RawResult{Text: "42"}, KindScalar},
		{"float", RawResult{Text: " 3.25\n"}, KindScalar},
		{"numpy float", RawResult{Text: "np.float64(512.5)"}, KindScalar},
		{"plain text", RawResult{Text: "Average cost is 450"}, KindText},
		{"html only", RawResult{HTML: "<div>x</div>", Text: "x"}, KindUnrecognized},
		{"json only", RawResult{JSON: json.RawMessage(`{"k":1}`)}, KindUnrecognized},
		{"empty", RawResult{}, KindUnrecognized},
		{"null chart falls through to text", RawResult{Chart: json.RawMessage(`null`), Text: "7"}, KindScalar},
		{"malformed chart", RawResult{Chart: json.RawMessage(`[1,2]`)}, KindUnrecognized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.raw)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.raw, got.Raw)
		})
	}
}

func TestClassifyScalarValues(t *testing.T) {
	r := Classify(RawResult{Text: "np.float64(512.5)"})
	require.NotNil(t, r.Scalar)
	assert.Equal(t, 512.5, r.Scalar.Value)
	assert.False(t, r.Scalar.Intish)

	r = Classify(RawResult{Text: "7"})
	require.NotNil(t, r.Scalar)
	assert.True(t, r.Scalar.Intish)
}

func TestDecodeTableShapes(t *testing.T) {
	records, ok := decodeTable(json.RawMessage(`[{"b":2,"a":"x"},{"a":"y","b":null}]`))
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, records.Columns)
	assert.Equal(t, [][]string{{"x", "2"}, {"y", ""}}, records.Rows)

	byCol, ok := decodeTable(json.RawMessage(`{"cost":{"0":100,"1":250},"city":{"0":"Pune","1":"Goa"}}`))
	require.True(t, ok)
	assert.Equal(t, []string{"", "city", "cost"}, byCol.Columns)
	assert.Equal(t, [][]string{{"0", "Pune", "100"}, {"1", "Goa", "250"}}, byCol.Rows)

	_, ok = decodeTable(json.RawMessage(`"nope"`))
	assert.False(t, ok)
}

func TestKindIsVisualization(t *testing.T) {
	for _, k := range Kinds {
		assert.Equal(t, k == KindImage || k == KindChart, k.IsVisualization(), string(k))
	}
}
