package render

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/dataviz-agent/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBase64(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func imageResult(data string) sandbox.Result {
	return sandbox.Result{Kind: sandbox.KindImage, Image: &sandbox.Image{Format: "png", Data: data}}
}

func TestRenderImageThenTable(t *testing.T) {
	items := []sandbox.Result{
		imageResult(pngBase64(t)),
		{Kind: sandbox.KindTable, Table: &sandbox.Table{Columns: []string{"type", "avg"}, Rows: [][]string{{"Buffet", "800"}}}},
	}
	rep := New(nil).Render(items)

	require.Len(t, rep.Displays, 2)
	assert.Equal(t, 1, rep.Visualizations)
	assert.Empty(t, rep.Warnings)

	img := rep.Displays[0]
	assert.Equal(t, DisplayImage, img.Kind)
	assert.Equal(t, "Visualization 1", img.Image.Caption)
	assert.Equal(t, 4, img.Image.Width)
	assert.Equal(t, 3, img.Image.Height)
	assert.True(t, strings.HasPrefix(img.Image.DataURI(), "data:image/png;base64,"))

	tbl := rep.Displays[1]
	assert.Equal(t, DisplayTable, tbl.Kind)
	assert.Equal(t, 2, tbl.Position)
	assert.True(t, tbl.Table.Grid)
}

func TestRenderEmptyWarnsOnce(t *testing.T) {
	rep := New(nil).Render(nil)
	assert.Empty(t, rep.Displays)
	assert.Equal(t, []string{NoVisualizationWarning}, rep.Warnings)
}

func TestRenderCorruptImageDoesNotAbort(t *testing.T) {
	items := []sandbox.Result{
		imageResult("not base64!!"),
		imageResult(base64.StdEncoding.EncodeToString([]byte("\x89PNG garbage"))),
		{Kind: sandbox.KindScalar, Scalar: &sandbox.Scalar{Value: 42, Repr: "42", Intish: true}},
	}
	rep := New(nil).Render(items)

	require.Len(t, rep.Displays, 1)
	assert.Equal(t, DisplayMetric, rep.Displays[0].Kind)
	assert.Equal(t, MetricDisplay{Label: "Result", Value: "42"}, *rep.Displays[0].Metric)
	require.Len(t, rep.Warnings, 2)
	assert.Contains(t, rep.Warnings[0], "result 1")
	assert.Contains(t, rep.Warnings[1], "result 2")
	assert.Equal(t, 2, rep.Visualizations)
}

func TestRenderChartAppliesTheme(t *testing.T) {
	raw := json.RawMessage(`{"type":"bar","title":"Avg cost","elements":[{"label":"Buffet","value":800}]}`)
	items := []sandbox.Result{{Kind: sandbox.KindChart, Chart: &sandbox.Chart{Type: "bar", Title: "Avg cost", Spec: raw}}}
	rep := New(nil).Render(items)

	require.Len(t, rep.Displays, 1)
	c := rep.Displays[0].Chart
	require.NotNil(t, c)
	assert.Equal(t, DarkTheme, c.Theme)
	assert.Equal(t, "#0a1929", c.Theme.Background)

	var spec map[string]any
	require.NoError(t, json.Unmarshal(c.Spec, &spec))
	assert.Equal(t, "bar", spec["type"])
	theme := spec["theme"].(map[string]any)
	assert.Equal(t, "cyan", theme["axis_text"])
	assert.Equal(t, 1, rep.Visualizations)
	assert.Empty(t, rep.Warnings)
}

func TestRenderCaptionsCountVisualizations(t *testing.T) {
	b64 := pngBase64(t)
	items := []sandbox.Result{
		imageResult(b64),
		{Kind: sandbox.KindText, Text: "note"},
		imageResult(b64),
	}
	rep := New(nil).Render(items)
	require.Len(t, rep.Displays, 3)
	assert.Equal(t, "Visualization 1", rep.Displays[0].Image.Caption)
	assert.Equal(t, "Visualization 2", rep.Displays[2].Image.Caption)
}

func TestRenderGenericAndUnrecognized(t *testing.T) {
	items := []sandbox.Result{
		{Kind: sandbox.KindUnrecognized, Raw: sandbox.RawResult{HTML: "<b>hi</b>"}},
		{Kind: sandbox.KindUnrecognized, Raw: sandbox.RawResult{JSON: json.RawMessage(`{"a":1}`)}},
		{Kind: sandbox.KindUnrecognized},
		{Kind: sandbox.Kind("mystery"), Raw: sandbox.RawResult{Text: "x"}},
	}
	rep := New(nil).Render(items)

	require.Len(t, rep.Displays, 3)
	assert.Equal(t, "<b>hi</b>", rep.Displays[0].Text)
	assert.Equal(t, "{\n  \"a\": 1\n}", rep.Displays[1].Text)
	assert.Equal(t, DisplayGeneric, rep.Displays[2].Kind)
	assert.Equal(t, 4, rep.Displays[2].Position)
	require.Len(t, rep.Warnings, 2)
	assert.Contains(t, rep.Warnings[0], "result 3")
	assert.Equal(t, NoVisualizationWarning, rep.Warnings[1])
}

func TestRenderSVG(t *testing.T) {
	items := []sandbox.Result{{Kind: sandbox.KindImage, Image: &sandbox.Image{Format: "svg", Data: `<svg xmlns="http://www.w3.org/2000/svg"></svg>`}}}
	rep := New(nil).Render(items)
	require.Len(t, rep.Displays, 1)
	assert.Equal(t, "image/svg+xml", rep.Displays[0].Image.MIME)
}

func TestHandlersCoverEveryKind(t *testing.T) {
	for _, k := range sandbox.Kinds {
		_, ok := handlers[k]
		assert.True(t, ok, "no handler for %s", k)
	}
}

func TestWriteTerminal(t *testing.T) {
	items := []sandbox.Result{
		imageResult(pngBase64(t)),
		{Kind: sandbox.KindTable, Table: &sandbox.Table{Columns: []string{"city"}, Rows: [][]string{{"Pune"}}}},
		{Kind: sandbox.KindScalar, Scalar: &sandbox.Scalar{Value: 2.5, Repr: "2.5"}},
	}
	rep := New(nil).Render(items)
	dir := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, WriteTerminal(&buf, rep, dir))
	out := buf.String()
	assert.Contains(t, out, "Visualization 1")
	assert.Contains(t, out, "Pune")
	assert.Contains(t, out, "Result: 2.5")
	assert.Contains(t, out, "(1 rows)")

	_, err := os.Stat(filepath.Join(dir, "visualization-1.png"))
	assert.NoError(t, err)
}
