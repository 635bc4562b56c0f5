// Package render turns tagged execution results into display items. Every
// result kind has exactly one handler; a handler failure becomes a warning
// for that item and rendering continues with the next one.
package render

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/KaramelBytes/dataviz-agent/internal/sandbox"
	"go.uber.org/zap"
)

// NoVisualizationWarning is emitted once when a run produced no image or
// chart.
const NoVisualizationWarning = "No visualization was produced for this query."

// DisplayKind names the display action chosen for a result.
type DisplayKind string

const (
	DisplayImage   DisplayKind = "image"
	DisplayChart   DisplayKind = "chart"
	DisplayTable   DisplayKind = "table"
	DisplayMetric  DisplayKind = "metric"
	DisplayText    DisplayKind = "text"
	DisplayGeneric DisplayKind = "generic"
)

// Theme is the fixed look applied to charts.
type Theme struct {
	Background string `json:"background"`
	AxisText   string `json:"axis_text"`
	Title      string `json:"title"`
}

// DarkTheme matches the page palette.
var DarkTheme = Theme{Background: "#0a1929", AxisText: "cyan", Title: "white"}

// Display is one rendered item. Only the field matching Kind is set.
type Display struct {
	Kind     DisplayKind
	Position int // 1-based index in the execution results
	Image    *ImageDisplay
	Chart    *ChartDisplay
	Table    *TableDisplay
	Metric   *MetricDisplay
	Text     string
}

type ImageDisplay struct {
	Format  string
	MIME    string
	Data    []byte
	Caption string
	Width   int
	Height  int
}

// DataURI returns the image as an inline data URI.
func (d *ImageDisplay) DataURI() string {
	return "data:" + d.MIME + ";base64," + base64.StdEncoding.EncodeToString(d.Data)
}

type ChartDisplay struct {
	Type   string
	Title  string
	XLabel string
	YLabel string
	Theme  Theme
	// Spec is the chart description with the theme merged in under "theme".
	Spec json.RawMessage
}

type TableDisplay struct {
	Columns []string
	Rows    [][]string
	Grid    bool
}

type MetricDisplay struct {
	Label string
	Value string
}

// Report is the outcome of rendering one execution.
type Report struct {
	Displays       []Display
	Warnings       []string
	Visualizations int
}

type handler func(r *Renderer, pos int, item sandbox.Result) (Display, error)

var handlers = map[sandbox.Kind]handler{
	sandbox.KindImage:        (*Renderer).image,
	sandbox.KindChart:        (*Renderer).chart,
	sandbox.KindTable:        (*Renderer).table,
	sandbox.KindScalar:       (*Renderer).metric,
	sandbox.KindText:         (*Renderer).text,
	sandbox.KindUnrecognized: (*Renderer).generic,
}

// Renderer maps results to displays.
type Renderer struct {
	Theme  Theme
	logger *zap.Logger
}

// New returns a renderer using DarkTheme. A nil logger disables logging.
func New(logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{Theme: DarkTheme, logger: logger}
}

// Render dispatches every item in order.
func (r *Renderer) Render(items []sandbox.Result) Report {
	var rep Report
	for i, item := range items {
		pos := i + 1
		if item.Kind.IsVisualization() {
			rep.Visualizations++
		}
		d, err := r.dispatch(pos, item, rep.Visualizations)
		if err != nil {
			msg := fmt.Sprintf("Could not display result %d (%s): %v", pos, item.Kind, err)
			r.logger.Warn("render item failed", zap.Int("position", pos), zap.String("kind", string(item.Kind)), zap.Error(err))
			rep.Warnings = append(rep.Warnings, msg)
			continue
		}
		rep.Displays = append(rep.Displays, d)
	}
	if rep.Visualizations == 0 {
		rep.Warnings = append(rep.Warnings, NoVisualizationWarning)
	}
	return rep
}

func (r *Renderer) dispatch(pos int, item sandbox.Result, vis int) (d Display, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	h, ok := handlers[item.Kind]
	if !ok {
		h = (*Renderer).generic
	}
	d, err = h(r, pos, item)
	if err != nil {
		return Display{}, err
	}
	d.Position = pos
	if d.Image != nil {
		d.Image.Caption = fmt.Sprintf("Visualization %d", vis)
	}
	return d, nil
}

var errNothingToDisplay = errors.New("nothing to display")

func (r *Renderer) image(_ int, item sandbox.Result) (Display, error) {
	if item.Image == nil {
		return Display{}, errors.New("missing image payload")
	}
	var data []byte
	if item.Image.Format == "svg" && strings.HasPrefix(strings.TrimSpace(item.Image.Data), "<") {
		data = []byte(item.Image.Data)
	} else {
		b, err := decodeBase64(item.Image.Data)
		if err != nil {
			return Display{}, fmt.Errorf("decode image: %w", err)
		}
		data = b
	}
	img := &ImageDisplay{Format: item.Image.Format, Data: data}
	switch item.Image.Format {
	case "svg":
		if !bytes.Contains(data[:min(len(data), 1024)], []byte("<svg")) {
			return Display{}, errors.New("invalid svg document")
		}
		img.MIME = "image/svg+xml"
	default:
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return Display{}, fmt.Errorf("invalid %s image: %w", item.Image.Format, err)
		}
		img.Format, img.MIME = format, "image/"+format
		img.Width, img.Height = cfg.Width, cfg.Height
	}
	return Display{Kind: DisplayImage, Image: img}, nil
}

func (r *Renderer) chart(_ int, item sandbox.Result) (Display, error) {
	if item.Chart == nil {
		return Display{}, errors.New("missing chart payload")
	}
	spec := map[string]any{}
	if len(item.Chart.Spec) > 0 {
		if err := json.Unmarshal(item.Chart.Spec, &spec); err != nil {
			return Display{}, fmt.Errorf("decode chart: %w", err)
		}
	}
	spec["theme"] = r.Theme
	themed, err := json.Marshal(spec)
	if err != nil {
		return Display{}, fmt.Errorf("encode chart: %w", err)
	}
	c := item.Chart
	return Display{Kind: DisplayChart, Chart: &ChartDisplay{
		Type:   c.Type,
		Title:  c.Title,
		XLabel: c.XLabel,
		YLabel: c.YLabel,
		Theme:  r.Theme,
		Spec:   themed,
	}}, nil
}

func (r *Renderer) table(_ int, item sandbox.Result) (Display, error) {
	if item.Table == nil || len(item.Table.Columns) == 0 {
		return Display{}, errors.New("table has no columns")
	}
	n := len(item.Table.Columns)
	rows := make([][]string, 0, len(item.Table.Rows))
	for _, row := range item.Table.Rows {
		if len(row) != n {
			fixed := make([]string, n)
			copy(fixed, row)
			row = fixed
		}
		rows = append(rows, row)
	}
	return Display{Kind: DisplayTable, Table: &TableDisplay{
		Columns: append([]string(nil), item.Table.Columns...),
		Rows:    rows,
		Grid:    true,
	}}, nil
}

func (r *Renderer) metric(_ int, item sandbox.Result) (Display, error) {
	if item.Scalar == nil {
		return Display{}, errors.New("missing scalar payload")
	}
	v := item.Scalar.Repr
	if v == "" {
		v = fmt.Sprintf("%g", item.Scalar.Value)
	}
	return Display{Kind: DisplayMetric, Metric: &MetricDisplay{Label: "Result", Value: v}}, nil
}

func (r *Renderer) text(_ int, item sandbox.Result) (Display, error) {
	return Display{Kind: DisplayText, Text: item.Text}, nil
}

// generic shows the best textual form of an unrecognized result.
func (r *Renderer) generic(_ int, item sandbox.Result) (Display, error) {
	raw := item.Raw
	for _, s := range []string{raw.Text, raw.Markdown, raw.HTML} {
		if strings.TrimSpace(s) != "" {
			return Display{Kind: DisplayGeneric, Text: s}, nil
		}
	}
	for _, m := range []json.RawMessage{raw.JSON, raw.Data, raw.Chart} {
		if len(bytes.TrimSpace(m)) == 0 || string(bytes.TrimSpace(m)) == "null" {
			continue
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, m, "", "  "); err != nil {
			return Display{}, fmt.Errorf("format json: %w", err)
		}
		return Display{Kind: DisplayGeneric, Text: buf.String()}, nil
	}
	return Display{}, errNothingToDisplay
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
