package sandbox

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Kind is the closed set of result tags produced at the sandbox boundary.
type Kind string

const (
	KindImage        Kind = "image"
	KindChart        Kind = "chart"
	KindTable        Kind = "table"
	KindScalar       Kind = "scalar"
	KindText         Kind = "text"
	KindUnrecognized Kind = "unrecognized"
)

// Kinds lists every tag in dispatch order.
var Kinds = []Kind{KindImage, KindChart, KindTable, KindScalar, KindText, KindUnrecognized}

// IsVisualization reports whether results of this kind count as a chart.
func (k Kind) IsVisualization() bool { return k == KindImage || k == KindChart }

// Result is one tagged output unit of a remote run. Exactly the field
// matching Kind is populated; Raw keeps the original message.
type Result struct {
	Kind   Kind
	Image  *Image
	Chart  *Chart
	Table  *Table
	Scalar *Scalar
	Text   string
	Raw    RawResult
}

// Image holds base64-encoded image bytes as returned by the interpreter.
type Image struct {
	Format string // png | jpeg | svg
	Data   string
}

// Chart is an interactive chart description extracted from a figure.
type Chart struct {
	Type   string          `json:"type"`
	Title  string          `json:"title"`
	XLabel string          `json:"x_label,omitempty"`
	YLabel string          `json:"y_label,omitempty"`
	Spec   json.RawMessage `json:"-"`
}

// Table is a rectangular dataset with a header row.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Scalar is a single numeric value.
type Scalar struct {
	Value  float64
	Repr   string
	Intish bool
}

// RawResult mirrors a "result" message of the execute stream.
type RawResult struct {
	Text         string          `json:"text,omitempty"`
	HTML         string          `json:"html,omitempty"`
	Markdown     string          `json:"markdown,omitempty"`
	PNG          string          `json:"png,omitempty"`
	JPEG         string          `json:"jpeg,omitempty"`
	SVG          string          `json:"svg,omitempty"`
	JSON         json.RawMessage `json:"json,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Chart        json.RawMessage `json:"chart,omitempty"`
	IsMainResult bool            `json:"is_main_result,omitempty"`
}

// Classify tags a raw interpreter result. Images win over charts, charts
// over tables, and text is split into scalars and plain text.
func Classify(raw RawResult) Result {
	r := Result{Kind: KindUnrecognized, Raw: raw}
	switch {
	case raw.PNG != "":
		r.Kind, r.Image = KindImage, &Image{Format: "png", Data: raw.PNG}
	case raw.JPEG != "":
		r.Kind, r.Image = KindImage, &Image{Format: "jpeg", Data: raw.JPEG}
	case raw.SVG != "":
		r.Kind, r.Image = KindImage, &Image{Format: "svg", Data: raw.SVG}
	case isPresent(raw.Chart):
		var c Chart
		if err := json.Unmarshal(raw.Chart, &c); err == nil {
			c.Spec = append(json.RawMessage(nil), raw.Chart...)
			r.Kind, r.Chart = KindChart, &c
		}
	case isPresent(raw.Data):
		if t, ok := decodeTable(raw.Data); ok {
			r.Kind, r.Table = KindTable, t
		}
	case raw.Text != "" && raw.HTML == "" && !isPresent(raw.JSON):
		if s, ok := parseScalar(raw.Text); ok {
			r.Kind, r.Scalar = KindScalar, s
		} else {
			r.Kind, r.Text = KindText, raw.Text
		}
	}
	return r
}

func isPresent(m json.RawMessage) bool {
	s := strings.TrimSpace(string(m))
	return s != "" && s != "null"
}

func parseScalar(s string) (*Scalar, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil, false
	}
	if i, err := strconv.ParseInt(t, 10, 64); err == nil {
		return &Scalar{Value: float64(i), Repr: t, Intish: true}, true
	}
	// numpy scalars print as e.g. np.float64(3.5)
	if strings.HasPrefix(t, "np.") {
		if lp, rp := strings.IndexByte(t, '('), strings.LastIndexByte(t, ')'); lp > 0 && rp > lp {
			t = t[lp+1 : rp]
		}
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return nil, false
	}
	return &Scalar{Value: f, Repr: t}, true
}

// decodeTable accepts the pandas "split" orientation
// ({"columns":[...],"data":[[...]]}), a list of records, or a dict of
// column -> {index: value}.
func decodeTable(raw json.RawMessage) (*Table, bool) {
	var split struct {
		Columns []any   `json:"columns"`
		Data    [][]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &split); err == nil && len(split.Columns) > 0 {
		t := &Table{Columns: stringify(split.Columns)}
		for _, row := range split.Data {
			t.Rows = append(t.Rows, stringify(row))
		}
		return t, true
	}
	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err == nil && len(records) > 0 {
		cols := sortedKeys(records[0])
		t := &Table{Columns: cols}
		for _, rec := range records {
			row := make([]string, len(cols))
			for i, c := range cols {
				row[i] = cellString(rec[c])
			}
			t.Rows = append(t.Rows, row)
		}
		return t, true
	}
	var byColumn map[string]map[string]any
	if err := json.Unmarshal(raw, &byColumn); err == nil && len(byColumn) > 0 {
		cols := sortedKeys(byColumn)
		index := map[string]bool{}
		var order []string
		for _, c := range cols {
			for _, k := range sortedKeys(byColumn[c]) {
				if !index[k] {
					index[k] = true
					order = append(order, k)
				}
			}
		}
		t := &Table{Columns: append([]string{""}, cols...)}
		for _, k := range order {
			row := []string{k}
			for _, c := range cols {
				row = append(row, cellString(byColumn[c][k]))
			}
			t.Rows = append(t.Rows, row)
		}
		return t, true
	}
	return nil, false
}

func stringify(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = cellString(v)
	}
	return out
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
