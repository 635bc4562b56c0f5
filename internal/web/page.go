package web

import (
	"embed"
	"html/template"

	"github.com/KaramelBytes/dataviz-agent/internal/ai"
	"github.com/KaramelBytes/dataviz-agent/internal/dataset"
	"github.com/KaramelBytes/dataviz-agent/internal/render"
	"github.com/KaramelBytes/dataviz-agent/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("page.html").Funcs(template.FuncMap{
	"dataURI": func(d *render.ImageDisplay) template.URL { return template.URL(d.DataURI()) },
}).ParseFS(templateFS, "templates/page.html"))

type pageData struct {
	Models         []ai.ModelInfo
	Model          string
	HasProviderKey bool
	HasSandboxKey  bool
	Question       string
	Dataset        *dataset.Dataset
	Preview        [][]string
	ShowFull       bool
	Flashes        []flash
	Analysis       *session.Analysis
	MaxUploadMB    int64
}

func (s *Server) pageData(sess *session.Session, flashes []flash) pageData {
	return pageData{
		Models:         ai.Models(),
		Model:          sess.Model,
		HasProviderKey: sess.ProviderKey != "",
		HasSandboxKey:  sess.SandboxKey != "",
		Question:       sess.Question,
		Dataset:        sess.Dataset,
		Preview:        sess.Dataset.Preview(sess.ShowFull),
		ShowFull:       sess.ShowFull,
		Flashes:        flashes,
		Analysis:       sess.Last,
		MaxUploadMB:    s.cfg.MaxUploadBytes >> 20,
	}
}
