package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KaramelBytes/dataviz-agent/internal/ai"
	"github.com/KaramelBytes/dataviz-agent/internal/dataset"
	"github.com/KaramelBytes/dataviz-agent/internal/prompt"
	"github.com/KaramelBytes/dataviz-agent/internal/session"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	flashError   = "error"
	flashSuccess = "success"
)

// flash is a one-shot banner carried in the cookie.
type flash struct {
	Kind    string
	Message string
}

// sessionFor resolves the cookie to a live session, creating one when the
// cookie is missing, invalid or points at a pruned session.
func (s *Server) sessionFor(r *http.Request) (*session.Session, *sessions.Session) {
	// A decode error still yields a usable new cookie session.
	cs, _ := s.sessionStore.Get(r, cookieName)
	if id, ok := cs.Values["sid"].(string); ok {
		if sess, ok := s.sessions.Get(id); ok {
			return sess, cs
		}
	}
	sess := s.sessions.Create()
	sess.Update(func(x *session.Session) {
		if _, ok := ai.LookupModel(s.cfg.DefaultModel); ok {
			x.Model = s.cfg.DefaultModel
		}
		x.Question = prompt.DefaultQuestion
	})
	cs.Values["sid"] = sess.ID
	return sess, cs
}

func (s *Server) save(w http.ResponseWriter, r *http.Request, cs *sessions.Session) {
	if err := cs.Save(r, w); err != nil {
		s.logger.Warn("save session cookie", zap.Error(err))
	}
}

func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request, cs *sessions.Session) {
	s.save(w, r, cs)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func takeFlashes(cs *sessions.Session) []flash {
	var out []flash
	for _, kind := range []string{flashError, flashSuccess} {
		for _, v := range cs.Flashes(kind) {
			if msg, ok := v.(string); ok {
				out = append(out, flash{Kind: kind, Message: msg})
			}
		}
	}
	return out
}

// applySettings copies credential and model fields from a submitted form.
// Empty key fields keep the stored key so the page never echoes secrets.
func applySettings(sess *session.Session, r *http.Request) {
	sess.Update(func(x *session.Session) {
		if r.PostFormValue("clear_keys") != "" {
			x.ProviderKey, x.SandboxKey = "", ""
		}
		if v := strings.TrimSpace(r.PostFormValue("provider_key")); v != "" {
			x.ProviderKey = v
		}
		if v := strings.TrimSpace(r.PostFormValue("sandbox_key")); v != "" {
			x.SandboxKey = v
		}
		if v := r.PostFormValue("model"); v != "" {
			x.Model = v
		}
	})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess, cs := s.sessionFor(r)
	if v := r.URL.Query().Get("full"); v != "" {
		sess.Update(func(x *session.Session) { x.ShowFull = v == "1" || v == "true" })
	}
	flashes := takeFlashes(cs)
	s.save(w, r, cs)

	data := s.pageData(sess.Snapshot(), flashes)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Error("render page", zap.Error(err))
	}
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	sess, cs := s.sessionFor(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	applySettings(sess, r)
	if err := sess.Snapshot().Validate(); err != nil {
		cs.AddFlash(err.Error(), flashError)
	} else {
		cs.AddFlash("✓ Settings saved", flashSuccess)
	}
	s.redirectHome(w, r, cs)
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	sess, cs := s.sessionFor(r)
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			cs.AddFlash(fmt.Sprintf("File exceeds the %d MB upload limit", s.cfg.MaxUploadBytes>>20), flashError)
		} else {
			cs.AddFlash("Upload failed: "+err.Error(), flashError)
		}
		s.redirectHome(w, r, cs)
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		cs.AddFlash("Choose a CSV or TSV file to upload", flashError)
		s.redirectHome(w, r, cs)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		cs.AddFlash("Upload failed: "+err.Error(), flashError)
		s.redirectHome(w, r, cs)
		return
	}
	ds, err := dataset.Parse(hdr.Filename, data, dataset.Options{MaxRows: 100000, PreviewRows: s.cfg.PreviewRows})
	if err != nil {
		cs.AddFlash(err.Error(), flashError)
		s.redirectHome(w, r, cs)
		return
	}
	sess.Update(func(x *session.Session) {
		x.Dataset = ds
		x.Last = nil
	})
	s.logger.Info("dataset uploaded",
		zap.String("session", sess.ID),
		zap.String("name", ds.Name),
		zap.Int("rows", ds.TotalRows),
		zap.Int("columns", len(ds.Columns)))
	cs.AddFlash(fmt.Sprintf("✓ Loaded %s (%d rows, %d columns)", ds.Name, ds.TotalRows, len(ds.Columns)), flashSuccess)
	s.redirectHome(w, r, cs)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sess, cs := s.sessionFor(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !sess.TryBegin() {
		http.Error(w, "an analysis is already running for this session", http.StatusConflict)
		return
	}
	defer sess.End()

	applySettings(sess, r)
	question := strings.TrimSpace(r.PostFormValue("question"))
	sess.Update(func(x *session.Session) { x.Question = question })
	snap := sess.Snapshot()

	an := &session.Analysis{Question: question, Started: time.Now()}
	out, err := s.agent.Run(r.Context(), snap, question, snap.Dataset)
	if err != nil {
		an.Error = err.Error()
		s.logger.Warn("analysis failed", zap.String("session", sess.ID), zap.Error(err))
	} else {
		an.Text = out.Text
		an.Code = out.Code
		an.Report = out.Report(s.renderer)
	}
	an.Duration = time.Since(an.Started)
	sess.Update(func(x *session.Session) { x.Last = an })
	s.redirectHome(w, r, cs)
}
