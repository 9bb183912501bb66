package server

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
)

// templateFuncs are available to every page template.
var templateFuncs = template.FuncMap{
	"money": func(v float64) string {
		return "$" + humanize.FormatFloat("#,###.##", v)
	},
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return humanize.Time(t)
	},
	"percent": func(part, total int) int {
		if total == 0 {
			return 0
		}
		return part * 100 / total
	},
}

// indexPage is the data passed to the "index" template.
type indexPage struct {
	Title    string
	Overview any
}

// locationPage is the data passed to the "location" template.
type locationPage struct {
	Title    string
	Location any
	Grid     any
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, "index", indexPage{
		Title:    s.cfg.Title,
		Overview: s.source.Overview(),
	})
}

func (s *Server) handleLocationPage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	loc, ok := s.source.Location(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	grid, ok := s.source.Grid(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	s.render(w, "location", locationPage{
		Title:    s.cfg.Title,
		Location: loc,
		Grid:     grid,
	})
}

// render executes a page into a buffer first so template errors produce a
// clean 500 instead of a half-written page.
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("failed to render page", "page", name, "error", err)
		http.Error(w, fmt.Sprintf("failed to render %s", name), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Error("failed to write page", "page", name, "error", err)
	}
}
