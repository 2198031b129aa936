package ui

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"peerscan/adapters/stats/tables"
	"peerscan/internal/errors"
	"peerscan/models"
)

type indexPage struct {
	Runs []models.RunSummary
}

type runPage struct {
	Run    models.RunSummary
	Report template.HTML
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := a.runs.ListRuns(r.Context(), a.config.PageSize)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.renderTemplate(w, "index.html", indexPage{Runs: runs})
}

func (a *App) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}

	page := runPage{Run: run.Summary()}
	if result := run.Response.Result; result != nil {
		// tables.HTML escapes all table text, so the fragment carries no markup from the data.
		page.Report = template.HTML(tables.HTML(result))
	}
	a.renderTemplate(w, "run.html", page)
}

func (a *App) handleRunMarkdown(w http.ResponseWriter, r *http.Request) {
	run, err := a.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if run.Response.Result == nil {
		a.fail(w, r, errors.InvalidInput("run "+run.ID.String()+" has no report: "+run.ErrorMessage()))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(tables.Markdown(run.Response.Result)))
}

func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("%s %s: %v", r.Method, r.URL.Path, err)
	}
	http.Error(w, err.Error(), status)
}
