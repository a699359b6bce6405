package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-kit/log/level"
	json "github.com/json-iterator/go"

	"github.com/grafana/sqlite-datasource/pkg/datasource"
	"github.com/grafana/sqlite-datasource/pkg/macros"
	"github.com/grafana/sqlite-datasource/pkg/metricfind"
	"github.com/grafana/sqlite-datasource/pkg/templating"
)

// TimeRange is a time range in epoch milliseconds.
type TimeRange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

func (t *TimeRange) toMacros() *macros.TimeRange {
	if t == nil {
		return nil
	}
	return &macros.TimeRange{From: time.UnixMilli(t.From), To: time.UnixMilli(t.To)}
}

// InterpolateRequest is the body of POST /api/interpolate.
type InterpolateRequest struct {
	Query      string                `json:"query"`
	ScopedVars templating.ScopedVars `json:"scopedVars,omitempty"`
	// Format names the format used for placeholders without a specifier.
	Format string     `json:"format,omitempty"`
	Range  *TimeRange `json:"range,omitempty"`
}

// InterpolateResponse is the answer of POST /api/interpolate.
type InterpolateResponse struct {
	Query            string   `json:"query"`
	Unresolved       []string `json:"unresolved"`
	FillInterval     int      `json:"fillInterval,omitempty"`
	ShouldFillValues bool     `json:"shouldFillValues,omitempty"`
}

// MetricFindRequest is the body of POST /api/metric-find.
type MetricFindRequest struct {
	Query      string                `json:"query"`
	ScopedVars templating.ScopedVars `json:"scopedVars,omitempty"`
	Range      *TimeRange            `json:"range,omitempty"`
}

// VariableResponse describes one variable of GET /api/variables.
type VariableResponse struct {
	Name       string              `json:"name"`
	Text       interface{}         `json:"text"`
	Value      interface{}         `json:"value"`
	IsNone     bool                `json:"isNone,omitempty"`
	Options    []templating.Option `json:"options,omitempty"`
	IncludeAll bool                `json:"includeAll,omitempty"`
	AllValue   string              `json:"allValue,omitempty"`
	Format     string              `json:"format"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) interpolateHandler(w http.ResponseWriter, r *http.Request) {
	var req InterpolateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	format := templating.Identity()
	if req.Format != "" {
		format = templating.Named(req.Format)
	}

	resp := InterpolateResponse{
		Query:      s.ds.Interpolate(req.Query, req.ScopedVars, format),
		Unresolved: []string{},
	}
	// names starting with __ are provided by the host or expanded as macros
	for _, name := range templating.Unresolved(req.Query, s.ds.Variables(), req.ScopedVars) {
		if !strings.HasPrefix(name, "__") {
			resp.Unresolved = append(resp.Unresolved, name)
		}
	}

	if tr := req.Range.toMacros(); tr != nil {
		res, err := macros.Apply(macros.ReplaceTimeVariables(resp.Query, *tr), *tr)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		resp.Query = res.Query
		resp.FillInterval = res.FillInterval
		resp.ShouldFillValues = res.ShouldFillValues
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) metricFindHandler(w http.ResponseWriter, r *http.Request) {
	var req MetricFindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	options, err := s.ds.MetricFindQuery(r.Context(), req.Query, datasource.FindOptions{
		ScopedVars: req.ScopedVars,
		Range:      req.Range.toMacros(),
	})
	if err != nil {
		s.writeError(w, metricFindStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, options)
}

// metricFindStatus maps decode failures to 422 and everything else to 502.
func metricFindStatus(err error) int {
	var (
		backendErr *metricfind.BackendError
		missing    *metricfind.MissingTextValueColumnsError
		tooMany    *metricfind.TooManyFieldsError
	)
	switch {
	case errors.As(err, &missing), errors.As(err, &tooMany):
		return http.StatusUnprocessableEntity
	case errors.As(err, &backendErr):
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func (s *Server) variablesHandler(w http.ResponseWriter, _ *http.Request) {
	idx := s.ds.Variables()
	resp := make([]VariableResponse, 0, idx.Len())
	for _, name := range idx.Names() {
		v, _ := idx.Get(name)
		resp = append(resp, VariableResponse{
			Name:       v.Name,
			Text:       v.Current.Text,
			Value:      v.Current.Value,
			IsNone:     v.Current.IsNone,
			Options:    v.Options,
			IncludeAll: v.IncludeAll,
			AllValue:   v.AllValue,
			Format:     v.Format.String(),
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := s.ds.CheckHealth(r.Context())
	code := http.StatusOK
	if !status.OK {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, status)
}

func (s *Server) readyHandler(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("ready\n"))
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, errorResponse{Status: "error", Message: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	buf, err := json.Marshal(v)
	if err != nil {
		level.Error(s.logger).Log("msg", "error marshalling response", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(buf); err != nil {
		level.Warn(s.logger).Log("msg", "error writing response", "err", err)
	}
}
