package http

import (
	"errors"
	"net/http"

	"resoluciones/internal/amqp"
	"resoluciones/internal/core"
	derrors "resoluciones/internal/errors"
	"resoluciones/internal/log"
	"resoluciones/internal/records"
	"resoluciones/internal/services"
	"resoluciones/internal/syscheck"
)

func unavailable(what string) *JSONResponse {
	return ErrorResponse(http.StatusServiceUnavailable, "Unavailable", what+" is not configured on this server")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse("ok").Write(w, r)
}

func (s *Server) handleLoadConfig(w http.ResponseWriter, r *http.Request) {
	if s.deps.Records == nil {
		unavailable("record storage").Write(w, r)
		return
	}
	record, err := s.deps.Records.Load(s.deps.RecordPath)
	if errors.Is(err, records.ErrNotFound) {
		ErrorResponse(http.StatusNotFound, derrors.CodeRecordNotFound, "no record saved yet").
			Field("guidance", "POST a record to /config or create one with /draft.").
			Write(w, r)
		return
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "load record failed", log.FieldError, err.Error())
		ErrorResponse(http.StatusInternalServerError, derrors.CodeInternal, err.Error()).Write(w, r)
		return
	}
	NewJSONResponse("record loaded").Field("record", record).Write(w, r)
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	if s.deps.Records == nil {
		unavailable("record storage").Write(w, r)
		return
	}
	record, err := decodeRecord(w, r)
	if err != nil {
		ErrorFrom(err).Write(w, r)
		return
	}
	res, err := s.deps.Records.Save(s.deps.RecordPath, record)
	if err != nil {
		ErrorFrom(err).
			Field("validation_errors", res.Errors).
			Field("warnings", res.Warnings).
			Write(w, r)
		return
	}
	NewJSONResponse("record saved").Field("warnings", res.Warnings).Write(w, r)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	record, err := decodeRecord(w, r)
	if err != nil {
		ErrorFrom(err).Write(w, r)
		return
	}
	res := s.validator.Validate(record)
	resp := NewJSONResponse(res.Summary()).
		Field("errors", emptyIfNil(res.Errors)).
		Field("warnings", emptyIfNil(res.Warnings))
	if !res.OK() {
		resp.Field("success", false).Field("error_code", string(derrors.CodeValidationFailed))
	}
	resp.Write(w, r)
}

// generateBody is the /generate and /jobs payload. Without a record the
// stored record is used.
type generateBody struct {
	Record   map[string]any `json:"record,omitempty"`
	FileBase string         `json:"file_base,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Generator == nil {
		unavailable("document generation").Write(w, r)
		return
	}
	var body generateBody
	if err := decodeJSON(w, r, &body, true); err != nil {
		ErrorFrom(err).Write(w, r)
		return
	}
	req := services.GenerateRequest{RecordPath: s.deps.RecordPath, FileBase: body.FileBase}

	if body.Record != nil {
		res := s.deps.Generator.GenerateRecord(r.Context(), normalizeNumbers(body.Record).(map[string]any), req)
		writeResult(w, r, res.Success, res.Code, res)
		return
	}
	res, err := s.deps.Generator.GenerateFromFile(r.Context(), req)
	if err != nil {
		ErrorFrom(err).Write(w, r)
		return
	}
	writeResult(w, r, res.Success, res.Code, res)
}

func writeResult(w http.ResponseWriter, r *http.Request, ok bool, code derrors.Code, body any) {
	status := http.StatusOK
	if !ok {
		status = StatusFor(code)
	}
	writeJSON(w, r, status, body, nil)
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		unavailable("the job queue").Write(w, r)
		return
	}
	var body generateBody
	if err := decodeJSON(w, r, &body, true); err != nil {
		ErrorFrom(err).Write(w, r)
		return
	}
	if body.Record != nil {
		ErrorResponse(http.StatusUnprocessableEntity, derrors.CodeInvalidInputType,
			"queued jobs use the stored record; save it with POST /config first").Write(w, r)
		return
	}

	job := amqp.NewGenerateJob(s.deps.RecordPath, "", "", body.FileBase)
	if err := s.deps.Jobs.PublishJob(r.Context(), job); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "publish job failed", log.FieldError, err.Error())
		ErrorResponse(http.StatusServiceUnavailable, "QueueUnavailable", "could not queue the job").Write(w, r)
		return
	}
	NewJSONResponse("job queued").Status(http.StatusAccepted).Field("job_id", job.JobID).Write(w, r)
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	if s.deps.Drafter == nil {
		unavailable("the ledger").Write(w, r)
		return
	}
	period, err := parsePeriodParam(r, s.now())
	if err != nil {
		ErrorFrom(err).Write(w, r)
		return
	}
	record, res, err := s.deps.Drafter.Draft(r.Context(), period)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "draft failed", log.FieldPeriod, period.String(), log.FieldError, err.Error())
		ErrorResponse(http.StatusBadGateway, "LedgerUnavailable", err.Error()).Write(w, r)
		return
	}
	NewJSONResponse("record drafted for "+period.String()).
		Field("record", record).
		Field("warnings", emptyIfNil(res.Warnings)).
		Write(w, r)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ledger == nil {
		unavailable("the ledger").Write(w, r)
		return
	}
	period, err := parsePeriodParam(r, s.now())
	if err != nil {
		ErrorFrom(err).Write(w, r)
		return
	}
	ov, err := s.overviews.GetOrLoad(period.String(), func() (core.MonthOverview, error) {
		expenses, err := s.deps.Ledger.ListExpenses(r.Context(), period.Year, int(period.Month))
		if err != nil {
			return core.MonthOverview{}, err
		}
		return core.Summarize(period, expenses), nil
	})
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "ledger overview failed", log.FieldPeriod, period.String(), log.FieldError, err.Error())
		ErrorResponse(http.StatusBadGateway, "LedgerUnavailable", err.Error()).Write(w, r)
		return
	}

	cats := make([]map[string]string, 0, len(ov.ByCategory))
	for _, c := range ov.ByCategory {
		cats = append(cats, map[string]string{"categoria": c.Name, "monto": core.FormatWhole(c.Amount)})
	}
	NewJSONResponse("overview for "+period.String()).
		Field("period", period.String()).
		Field("total", core.FormatWhole(ov.Total)).
		Field("categories", cats).
		Write(w, r)
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	if s.deps.Checker == nil {
		unavailable("the system checker").Write(w, r)
		return
	}
	rep, _ := s.checks.GetOrLoad("system", func() (syscheck.Report, error) {
		return s.deps.Checker.Run(r.Context(), s.deps.CheckPaths, false), nil
	})
	status := http.StatusOK
	msg := "all checks passed"
	if !rep.OK {
		status = http.StatusServiceUnavailable
		msg = "some checks failed"
	}
	resp := NewJSONResponse(msg).Status(status).Field("report", rep)
	if !rep.OK {
		resp.Field("success", false).Field("error_code", "SystemCheckFailed")
	}
	resp.Write(w, r)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
