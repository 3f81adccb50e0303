package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"firewatch/internal/config"
	"firewatch/internal/evaluator"
	"firewatch/internal/history"
	"firewatch/internal/ingest"
	"firewatch/internal/models"
	"firewatch/internal/registry"
	"firewatch/internal/repository"

	"go.uber.org/zap"
)

// AlertArchive reads the persisted alert trail.
type AlertArchive interface {
	ListAlertEvents(ctx context.Context, filters repository.AlertEventFilters) ([]models.Alert, error)
}

// API holds the handlers' dependencies.
type API struct {
	registry   *registry.Registry
	engine     *evaluator.Engine
	history    *history.Store
	pipeline   *ingest.Pipeline
	archive    AlertArchive
	historyCfg config.HistoryConfig
	maxBody    int64
	sessions   func() int
	logger     *zap.Logger
}

// NewAPI wires the handlers. archive and sessions may be nil.
func NewAPI(
	reg *registry.Registry,
	engine *evaluator.Engine,
	hist *history.Store,
	pipeline *ingest.Pipeline,
	archive AlertArchive,
	historyCfg config.HistoryConfig,
	maxBody int64,
	sessions func() int,
	logger *zap.Logger,
) *API {
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &API{
		registry:   reg,
		engine:     engine,
		history:    hist,
		pipeline:   pipeline,
		archive:    archive,
		historyCfg: historyCfg,
		maxBody:    maxBody,
		sessions:   sessions,
		logger:     logger,
	}
}

type healthStatus struct {
	Status     string `json:"status"`
	Sessions   int    `json:"sessions"`
	Tags       int    `json:"tags"`
	OpenAlerts int    `json:"open_alerts"`
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	h := healthStatus{
		Status:     "ok",
		Tags:       len(a.registry.TagIDs()),
		OpenAlerts: len(a.engine.OpenAlerts()),
	}
	if a.sessions != nil {
		h.Sessions = a.sessions()
	}
	writeJSON(w, http.StatusOK, Ok(h))
}

func (a *API) historyLimit(r *http.Request) int {
	limit := parseInt(r.URL.Query().Get("limit"), a.historyCfg.DefaultQueryLimit)
	if limit <= 0 {
		limit = a.historyCfg.DefaultQueryLimit
	}
	if a.historyCfg.MaxQueryLimit > 0 && limit > a.historyCfg.MaxQueryLimit {
		limit = a.historyCfg.MaxQueryLimit
	}
	return limit
}

// History answers the trajectory query. The body is the bare
// {firefighter_id, records} document, not the Result envelope.
func (a *API) History(w http.ResponseWriter, r *http.Request, firefighterID string) {
	writeJSON(w, http.StatusOK, models.HistoryResponse{
		FirefighterID: firefighterID,
		Records:       a.history.Query(firefighterID, a.historyLimit(r)),
	})
}

func (a *API) ExportHistory(w http.ResponseWriter, r *http.Request, firefighterID string) {
	points := a.history.Query(firefighterID, a.historyLimit(r))
	data, err := GenerateHistoryExport(firefighterID, points)
	if err != nil {
		a.logger.Error("Failed to generate history export", zap.String("firefighter_id", firefighterID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="history-%s.xlsx"`, firefighterID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) ListFirefighters(w http.ResponseWriter, r *http.Request) {
	tags := a.registry.Tags()
	out := make([]models.TagState, 0, len(tags))
	out = append(out, tags...)
	writeJSON(w, http.StatusOK, Ok(out))
}

func (a *API) GetFirefighter(w http.ResponseWriter, r *http.Request, firefighterID string) {
	tag, ok := a.registry.Tag(firefighterID)
	if !ok {
		writeJSON(w, http.StatusNotFound, Fail("firefighter not found"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(tag))
}

func (a *API) ListBeacons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(a.registry.Beacons()))
}

func (a *API) GetBuilding(w http.ResponseWriter, r *http.Request) {
	b, ok := a.registry.Building()
	if !ok {
		writeJSON(w, http.StatusNotFound, Fail("no building loaded"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(b))
}

func (a *API) ListAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(a.engine.Alerts(parseBool(r.URL.Query().Get("include_resolved")))))
}

func (a *API) ListArchivedAlerts(w http.ResponseWriter, r *http.Request) {
	if a.archive == nil {
		writeJSON(w, http.StatusServiceUnavailable, Fail("alert archive disabled"))
		return
	}
	q := r.URL.Query()
	alerts, err := a.archive.ListAlertEvents(r.Context(), repository.AlertEventFilters{
		FirefighterID: q.Get("firefighter_id"),
		AlertType:     q.Get("alert_type"),
		Limit:         parseInt(q.Get("limit"), 100),
	})
	if err != nil {
		a.logger.Error("Failed to list archived alerts", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to read alert archive"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(alerts))
}

type acknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
}

func (a *API) AcknowledgeAlert(w http.ResponseWriter, r *http.Request, alertID string) {
	var req acknowledgeRequest
	if err := readBodyJSON(r, a.maxBody, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body: "+err.Error()))
		return
	}
	alert, err := a.pipeline.AcknowledgeAlert(r.Context(), alertID, req.AcknowledgedBy)
	switch {
	case errors.Is(err, evaluator.ErrAlertNotFound):
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
	case err != nil:
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	default:
		writeJSON(w, http.StatusOK, Ok(alert))
	}
}

// IngestResult reports the outcome of one event in a batch.
type IngestResult struct {
	Index    int    `json:"index"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// Ingest accepts one raw event or a JSON array of them. Batch elements are
// applied independently and in order.
func (a *API) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, Fail("body too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, Fail("failed to read body"))
		return
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		if err := a.pipeline.Ingest(r.Context(), trimmed); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusAccepted, Ok(IngestResult{Accepted: true}))
		return
	}

	var batch []json.RawMessage
	if err := json.Unmarshal(trimmed, &batch); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("malformed batch: "+err.Error()))
		return
	}
	results := make([]IngestResult, len(batch))
	accepted := 0
	for i, raw := range batch {
		results[i].Index = i
		if err := a.pipeline.Ingest(r.Context(), raw); err != nil {
			results[i].Error = err.Error()
			continue
		}
		results[i].Accepted = true
		accepted++
	}

	status := http.StatusAccepted
	switch {
	case len(batch) > 0 && accepted == 0:
		status = http.StatusBadRequest
	case accepted < len(batch):
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, batchResult(results, accepted))
}
