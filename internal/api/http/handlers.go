package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/partwise/partwise/internal/archive"
	"github.com/partwise/partwise/internal/catalog"
	"github.com/partwise/partwise/internal/descriptor"
	"github.com/partwise/partwise/internal/engine"
	"github.com/partwise/partwise/internal/typesys"
	"github.com/partwise/partwise/pkg/types"
)

// Handler serves the partwise routing API.
type Handler struct {
	engine   *engine.Engine
	catalog  catalog.Catalog
	archiver *archive.Archiver
}

// NewHandler creates the API handler. archiver may be nil, in which case
// the archive endpoints return 404.
func NewHandler(eng *engine.Engine, cat catalog.Catalog, archiver *archive.Archiver) *Handler {
	return &Handler{engine: eng, catalog: cat, archiver: archiver}
}

// Mux builds the route table with the default middleware applied.
func (h *Handler) Mux() http.Handler {
	middleware := DefaultMiddleware()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/relations", h.createRelation)
	mux.HandleFunc("GET /v1/relations", h.listRelations)
	mux.HandleFunc("GET /v1/relations/{rel}", h.describeRelation)
	mux.HandleFunc("POST /v1/relations/{rel}/route", h.routeValue)
	mux.HandleFunc("POST /v1/relations/{rel}/route-or-create", h.findOrCreate)
	mux.HandleFunc("POST /v1/relations/{rel}/route-hash", h.routeHash)
	mux.HandleFunc("POST /v1/relations/{rel}/partitions", h.registerRange)
	mux.HandleFunc("DELETE /v1/relations/{rel}/partitions/{child}", h.detachRange)
	mux.HandleFunc("GET /v1/relations/{rel}/partitions/{child}/bounds", h.boundsOf)
	mux.HandleFunc("GET /v1/relations/{rel}/bounds", h.boundsAt)
	mux.HandleFunc("GET /v1/relations/{rel}/span", h.span)
	mux.HandleFunc("POST /v1/relations/{rel}/overlaps", h.overlaps)
	mux.HandleFunc("GET /v1/partitions/{child}/parent", h.parentOf)
	mux.HandleFunc("GET /v1/stats", h.stats)
	mux.HandleFunc("POST /v1/stats/reset", h.resetStats)
	mux.HandleFunc("POST /v1/archive/export", h.archiveExport)
	mux.HandleFunc("POST /v1/archive/restore/{rel}", h.archiveRestore)
	mux.HandleFunc("GET /health", h.health)

	return middleware(mux)
}

// CreateRelationRequest registers a new partitioned relation.
type CreateRelationRequest struct {
	Relation       string `json:"relation"`
	Strategy       string `json:"strategy"`
	AttrType       string `json:"attr_type"`
	HashPartitions uint32 `json:"hash_partitions,omitempty"`
}

func (h *Handler) createRelation(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	var req CreateRelationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}
	if req.Relation == "" {
		writeErrorMessage(w, http.StatusBadRequest, "relation is required", requestID)
		return
	}

	err := h.catalog.CreateRelation(r.Context(), types.RelationID(req.Relation),
		types.Strategy(req.Strategy), types.TypeID(req.AttrType), req.HashPartitions)
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"relation": req.Relation})
}

func (h *Handler) listRelations(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	rels, err := h.catalog.Relations(r.Context())
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	if rels == nil {
		rels = []types.RelationID{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"relations": rels})
}

// RangeView is the display form of one range entry.
type RangeView struct {
	ChildID string `json:"child_id"`
	Min     string `json:"min"`
	Max     string `json:"max"`
	Span    string `json:"span"`
}

// DescriptorView is the display form of a relation descriptor.
type DescriptorView struct {
	Relation       string      `json:"relation"`
	Strategy       string      `json:"strategy"`
	AttrType       string      `json:"attr_type"`
	HashPartitions uint32      `json:"hash_partitions,omitempty"`
	Version        uint64      `json:"version"`
	Ranges         []RangeView `json:"ranges"`
}

func viewOf(d *descriptor.Descriptor) DescriptorView {
	v := DescriptorView{
		Relation:       string(d.Relation),
		Strategy:       string(d.Strategy),
		AttrType:       string(d.AttrType),
		HashPartitions: d.HashPartitions,
		Version:        d.Version,
		Ranges:         []RangeView{},
	}
	for _, r := range d.Ranges {
		min := typesys.FormatValue(r.Min, d.AttrType)
		max := typesys.FormatValue(r.Max, d.AttrType)
		v.Ranges = append(v.Ranges, RangeView{
			ChildID: string(r.ChildID),
			Min:     min,
			Max:     max,
			Span:    fmt.Sprintf("[%s: %s)", min, max),
		})
	}
	return v
}

func (h *Handler) describeRelation(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	d, err := h.engine.Describe(r.Context(), types.RelationID(r.PathValue("rel")))
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(d))
}

// RouteResponse is the result of routing one value. Lower and Upper are
// only meaningful when the outcome is "gap".
type RouteResponse struct {
	Outcome   string `json:"outcome"`
	Child     string `json:"child,omitempty"`
	Lower     int    `json:"lower"`
	Upper     int    `json:"upper"`
	RequestID string `json:"request_id"`
}

func (h *Handler) routeValue(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	var tv TypedValue
	if err := json.NewDecoder(r.Body).Decode(&tv); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}
	value, valueType, err := tv.decode()
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	res, err := h.engine.RouteValue(r.Context(), types.RelationID(r.PathValue("rel")), value, valueType)
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, RouteResponse{
		Outcome:   res.Outcome.String(),
		Child:     string(res.Child),
		Lower:     res.Lower,
		Upper:     res.Upper,
		RequestID: requestID,
	})
}

func (h *Handler) findOrCreate(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	var tv TypedValue
	if err := json.NewDecoder(r.Body).Decode(&tv); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}
	value, valueType, err := tv.decode()
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	child, err := h.engine.FindOrCreate(r.Context(), types.RelationID(r.PathValue("rel")), value, valueType)
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"child":      string(child),
		"request_id": requestID,
	})
}

func (h *Handler) routeHash(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	var tv TypedValue
	if err := json.NewDecoder(r.Body).Decode(&tv); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}
	value, valueType, err := tv.decode()
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	idx, err := h.engine.RouteHash(r.Context(), types.RelationID(r.PathValue("rel")), value, valueType)
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"partition":  idx,
		"request_id": requestID,
	})
}

// RegisterRangeRequest attaches an existing child as a range partition.
type RegisterRangeRequest struct {
	ChildID string     `json:"child_id"`
	Min     TypedValue `json:"min"`
	Max     TypedValue `json:"max"`
}

func (h *Handler) registerRange(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	var req RegisterRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}
	if req.ChildID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "child_id is required", requestID)
		return
	}
	min, _, err := req.Min.decode()
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("min: %v", err), requestID)
		return
	}
	max, _, err := req.Max.decode()
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("max: %v", err), requestID)
		return
	}

	entry := descriptor.RangeEntry{
		ChildID: types.ChildID(req.ChildID),
		Min:     min,
		Max:     max,
	}
	if err := h.catalog.RegisterRange(r.Context(), types.RelationID(r.PathValue("rel")), entry); err != nil {
		writeError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"child": req.ChildID})
}

func (h *Handler) detachRange(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	err := h.catalog.DetachRange(r.Context(),
		types.RelationID(r.PathValue("rel")), types.ChildID(r.PathValue("child")))
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detached": r.PathValue("child")})
}

// BoundsResponse renders one partition's bounds.
type BoundsResponse struct {
	Child string `json:"child,omitempty"`
	Min   string `json:"min"`
	Max   string `json:"max"`
	Span  string `json:"span"`
}

func (h *Handler) boundsResponse(rel types.RelationID, r *http.Request, min, max types.Value, child string) (BoundsResponse, error) {
	d, err := h.engine.Describe(r.Context(), rel)
	if err != nil {
		return BoundsResponse{}, err
	}
	minStr := typesys.FormatValue(min, d.AttrType)
	maxStr := typesys.FormatValue(max, d.AttrType)
	return BoundsResponse{
		Child: child,
		Min:   minStr,
		Max:   maxStr,
		Span:  fmt.Sprintf("[%s: %s)", minStr, maxStr),
	}, nil
}

func (h *Handler) boundsOf(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	rel := types.RelationID(r.PathValue("rel"))
	child := r.PathValue("child")

	b, err := h.engine.BoundsOf(r.Context(), rel, types.ChildID(child))
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	resp, err := h.boundsResponse(rel, r, b.Min, b.Max, child)
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) boundsAt(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	rel := types.RelationID(r.PathValue("rel"))

	idx, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "index query parameter is required", requestID)
		return
	}

	b, err := h.engine.BoundsAt(r.Context(), rel, idx)
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	resp, err := h.boundsResponse(rel, r, b.Min, b.Max, "")
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) span(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	rel := types.RelationID(r.PathValue("rel"))

	min, err := h.engine.GlobalMin(r.Context(), rel)
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	max, err := h.engine.GlobalMax(r.Context(), rel)
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	resp, err := h.boundsResponse(rel, r, min, max, "")
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// OverlapsRequest probes a candidate interval against registered ranges.
type OverlapsRequest struct {
	Min TypedValue `json:"min"`
	Max TypedValue `json:"max"`
}

func (h *Handler) overlaps(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	var req OverlapsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}
	min, minType, err := req.Min.decode()
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("min: %v", err), requestID)
		return
	}
	max, maxType, err := req.Max.decode()
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("max: %v", err), requestID)
		return
	}

	overlaps, err := h.engine.Overlaps(r.Context(),
		types.RelationID(r.PathValue("rel")), min, minType, max, maxType)
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"overlaps": overlaps})
}

func (h *Handler) parentOf(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	rel, err := h.catalog.ParentOf(r.Context(), types.ChildID(r.PathValue("child")))
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"relation": string(rel)})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Stats().Snapshot())
}

func (h *Handler) resetStats(w http.ResponseWriter, r *http.Request) {
	h.engine.Stats().Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) archiveExport(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	if h.archiver == nil {
		writeErrorMessage(w, http.StatusNotFound, "archive is not configured", requestID)
		return
	}
	if err := h.archiver.ExportAll(r.Context()); err != nil {
		writeError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "exported"})
}

func (h *Handler) archiveRestore(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	if h.archiver == nil {
		writeErrorMessage(w, http.StatusNotFound, "archive is not configured", requestID)
		return
	}
	rel := types.RelationID(r.PathValue("rel"))
	if err := h.archiver.Restore(r.Context(), rel); err != nil {
		writeError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"restored": string(rel)})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "partwise",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
