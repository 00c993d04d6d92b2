package handlers

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"p9e.in/pothole/middleware"
	"p9e.in/pothole/pkg/errs"
	"p9e.in/pothole/services"
)

const (
	defaultPageSize = 10
	// multipartOverhead is the headroom above the image limit left for the
	// other form fields and part headers.
	multipartOverhead = 1 << 20
	multipartMemory   = 8 << 20
)

type PotholeHandler struct {
	lifecycle     *services.LifecycleService
	query         *services.QueryService
	maxImageBytes int64
}

func NewPotholeHandler(lifecycle *services.LifecycleService, query *services.QueryService, maxImageBytes int64) *PotholeHandler {
	return &PotholeHandler{lifecycle: lifecycle, query: query, maxImageBytes: maxImageBytes}
}

// Register accepts a multipart form with an "image" file and the measurement fields.
func (h *PotholeHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			respondError(w, r, errs.PayloadTooLarge("request body too large"))
			return
		}
		respondError(w, r, errs.Validation("bad multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	sub := services.Submission{
		Distance:           formValue(r, "distance"),
		Longitude:          formValue(r, "longitude"),
		Latitude:           formValue(r, "latitude"),
		VehicleName:        formValue(r, "vehicle_name", "vehicleName"),
		VehicleGroundLevel: formValue(r, "vehicle_ground_level", "vehicleGroundLevel"),
	}

	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		sub.Image = imageUpload(file, header)
	case errors.Is(err, http.ErrMissingFile):
		// Register answers "image required"
	default:
		respondError(w, r, errs.Validation("bad image part"))
		return
	}

	report, err := h.lifecycle.Register(r.Context(), sub, middleware.GetActor(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "pothole registered", report)
}

// List returns one page of reports. Query params: status, page, limit.
func (h *PotholeHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := atoiDefault(q.Get("page"), 1)
	limit := atoiDefault(q.Get("limit"), defaultPageSize)

	result, err := h.query.List(r.Context(), q.Get("status"), page, limit, middleware.GetActor(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", result)
}

func (h *PotholeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	report, err := h.query.Get(r.Context(), id, middleware.GetActor(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", report)
}

type updateStatusReq struct {
	PotholeStatus string `json:"pothole_status"`
}

func (h *PotholeHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, errs.Validation("invalid JSON"))
		return
	}

	report, err := h.lifecycle.UpdateStatus(r.Context(), id, req.PotholeStatus, middleware.GetActor(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "status updated", report)
}

func (h *PotholeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.lifecycle.Remove(r.Context(), id, middleware.GetActor(r)); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "pothole deleted", nil)
}

// reportID parses the {id} route variable. A malformed id cannot name a
// stored report, so it is reported as not found.
func reportID(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errs.NotFound("pothole report not found")
	}
	return id, nil
}

func isBodyTooLarge(err error) bool {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return true
	}
	// older multipart readers drop the wrapped error
	return strings.Contains(err.Error(), "request body too large")
}

func imageUpload(file multipart.File, header *multipart.FileHeader) *services.ImageUpload {
	return &services.ImageUpload{
		Content:     file,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}
}

// formValue returns the first non-empty value among keys.
func formValue(r *http.Request, keys ...string) string {
	for _, k := range keys {
		if v := r.FormValue(k); v != "" {
			return v
		}
	}
	return ""
}

func atoiDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
