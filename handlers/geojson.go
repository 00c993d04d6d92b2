package handlers

import (
	"encoding/json"
	"net/http"

	"p9e.in/pothole/middleware"
	"p9e.in/pothole/pkg/errs"
	"p9e.in/pothole/utils"
)

// GeoJSON returns every report matching ?status as a FeatureCollection of
// points, optionally clipped to ?bbox=minLng,minLat,maxLng,maxLat.
func (h *ExportHandler) GeoJSON(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bound, err := utils.ParseBBox(q.Get("bbox"))
	if err != nil {
		respondError(w, r, errs.Validation(err.Error()))
		return
	}

	reports, err := h.query.All(r.Context(), q.Get("status"), middleware.GetActor(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	fc := utils.ReportsToFeatureCollection(reports, bound)
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(fc)
}
