package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"p9e.in/pothole/models"
)

// ValidateCoordinate checks a GPS fix against the WGS84 ranges.
func ValidateCoordinate(gps models.GPS) error {
	// Latitude must be between -90 and 90
	if gps.Latitude < -90 || gps.Latitude > 90 {
		return fmt.Errorf("latitude %.6f is out of valid range [-90, 90]", gps.Latitude)
	}

	// Longitude must be between -180 and 180
	if gps.Longitude < -180 || gps.Longitude > 180 {
		return fmt.Errorf("longitude %.6f is out of valid range [-180, 180]", gps.Longitude)
	}

	return nil
}

// ParseBBox parses "minLng,minLat,maxLng,maxLat". An empty string yields nil.
func ParseBBox(raw string) (*orb.Bound, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, errors.New("bbox must be minLng,minLat,maxLng,maxLat")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox value %q is not a number", p)
		}
		v[i] = f
	}
	lo, hi := orb.Point{v[0], v[1]}, orb.Point{v[2], v[3]}
	if lo[0] > hi[0] || lo[1] > hi[1] {
		return nil, errors.New("bbox min corner must not exceed max corner")
	}
	return &orb.Bound{Min: lo, Max: hi}, nil
}

// ReportsToFeatureCollection turns each report into a Point feature. Reports
// outside bound are skipped when bound is non-nil.
func ReportsToFeatureCollection(reports []models.PotholeReport, bound *orb.Bound) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range reports {
		point := orb.Point{r.GPS.Longitude, r.GPS.Latitude}
		if bound != nil && !bound.Contains(point) {
			continue
		}

		feature := geojson.NewFeature(point)
		feature.ID = r.ID.String()
		feature.Properties["status"] = string(r.Status)
		feature.Properties["distance"] = r.Distance
		feature.Properties["vehicleName"] = r.VehicleName
		feature.Properties["vehicleGroundLevel"] = r.VehicleGroundLevel
		feature.Properties["image"] = r.ImageRef
		feature.Properties["createdAt"] = r.CreatedAt
		if r.ReportedBy != nil {
			feature.Properties["reportedBy"] = r.ReportedBy.Name
		}
		fc.Append(feature)
	}
	return fc
}
