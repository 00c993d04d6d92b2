package routes

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"p9e.in/pothole/handlers"
	"p9e.in/pothole/middleware"
	"p9e.in/pothole/models"
)

// Dependencies are the collaborators the router hands requests to.
type Dependencies struct {
	Auth     *middleware.Auth
	Users    *handlers.AuthHandler
	Potholes *handlers.PotholeHandler
	Exports  *handlers.ExportHandler

	// UploadDir is served under UploadPrefix when images are stored locally.
	// Leave it empty for remote storage backends.
	UploadDir    string
	UploadPrefix string
}

// RegisterRoutes sets up all application routes
func RegisterRoutes(d Dependencies) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger)

	// =====================================================
	// Public Routes (no authentication)
	// =====================================================
	r.HandleFunc("/register", d.Users.Register).Methods("POST")
	r.HandleFunc("/login", d.Users.Login).Methods("POST")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")

	if d.UploadDir != "" {
		prefix := strings.TrimSuffix(d.UploadPrefix, "/") + "/"
		r.PathPrefix(prefix).Handler(
			http.StripPrefix(prefix, noDirListing(http.FileServer(http.Dir(d.UploadDir)))),
		)
	}

	// =====================================================
	// Protected API Routes (require JWT authentication)
	// =====================================================
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(d.Auth.JWT)

	api.HandleFunc("/profile", d.Users.Profile).Methods("GET")

	registerPotholeRoutes(api, d)

	return r
}

// noDirListing serves files only; directory paths answer 404.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func registerPotholeRoutes(api *mux.Router, d Dependencies) {
	admin := middleware.RequireRole(models.RoleAdmin)
	p := api.PathPrefix("/potholes").Subrouter()

	// static paths first so they are not captured by /{id}
	p.HandleFunc("/register", d.Potholes.Register).Methods("POST")
	p.HandleFunc("/list", d.Potholes.List).Methods("GET")
	p.HandleFunc("/geojson", d.Exports.GeoJSON).Methods("GET")
	p.Handle("/export.xlsx", admin(http.HandlerFunc(d.Exports.Excel))).Methods("GET")
	p.Handle("/export.csv", admin(http.HandlerFunc(d.Exports.CSV))).Methods("GET")
	p.Handle("/update/{id}", admin(http.HandlerFunc(d.Potholes.UpdateStatus))).Methods("PUT")

	p.HandleFunc("/{id}", d.Potholes.Get).Methods("GET")
	p.Handle("/{id}", admin(http.HandlerFunc(d.Potholes.Delete))).Methods("DELETE")
}
