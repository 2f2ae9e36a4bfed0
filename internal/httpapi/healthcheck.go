package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"ghcnd-server/internal/modules/stations/repository"
	"ghcnd-server/internal/utils"
)

// CatalogStatus reports the last station index load.
type CatalogStatus interface {
	Status(ctx context.Context) (*repository.LoadInfo, error)
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	db      *sql.DB
	catalog CatalogStatus
}

type healthResponse struct {
	Status  string               `json:"status"`
	Catalog *repository.LoadInfo `json:"catalog"`
}

func NewHealthchecker(db *sql.DB, catalog CatalogStatus) healthchecker {
	return &healthcheckerImpl{db: db, catalog: catalog}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	var ok int
	if err := h.db.QueryRowContext(r.Context(), `SELECT 1`).Scan(&ok); err != nil {
		slog.Error("failed to check database connectivity", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to check database connectivity")
		return
	}

	resp := healthResponse{Status: "ok"}
	if h.catalog != nil {
		info, err := h.catalog.Status(r.Context())
		if err != nil {
			slog.Error("failed to read catalog status", "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to read catalog status")
			return
		}
		resp.Catalog = info
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func registerHealthcheck(mux *http.ServeMux, db *sql.DB, catalog CatalogStatus) {
	healthchecker := NewHealthchecker(db, catalog)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
