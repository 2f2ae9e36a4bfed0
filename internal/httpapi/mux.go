package httpapi

import (
	"database/sql"
	"net/http"
)

func NewMux(db *sql.DB, catalog CatalogStatus) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, catalog)
	return mux
}
