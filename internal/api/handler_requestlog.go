package api

import (
	"net/http"
	"strconv"

	"github.com/streamgate-proxy/streamgate/internal/requestlog"
)

const maxRequestLogLimit = 1000

type requestLogPage struct {
	Items []requestlog.Entry `json:"items"`
	Total int64              `json:"total"`
	Limit int                `json:"limit"`
}

// HandleListRequestLogs handles GET /api/v1/request-logs.
// Query params: limit (default 100, max 1000).
func HandleListRequestLogs(repo *requestlog.Repo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > maxRequestLogLimit {
				WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT",
					"limit: must be in [1,"+strconv.Itoa(maxRequestLogLimit)+"]")
				return
			}
			limit = n
		}

		rows, err := repo.Recent(limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
			return
		}
		total, err := repo.Count()
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
			return
		}
		if rows == nil {
			rows = []requestlog.Entry{}
		}
		WriteJSON(w, http.StatusOK, requestLogPage{
			Items: rows,
			Total: total,
			Limit: limit,
		})
	})
}
