package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brickfolio/brickfolio/internal/domain"
)

// timeFormat is the timestamp format used on the wire.
const timeFormat = time.RFC3339Nano

// writeJSON marshals v as JSON and writes it with the given status code. If
// marshaling fails it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the domain error taxonomy onto HTTP status codes and
// writes the response. Unknown errors become a generic 500 with the fallback
// message so internals never leak to clients.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, trimmedError(err))
	case errors.Is(err, domain.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, trimmedError(err))
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, "insufficient funds")
	case errors.Is(err, domain.ErrInsufficientInventory):
		writeError(w, http.StatusUnprocessableEntity, "insufficient token inventory")
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, "conflicting concurrent update, retry")
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// trimmedError strips the package prefix chain from a wrapped error, leaving
// the human-readable part for the client.
func trimmedError(err error) string {
	msg := err.Error()
	for _, prefix := range []string{"ledger: ", "postgres: ", "memory: "} {
		msg = strings.ReplaceAll(msg, prefix, "")
	}
	return msg
}

// parseListOpts extracts standard pagination parameters from the query
// string. Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// pathParam extracts a named path parameter via Go 1.22+ routing.
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// actorID identifies the caller on whose behalf a mutation runs. Identity is
// established upstream; this layer only reads the forwarded header.
func actorID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Actor-ID"))
}
