package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"garage-layout/internal/domain"
	"garage-layout/internal/service"

	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), Fail(err.Error()))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrLimitExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrBadInput),
		errors.Is(err, domain.ErrInvalidOperation),
		errors.Is(err, service.ErrNoWorkbookSource):
		return http.StatusBadRequest
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusInternalServerError
	}
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

// urlInt reads a positive integer path parameter.
func urlInt(r *http.Request, name string) (int, error) {
	v := chi.URLParam(r, name)
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return 0, domain.BadInputf("invalid %s %q", name, v)
	}
	return i, nil
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.BadInputf("invalid JSON body: %v", err)
	}
	return nil
}
