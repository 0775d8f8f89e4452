package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/storefront-api/internal/apperr"
)

const maxBodyBytes = 1 << 20

func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// WriteError maps err onto a status code. Internal causes are logged, not sent.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	WriteJSON(w, logger, status, errorBody{Success: false, Error: apperr.PublicMessage(err)})
}

// Decode reads a JSON body into dst.
func Decode(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Wrap(apperr.KindValidation, err, "invalid request body")
	}
	return nil
}

// PathID parses a positive integer path parameter.
func PathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s %q", name, raw)
	}
	return id, nil
}

// QueryInt64 parses an optional integer query parameter; zero means absent.
func QueryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindValidation, fmt.Errorf("parse %s: %w", name, err), "invalid "+name)
	}
	return v, nil
}
