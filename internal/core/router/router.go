// Package router validates density query parameters and maps pipeline
// results onto HTTP responses.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/citygrid/hexdensity/internal/density"
	"github.com/citygrid/hexdensity/internal/hexgrid"
)

type DensityRequest struct {
	Res  int
	Mode density.Mode
}

// Runner is the pipeline surface the handlers need.
type Runner interface {
	Aggregate(ctx context.Context, res int, mode density.Mode) ([]byte, error)
	Plot(ctx context.Context, res int, mode density.Mode) ([]byte, error)
}

// ParseDensityRequest validates user input for /density and /density/map.
// Mode strings pass through; the transform owns mode validation.
func ParseDensityRequest(r *http.Request, defaultRes int) (DensityRequest, error) {
	res := defaultRes
	if raw := strings.TrimSpace(r.URL.Query().Get("res")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return DensityRequest{}, fmt.Errorf("invalid res %q: %w", raw, err)
		}
		res = n
	}
	if err := hexgrid.ValidateRes(res); err != nil {
		return DensityRequest{}, err
	}

	mode := density.ModeAggregate
	if raw := strings.TrimSpace(r.URL.Query().Get("mode")); raw != "" {
		mode = density.Mode(raw)
	}

	return DensityRequest{Res: res, Mode: mode}, nil
}

func HandleDensity(logger *slog.Logger, defaultRes int, p Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := ParseDensityRequest(r, defaultRes)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body, err := p.Aggregate(r.Context(), req.Res, req.Mode)
		if err != nil {
			writeDensityError(w, r, logger, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}

func HandleDensityMap(logger *slog.Logger, defaultRes int, p Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := ParseDensityRequest(r, defaultRes)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body, err := p.Plot(r.Context(), req.Res, req.Mode)
		if err != nil {
			writeDensityError(w, r, logger, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}

func writeDensityError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, density.ErrInvalidMode), errors.Is(err, hexgrid.ErrResolutionOutOfRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, density.ErrExtrapolateUnsupported):
		http.Error(w, err.Error(), http.StatusNotImplemented)
	default:
		logger.Error("density pipeline failed", "path", r.URL.Path, "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
