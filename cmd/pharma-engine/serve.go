package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/pharmagician/pharma-engine/internal/engine"
	"github.com/pharmagician/pharma-engine/internal/index"
	"github.com/pharmagician/pharma-engine/pkg/types"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the search HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, _, cleanup, err := buildEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			mux := http.NewServeMux()
			mux.HandleFunc("/health", handleHealth(eng))
			mux.HandleFunc("/search", handleSearch(eng))
			mux.HandleFunc("/suggest", handleSuggest(eng))
			mux.HandleFunc("/rebuild", handleRebuild(eng))
			mux.HandleFunc("/stats", handleStats(eng))
			mux.HandleFunc("/deals", handleDeals(eng))

			corsHandler := cors.New(cors.Options{
				AllowedOrigins:   []string{"*"},
				AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization"},
				AllowCredentials: true,
				MaxAge:           300,
			})

			h2cHandler := h2c.NewHandler(corsHandler.Handler(mux), &http2.Server{})

			logger.Info().Str("addr", cfg.HTTPAddr).Msg("server listening")
			return http.ListenAndServe(cfg.HTTPAddr, h2cHandler)
		},
	}
}

func handleHealth(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := eng.Snapshot()
		body := map[string]any{"status": "ok", "indexReady": snap != nil}
		if snap != nil {
			body["products"] = snap.Len()
			body["fingerprint"] = snap.Fingerprint()
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func handleSearch(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var filter types.Filters
		if v := q.Get("minPrice"); v != "" {
			p, err := strconv.ParseFloat(v, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid minPrice")
				return
			}
			filter.MinPrice = &p
		}
		if v := q.Get("maxPrice"); v != "" {
			p, err := strconv.ParseFloat(v, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid maxPrice")
				return
			}
			filter.MaxPrice = &p
		}
		filter.VendorIDs = q["vendorId"]
		filter.BrandIDs = q["brandId"]

		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		mode := types.SearchMode(q.Get("mode"))
		if mode == "" {
			mode = types.ModeAuto
		}

		start := time.Now()
		page, err := eng.Search(r.Context(), q.Get("q"), filter, limit, offset, mode)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		logger.Debug().Str("query", q.Get("q")).Int("groups", len(page.Groups)).Dur("took", time.Since(start)).Msg("search served")
		writeJSON(w, http.StatusOK, page)
	}
}

func handleSuggest(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		suggestions, err := eng.Suggest(r.Context(), r.URL.Query().Get("q"), limit)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
	}
}

func handleRebuild(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "POST required")
			return
		}
		start := time.Now()
		if err := eng.Rebuild(r.Context()); err != nil {
			writeEngineError(w, err)
			return
		}
		if cfg.SnapshotPath != "" {
			if err := index.SaveSnapshot(cfg.SnapshotPath, eng.Snapshot()); err != nil {
				logger.Warn().Err(err).Msg("snapshot save failed")
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"products": eng.Snapshot().Len(),
			"tookMs":   time.Since(start).Milliseconds(),
		})
	}
}

func handleStats(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := eng.GroupingStats()
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleDeals(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("productId")
		if id == "" {
			writeError(w, http.StatusBadRequest, "productId required")
			return
		}
		group, better, err := eng.BetterDeals(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"group": group, "betterDeals": better})
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrIndexNotReady):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, engine.ErrInvalidFilter), errors.Is(err, engine.ErrInvalidMode):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
