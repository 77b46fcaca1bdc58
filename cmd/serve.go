package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/document"
	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/pipeline"
	"github.com/sells-group/docextract/internal/resilience"
	"github.com/sells-group/docextract/internal/telemetry"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP extraction API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		env, err := initExtractor(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		s := &server{
			classes:      env.Classes,
			defaultClass: cfg.Extraction.DefaultClass,
			extract:      env.Extractor.Extract,
			stats:        env.Stats,
			breakers:     env.Invoker.Breakers(),
			maxUpload:    int64(cfg.Server.MaxUploadMB) << 20,
			origins:      cfg.Server.AllowedOrigins,
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           s.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// extractor is the pipeline entry point used by the HTTP handlers.
type extractor func(ctx context.Context, doc model.Document, class docclass.Config, opts pipeline.Options) (*model.ExtractionResult, error)

// server holds the HTTP handlers' dependencies.
type server struct {
	classes      *docclass.Registry
	defaultClass string
	extract      extractor
	stats        *telemetry.Stats
	breakers     *resilience.TierBreakers
	maxUpload    int64
	origins      []string
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{"X-Extraction-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/classes", s.handleClasses)
		r.Post("/extract", s.handleExtract)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.stats != nil {
		resp["stats"] = s.stats.Snapshot()
	}
	if s.breakers != nil {
		circuits := make(map[string]string)
		for name, st := range s.breakers.States() {
			circuits[name] = st.String()
		}
		resp["circuits"] = circuits
	}
	writeJSON(w, http.StatusOK, resp)
}

type classSummary struct {
	Name             string                `json:"name"`
	Fields           []model.Field         `json:"fields"`
	Critical         []model.Field         `json:"critical"`
	Tiers            []docclass.TierConfig `json:"tiers"`
	QualityThreshold int                   `json:"quality_threshold"`
}

func (s *server) handleClasses(w http.ResponseWriter, _ *http.Request) {
	var out []classSummary
	s.classes.Each(func(c docclass.Config) {
		out = append(out, classSummary{
			Name:             c.Name,
			Fields:           c.Fields,
			Critical:         c.CriticalFields(),
			Tiers:            c.Tiers,
			QualityThreshold: c.QualityThreshold,
		})
	})
	writeJSON(w, http.StatusOK, map[string]any{"default": s.defaultClass, "classes": out})
}

// handleExtract accepts a multipart upload in the "file" field and runs the
// extraction synchronously.
func (s *server) handleExtract(w http.ResponseWriter, r *http.Request) {
	log := zap.L().With(zap.String("request_id", middleware.GetReqID(r.Context())))

	name := r.URL.Query().Get("class")
	if name == "" {
		name = s.defaultClass
	}
	class, err := s.classes.Get(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "document exceeds upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload")
		return
	}
	doc, err := document.FromBytes(hdr.Filename, data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.extract(r.Context(), doc, class, pipeline.Options{CompanyName: r.URL.Query().Get("company")})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case pipeline.IsAllTiersExhausted(err):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, pipeline.ErrNoDocument):
			status = http.StatusBadRequest
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			status = http.StatusServiceUnavailable
		}
		log.Warn("extraction request failed",
			zap.String("document", doc.Name),
			zap.Int("status", status),
			zap.Error(err),
		)
		writeError(w, status, err.Error())
		return
	}

	w.Header().Set("X-Extraction-Id", result.ID)
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
