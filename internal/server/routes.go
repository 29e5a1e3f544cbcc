package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/queryfed/queryfed/internal/analyzer"
	"github.com/queryfed/queryfed/internal/classifier"
	"github.com/queryfed/queryfed/internal/config"
	"github.com/queryfed/queryfed/internal/connector"
	"github.com/queryfed/queryfed/internal/docsearch"
	"github.com/queryfed/queryfed/internal/executor"
	"github.com/queryfed/queryfed/internal/handler"
	"github.com/queryfed/queryfed/internal/llm"
	"github.com/queryfed/queryfed/internal/merger"
	"github.com/queryfed/queryfed/internal/middleware"
	"github.com/queryfed/queryfed/internal/pipeline"
	"github.com/queryfed/queryfed/internal/schema"
	"github.com/queryfed/queryfed/internal/security"
	"github.com/queryfed/queryfed/internal/synthesizer"
)

// System is the assembled pipeline plus the resources that need explicit
// closing. Shared between the HTTP server and the one-shot CLI path.
type System struct {
	Pipeline *pipeline.Pipeline
	Registry *connector.Registry
	Catalog  schema.Catalog
	Searcher *docsearch.ElasticSearcher
}

func (sys *System) Close() error {
	return sys.Registry.Close()
}

// Assemble builds every pipeline stage from config.
func Assemble(ctx context.Context, cfg *config.Config) (*System, error) {
	registry, err := buildRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var searcher *docsearch.ElasticSearcher
	if cfg.ElasticsearchEnabled {
		var esErr error
		searcher, esErr = docsearch.NewElasticSearcher(docsearch.Options{
			Addresses:   cfg.ElasticsearchAddresses,
			Username:    cfg.ElasticsearchUser,
			Password:    cfg.ElasticsearchPassword,
			VerifyCerts: cfg.ElasticsearchVerifyCerts,
			MaxRetries:  cfg.ElasticsearchMaxRetries,
			Index:       cfg.ElasticsearchIndex,
		})
		if esErr != nil {
			log.Warn().Err(esErr).Msg("document search unavailable")
			searcher = nil
		}
	}

	log.Info().
		Int("databases", len(registry.All())).
		Bool("document_search", searcher != nil).
		Bool("auth_enabled", cfg.EnableAuth && len(cfg.APIKeys) > 0).
		Bool("data_masking", cfg.EnableDataMasking).
		Bool("audit_logging", cfg.EnableAuditLogging).
		Bool("pii_detection", cfg.EnablePIIDetection).
		Msg("service configuration")

	if len(registry.All()) == 0 && searcher == nil {
		log.Warn().Msg("WARNING: no data sources configured - /api/v1/ask will answer from nothing")
	}
	if cfg.EnableAuth && len(cfg.APIKeys) == 0 {
		log.Warn().Msg("WARNING: auth enabled but no API keys configured - all API requests will be rejected")
	}

	gen := llm.New(llm.Options{
		APIKey:     cfg.AnthropicAPIKey,
		BaseURL:    cfg.AnthropicBaseURL,
		Models:     cfg.ModelFallbacks,
		MaxRetries: cfg.LLMMaxRetries,
		Timeout:    time.Duration(cfg.LLMTimeoutSec) * time.Second,
	})

	snapshotters := make([]schema.Snapshotter, 0, len(registry.All()))
	for _, conn := range registry.All() {
		snapshotters = append(snapshotters, conn)
	}
	catalog := schema.NewCachedCatalog(
		schema.NewConnectorCatalog(snapshotters...),
		time.Duration(cfg.SchemaCacheTTLSec)*time.Second,
	)

	var masker *security.DataMasker
	if cfg.EnableDataMasking {
		masker = security.NewDataMasker(cfg.SensitiveColumns)
	}
	var pii *security.PIIDetector
	if cfg.EnablePIIDetection {
		pii = security.NewPIIDetector(cfg.PIIKeywords)
	} else {
		pii = security.NewPIIDetector(nil)
	}
	audit := security.NewAuditLogger(cfg.EnableAuditLogging)

	var docSearcher docsearch.Searcher
	if searcher != nil {
		docSearcher = searcher
	}

	pipe := pipeline.New(pipeline.Deps{
		Classifier:  classifier.New(gen, cfg.Routing),
		Analyzer:    analyzer.New(gen),
		Synthesizer: synthesizer.New(gen, catalog, security.NewSQLGuard()),
		Executor:    executor.New(registry, masker, audit),
		Merger:      merger.New(gen),
		Catalog:     catalog,
		Searcher:    docSearcher,
		Guard:       security.NewQueryGuard(),
		PII:         pii,
		Audit:       audit,
		Routing:     cfg.Routing,
		Generator:   gen,
	})

	return &System{
		Pipeline: pipe,
		Registry: registry,
		Catalog:  catalog,
		Searcher: searcher,
	}, nil
}

// setupRoutes assembles the system and mounts the HTTP surface on top.
func (s *Server) setupRoutes() (http.Handler, *connector.Registry, error) {
	cfg := s.cfg

	sys, err := Assemble(context.Background(), cfg)
	if err != nil {
		return nil, nil, err
	}

	var docPinger handler.Pinger
	if sys.Searcher != nil {
		docPinger = sys.Searcher
	}

	askH := handler.NewAskHandler(sys.Pipeline)
	schemasH := handler.NewSchemasHandler(sys.Catalog)
	healthH := handler.NewHealthHandler(sys.Registry, docPinger)

	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(chiMiddleware.RealIP)

	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)

	apiMiddleware := []func(http.Handler) http.Handler{
		middleware.RateLimit(cfg.RateLimitPerMinute),
	}
	if cfg.EnableAuth && len(cfg.APIKeys) > 0 {
		apiMiddleware = append(apiMiddleware, middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
	}

	r.Group(func(r chi.Router) {
		for _, m := range apiMiddleware {
			r.Use(m)
		}

		r.Route(cfg.APIPrefix, func(r chi.Router) {
			r.Post("/ask", askH.Ask)
			r.Get("/schemas", schemasH.List)
			r.Get("/schemas/{database_id}", schemasH.Get)
		})
	})

	return r, sys.Registry, nil
}

// buildRegistry opens a connector per configured connection. A connection
// that fails to open is skipped with a warning so one bad DSN does not keep
// the whole service down.
func buildRegistry(ctx context.Context, cfg *config.Config) (*connector.Registry, error) {
	var conns []connector.Connector
	budget := security.NewByteBudget(cfg.MaxQueryBytesBilled)

	for _, cc := range cfg.Connections {
		if cc.Disabled {
			continue
		}
		var conn connector.Connector
		var err error
		if cc.Dialect == "bigquery" {
			conn, err = connector.NewBigQueryConnector(ctx, cc.ID, cc.ProjectID, cc.DatasetID,
				cc.CredentialsFile, cc.Location, budget, cfg.SchemaSampleRows, cfg.SchemaSampleTables)
		} else {
			conn, err = connector.NewSQLConnector(cc.ID, cc.Dialect, cc.DSN,
				cfg.SchemaSampleRows, cfg.SchemaSampleTables)
		}
		if err != nil {
			log.Warn().Err(err).Str("database", cc.ID).Str("dialect", cc.Dialect).
				Msg("database connection unavailable, skipping")
			continue
		}
		conns = append(conns, conn)
	}

	registry := connector.NewRegistry(conns...)
	for _, cc := range cfg.Connections {
		if _, err := registry.Get(cc.ID); err == nil {
			registry.SetLimits(cc.ID, connector.Limits{
				MaxRows: cc.MaxRows,
				Timeout: time.Duration(cc.TimeoutSec) * time.Second,
			})
		}
	}
	return registry, nil
}
