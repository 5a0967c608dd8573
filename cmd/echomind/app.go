package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"echomind/internal/completion"
	"echomind/internal/config"
	"echomind/internal/db"
	"echomind/internal/domain"
	"echomind/internal/embedding"
	"echomind/internal/embedding/cache"
	"echomind/internal/embedding/openai"
	"echomind/internal/service"
	"echomind/internal/vectorstore"
	"echomind/internal/vectorstore/memory"
	"echomind/internal/vectorstore/pgvector"
	"echomind/internal/vectorstore/qdrant"
)

// app holds the wired service and everything that has to be closed on exit.
type app struct {
	cfg     *config.AppConfig
	svc     *service.ChatService
	closers []func() error
}

func loadConfig() (*config.AppConfig, error) {
	if configPath == "" {
		cfg, path, err := config.LoadDefault()
		if err == nil {
			log.WithField("path", path).Debug("loaded config")
		}
		return cfg, err
	}
	return config.Load(configPath)
}

func openDatastore(ctx context.Context, cfg *config.AppConfig) (*db.DB, error) {
	dsn := cfg.DatastoreDSN()
	if dsn == "" {
		log.WithField("env", cfg.Datastore.DSNEnv).Warn("datastore is not configured, conversations will not be stored")
		return nil, nil
	}
	d, err := db.New(cfg.Datastore.Driver, dsn)
	if err != nil {
		return nil, err
	}
	// Local SQLite files are created on first use.
	if d.Driver == db.DriverSQLite {
		if err := d.UpdateSchema(ctx); err != nil {
			_ = d.Close()
			return nil, err
		}
	}
	return d, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	d, err := openDatastore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	var repo domain.Repository = db.Disabled{}
	if d != nil {
		repo = db.NewRepository(d)
		a.closers = append(a.closers, d.Close)
	}

	var emb embedding.Embedder = openai.NewClient(openai.Config{
		BaseURL:   cfg.Embedder.BaseURL,
		APIKeyEnv: cfg.Embedder.APIKeyEnv,
		Model:     cfg.Embedder.Model,
		Dimension: cfg.VectorStore.Dimension,
		Timeout:   time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
	})
	if c := cfg.Embedder.Cache; c != nil && c.RedisURL != "" {
		backend, err := cache.NewRedis(c.RedisURL)
		if err != nil {
			log.WithError(err).Warn("invalid redis url, embedding cache disabled")
		} else {
			emb = cache.New(emb, backend, time.Duration(c.TTLSecs)*time.Second)
			a.closers = append(a.closers, backend.Close)
		}
	}

	var st vectorstore.Storage
	switch cfg.VectorStore.Type {
	case "memory":
		st = memory.NewStorage()
	case "pgvector", "":
		if d == nil || d.Driver != db.DriverPostgres {
			log.Warn("pgvector needs a postgres datastore, falling back to the in-memory store")
			st = memory.NewStorage()
			break
		}
		st = pgvector.New(d)
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			return nil, errors.New("qdrant config missing")
		}
		q := qdrant.NewStorage(qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     cfg.VectorStore.Qdrant.APIKey,
			Collection: cfg.VectorStore.Qdrant.Collection,
			Timeout:    time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		})
		if err := q.Init(ctx, cfg.VectorStore.Dimension); err != nil {
			// Queries degrade until the store comes back.
			log.WithError(err).Warn("could not initialize qdrant collection")
		}
		st = q
	default:
		return nil, errors.New("unknown vector store: " + cfg.VectorStore.Type)
	}

	completer := completion.NewClient(completion.Config{
		BaseURL:     cfg.Completion.BaseURL,
		APIKeyEnv:   cfg.Completion.APIKeyEnv,
		Model:       cfg.Completion.Model,
		Temperature: cfg.Completion.Temperature,
		MaxTokens:   cfg.Completion.MaxTokens,
		Timeout:     time.Duration(cfg.Completion.TimeoutSecs) * time.Second,
		MaxRetries:  cfg.Completion.MaxRetries,
	})

	a.svc = service.NewChatService(repo, emb, st, completer, service.Options{
		Threshold:    cfg.VectorStore.Threshold,
		Limit:        cfg.VectorStore.Limit,
		SystemPrompt: cfg.Completion.SystemPrompt,
		Observer: func(conversationID uuid.UUID, from, to service.State) {
			log.WithFields(log.Fields{"conversation": conversationID, "from": from, "to": to}).Trace("state transition")
		},
	})
	if _, inMemory := st.(*memory.Storage); inMemory && d != nil {
		if _, err := a.svc.Reindex(ctx); err != nil {
			// Retrieval only sees this session's messages until the next start.
			log.WithError(err).Warn("could not rebuild the in-memory similarity store")
		}
	}
	log.WithFields(log.Fields{
		"embedder":     emb.Name(),
		"completion":   completer.Model(),
		"vector_store": cfg.VectorStore.Type,
	}).Info("echomind ready")

	a.serveMetrics()
	return a, nil
}

func (a *app) serveMetrics() {
	addr := a.cfg.Metrics.Listen
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.WithField("addr", addr).Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	a.closers = append(a.closers, srv.Close)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.WithError(err).Warn("error during shutdown")
		}
	}
}
