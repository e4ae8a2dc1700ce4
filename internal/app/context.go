// Package app wires the workspace pieces together for the CLI: config
// loading, database bootstrap and engine construction.
package app

import (
	"database/sql"
	"fmt"

	"gigline/internal/classify"
	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/engine"
	"gigline/internal/migrate"
)

// Runtime is an opened workspace: a migrated database and an engine built
// from the workspace config. Close it when done.
type Runtime struct {
	DB     *sql.DB
	Config *config.Config
	Engine *engine.Engine
}

func (rt *Runtime) Close() error {
	return rt.DB.Close()
}

// Open loads the workspace config, opens and migrates the database, and
// builds the engine. A classifier endpoint in the config wires the HTTP
// classifier; without one, submissions fail as unavailable.
func Open(workspace string, memory bool) (*Runtime, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace, Memory: memory})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	e := engine.New(conn, cfg)
	if cfg.Classifier.Endpoint != "" {
		e.Classifier = classify.NewHTTP(cfg.Classifier.Endpoint, cfg.ClassifierTimeout())
	}
	return &Runtime{DB: conn, Config: cfg, Engine: e}, nil
}
