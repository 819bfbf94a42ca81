package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/solatis/priorauth/internal/core/config"
	"github.com/solatis/priorauth/internal/core/db"
	"github.com/solatis/priorauth/internal/index"
	"github.com/solatis/priorauth/internal/mining"
	"github.com/solatis/priorauth/internal/registry"
	"github.com/solatis/priorauth/internal/types"
)

// openDatabase opens the configured database and verifies every embedded
// migration has been applied.
func openDatabase() (*sqlx.DB, *db.Queries, error) {
	if cfg.Registry.DBURL == "" {
		return nil, nil, fmt.Errorf("--db-url or registry.db_url required")
	}
	database, err := db.Open(cfg.Registry.DBURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	statuses, err := db.MigrateStatus(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'priorauth migrate' first", s.ID)
		}
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return database, queries, nil
}

// openRegistry builds the registry service over the configured backend.
// queries is nil for the document backend.
func openRegistry() (reg *registry.Registry, queries *db.Queries, closeFn func(), err error) {
	var store registry.Store
	closeFn = func() {}

	switch cfg.Registry.Backend {
	case config.BackendSQL:
		database, q, err := openDatabase()
		if err != nil {
			return nil, nil, nil, err
		}
		store = registry.NewSQLStore(q)
		queries = q
		closeFn = func() { database.Close() }
	default:
		store = registry.NewDocumentStore(cfg.Registry.Path)
	}

	reg = registry.New(store, registry.WithLogger(logger), registry.WithMetrics(collector))
	return reg, queries, closeFn, nil
}

// newExtractor builds the configured rule extractor.
func newExtractor() (mining.Extractor, error) {
	if cfg.Extraction.Mode != config.ExtractionRemote {
		return mining.HeuristicExtractor{}, nil
	}
	return mining.NewRemoteExtractor(mining.RemoteConfig{
		Endpoint: cfg.Extraction.Endpoint,
		APIKey:   config.ExtractionAPIKey(),
		Timeout:  cfg.Extraction.Timeout,
		Retries:  cfg.Extraction.Retries,
	}, logger)
}

// openIndex connects to Redis and verifies the connection.
func openIndex(ctx context.Context) (*index.RedisIndex, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Index.RedisAddr,
		DB:   cfg.Index.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Index.RedisAddr, err)
	}
	return index.NewRedisIndex(client, cfg.Index.KeyPrefix, logger), func() { client.Close() }, nil
}

// readJSONFile decodes a JSON file, or stdin when path is "-".
func readJSONFile(path string, dest any) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(dest); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func loadPatient(path string) (types.PatientContext, error) {
	var raw map[string]any
	if err := readJSONFile(path, &raw); err != nil {
		return types.PatientContext{}, err
	}
	return types.NormalizePatient(raw), nil
}

func loadRules(path string) ([]types.Rule, error) {
	var rules []types.Rule
	if err := readJSONFile(path, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
