package index

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultKeyPrefix namespaces index keys.
const DefaultKeyPrefix = "priorauth:index:"

// RedisIndex keeps documents in Redis hashes with an inverted term index.
//
// Keys:
//   - {prefix}docs: set of document ids
//   - {prefix}doc:{id}: hash of the document fields
//   - {prefix}term:{term}: set of ids whose document contains term
type RedisIndex struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

var _ Index = (*RedisIndex)(nil)

// NewRedisIndex creates an index on client. An empty prefix uses
// DefaultKeyPrefix.
func NewRedisIndex(client *redis.Client, prefix string, logger *zap.Logger) *RedisIndex {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisIndex{client: client, prefix: prefix, logger: logger}
}

func (x *RedisIndex) docsKey() string         { return x.prefix + "docs" }
func (x *RedisIndex) docKey(id string) string { return x.prefix + "doc:" + id }
func (x *RedisIndex) termKey(t string) string { return x.prefix + "term:" + t }

// Index upserts docs. Terms of a replaced document are unlinked first.
func (x *RedisIndex) Index(ctx context.Context, docs []Document) error {
	for _, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("document without id")
		}

		stale, err := x.staleTerms(ctx, d.ID)
		if err != nil {
			return err
		}

		_, err = x.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, t := range stale {
				pipe.SRem(ctx, x.termKey(t), d.ID)
			}
			pipe.Del(ctx, x.docKey(d.ID))
			pipe.HSet(ctx, x.docKey(d.ID), map[string]interface{}{
				"id":          d.ID,
				"description": d.Description,
				"logic":       d.Logic,
				"rule_type":   d.Type,
				"policy_id":   d.PolicyID,
				"required":    strconv.FormatBool(d.Required),
			})
			pipe.SAdd(ctx, x.docsKey(), d.ID)
			for _, t := range documentTerms(d) {
				pipe.SAdd(ctx, x.termKey(t), d.ID)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to index %s: %w", d.ID, err)
		}
	}

	x.logger.Info("rules indexed", zap.Int("count", len(docs)))
	return nil
}

// staleTerms returns the terms of the currently stored version of id.
func (x *RedisIndex) staleTerms(ctx context.Context, id string) ([]string, error) {
	fields, err := x.client.HGetAll(ctx, x.docKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return documentTerms(docFromHash(fields)), nil
}

// Search ranks documents by the fraction of query terms they contain and
// returns at most k matches, best first. Ties order by id.
func (x *RedisIndex) Search(ctx context.Context, query string, k int) ([]Match, error) {
	queryTerms := terms(query)
	if len(queryTerms) == 0 || k <= 0 {
		return []Match{}, nil
	}

	hits := make(map[string]int)
	for _, t := range queryTerms {
		ids, err := x.client.SMembers(ctx, x.termKey(t)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read term %q: %w", t, err)
		}
		for _, id := range ids {
			hits[id]++
		}
	}

	matches := make([]Match, 0, len(hits))
	for id, n := range hits {
		fields, err := x.client.HGetAll(ctx, x.docKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", id, err)
		}
		if len(fields) == 0 {
			continue
		}
		d := docFromHash(fields)
		matches = append(matches, Match{
			ID:          d.ID,
			Description: d.Description,
			Score:       float64(n) / float64(len(queryTerms)),
			Logic:       d.Logic,
			Type:        d.Type,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Count returns the number of indexed documents.
func (x *RedisIndex) Count(ctx context.Context) (int64, error) {
	return x.client.SCard(ctx, x.docsKey()).Result()
}

// Clear removes every document and term key under the prefix.
func (x *RedisIndex) Clear(ctx context.Context) error {
	var keys []string
	iter := x.client.Scan(ctx, 0, x.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan index keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return x.client.Del(ctx, keys...).Err()
}

func docFromHash(fields map[string]string) Document {
	required, _ := strconv.ParseBool(fields["required"])
	return Document{
		ID:          fields["id"],
		Description: fields["description"],
		Logic:       fields["logic"],
		Type:        fields["rule_type"],
		PolicyID:    fields["policy_id"],
		Required:    required,
	}
}
