// Package store keeps the locally persisted state: saved plans, source
// locators and the last good catalogue.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"nutriplan/internal/catalogue"
	"nutriplan/internal/config"
	"nutriplan/internal/plan"
)

const (
	keySavedPlans  = "saved_plans"
	keyConfig      = "config"
	keyCachedMeals = "cached_meals"
)

// Store is a JSON-valued key-value store over the kv table.
type Store struct {
	db *sql.DB
}

// New creates a Store over an open, migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// SavePlans persists the local-origin subset of plans.
func (s *Store) SavePlans(ctx context.Context, plans []plan.Plan) error {
	local := plan.LocalOnly(plans)
	if local == nil {
		local = []plan.Plan{}
	}
	return s.put(ctx, keySavedPlans, local)
}

// LoadPlans returns the persisted local plans, or none.
func (s *Store) LoadPlans(ctx context.Context) ([]plan.Plan, error) {
	var plans []plan.Plan
	if _, err := s.get(ctx, keySavedPlans, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// SaveSources persists the source locators.
func (s *Store) SaveSources(ctx context.Context, src config.Sources) error {
	return s.put(ctx, keyConfig, src)
}

// LoadSources returns the persisted locators. ok is false when none were saved.
func (s *Store) LoadSources(ctx context.Context) (src config.Sources, ok bool, err error) {
	ok, err = s.get(ctx, keyConfig, &src)
	return src, ok, err
}

// SaveCatalogue caches the last good catalogue.
func (s *Store) SaveCatalogue(ctx context.Context, dishes []catalogue.Dish) error {
	if dishes == nil {
		dishes = []catalogue.Dish{}
	}
	return s.put(ctx, keyCachedMeals, dishes)
}

// LoadCatalogue returns the cached catalogue, or none.
func (s *Store) LoadCatalogue(ctx context.Context) ([]catalogue.Dish, error) {
	var dishes []catalogue.Dish
	if _, err := s.get(ctx, keyCachedMeals, &dishes); err != nil {
		return nil, err
	}
	return dishes, nil
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data))
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string, v any) (bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(data), v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}
