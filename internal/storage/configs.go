package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/google/uuid"
	"github.com/hyperjump/playground/internal/models"
)

// NewPromptConfig builds a config from a save request with a fresh id and timestamps.
func NewPromptConfig(req *models.PromptConfigSaveRequest) *models.PromptConfig {
	now := time.Now().UTC()
	cfg := &models.PromptConfig{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Description:  req.Description,
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		Parameters:   req.Parameters,
		Tags:         req.Tags,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	normalizeConfig(cfg)
	return cfg
}

// MergePromptConfig applies req onto existing: text fields and tags are
// replaced, parameters are merged with request values winning, created_at is
// kept and updated_at is bumped.
func MergePromptConfig(existing *models.PromptConfig, req *models.PromptConfigSaveRequest) (*models.PromptConfig, error) {
	out := *existing
	out.Name = req.Name
	out.Description = req.Description
	out.Prompt = req.Prompt
	out.SystemPrompt = req.SystemPrompt
	if req.Tags != nil {
		out.Tags = append([]string(nil), req.Tags...)
	}
	params := make(map[string]interface{}, len(existing.Parameters))
	for k, v := range existing.Parameters {
		params[k] = v
	}
	if len(req.Parameters) > 0 {
		if err := mergo.Merge(&params, req.Parameters, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge parameters: %w", err)
		}
	}
	out.Parameters = params
	out.UpdatedAt = time.Now().UTC()
	if !out.UpdatedAt.After(existing.UpdatedAt) {
		out.UpdatedAt = existing.UpdatedAt.Add(time.Microsecond)
	}
	normalizeConfig(&out)
	return &out, nil
}

func normalizeConfig(cfg *models.PromptConfig) {
	if cfg.Parameters == nil {
		cfg.Parameters = map[string]interface{}{}
	}
	if cfg.Tags == nil {
		cfg.Tags = []string{}
	}
}

// SQLiteConfigRepository implements ConfigRepository on the prompt_configs table.
type SQLiteConfigRepository struct {
	db *sql.DB
}

// Save inserts cfg.
func (r *SQLiteConfigRepository) Save(ctx context.Context, cfg *models.PromptConfig) error {
	params, tags, err := marshalConfigJSON(cfg)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO prompt_configs (id, name, description, prompt, system_prompt, parameters, tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID, cfg.Name, cfg.Description, cfg.Prompt, cfg.SystemPrompt, params, tags, cfg.CreatedAt, cfg.UpdatedAt,
	)
	return err
}

// Get returns the config with id.
func (r *SQLiteConfigRepository) Get(ctx context.Context, id string) (*models.PromptConfig, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, prompt, system_prompt, parameters, tags, created_at, updated_at
		 FROM prompt_configs WHERE id = ?`, id)
	cfg, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError("config " + id)
	}
	return cfg, err
}

// List returns all configs, newest first.
func (r *SQLiteConfigRepository) List(ctx context.Context) ([]*models.PromptConfig, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, prompt, system_prompt, parameters, tags, created_at, updated_at
		 FROM prompt_configs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.PromptConfig{}
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// Update overwrites every field but id and created_at.
func (r *SQLiteConfigRepository) Update(ctx context.Context, cfg *models.PromptConfig) error {
	params, tags, err := marshalConfigJSON(cfg)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE prompt_configs SET name = ?, description = ?, prompt = ?, system_prompt = ?,
		 parameters = ?, tags = ?, updated_at = ? WHERE id = ?`,
		cfg.Name, cfg.Description, cfg.Prompt, cfg.SystemPrompt, params, tags, cfg.UpdatedAt, cfg.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError("config " + cfg.ID)
	}
	return nil
}

// Delete removes the config with id.
func (r *SQLiteConfigRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM prompt_configs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError("config " + id)
	}
	return nil
}

// SearchByTag returns configs carrying tag, ignoring case.
func (r *SQLiteConfigRepository) SearchByTag(ctx context.Context, tag string) ([]*models.PromptConfig, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterByTag(all, tag), nil
}

func scanConfig(r rowScanner) (*models.PromptConfig, error) {
	var (
		cfg          models.PromptConfig
		params, tags string
	)
	if err := r.Scan(&cfg.ID, &cfg.Name, &cfg.Description, &cfg.Prompt, &cfg.SystemPrompt,
		&params, &tags, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(params), &cfg.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshal parameters: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &cfg.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	normalizeConfig(&cfg)
	return &cfg, nil
}

func marshalConfigJSON(cfg *models.PromptConfig) (params, tags string, err error) {
	p := cfg.Parameters
	if p == nil {
		p = map[string]interface{}{}
	}
	pb, err := json.Marshal(p)
	if err != nil {
		return "", "", fmt.Errorf("marshal parameters: %w", err)
	}
	tags, err = marshalTags(cfg.Tags)
	return string(pb), tags, err
}

func filterByTag(all []*models.PromptConfig, tag string) []*models.PromptConfig {
	out := []*models.PromptConfig{}
	for _, cfg := range all {
		if cfg.HasTag(tag) {
			out = append(out, cfg)
		}
	}
	return out
}

// MemoryConfigRepository is an in-process ConfigRepository.
type MemoryConfigRepository struct {
	mu      sync.RWMutex
	configs map[string]*models.PromptConfig
}

// NewMemoryConfigRepository returns an empty repository.
func NewMemoryConfigRepository() *MemoryConfigRepository {
	return &MemoryConfigRepository{configs: make(map[string]*models.PromptConfig)}
}

func (r *MemoryConfigRepository) Save(ctx context.Context, cfg *models.PromptConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[cfg.ID]; ok {
		return fmt.Errorf("config %s already exists", cfg.ID)
	}
	c := *cfg
	r.configs[cfg.ID] = &c
	return nil
}

func (r *MemoryConfigRepository) Get(ctx context.Context, id string) (*models.PromptConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[id]
	if !ok {
		return nil, models.NewNotFoundError("config " + id)
	}
	c := *cfg
	return &c, nil
}

func (r *MemoryConfigRepository) List(ctx context.Context) ([]*models.PromptConfig, error) {
	r.mu.RLock()
	out := make([]*models.PromptConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		c := *cfg
		out = append(out, &c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryConfigRepository) Update(ctx context.Context, cfg *models.PromptConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.configs[cfg.ID]
	if !ok {
		return models.NewNotFoundError("config " + cfg.ID)
	}
	c := *cfg
	c.CreatedAt = existing.CreatedAt
	r.configs[cfg.ID] = &c
	return nil
}

func (r *MemoryConfigRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[id]; !ok {
		return models.NewNotFoundError("config " + id)
	}
	delete(r.configs, id)
	return nil
}

func (r *MemoryConfigRepository) SearchByTag(ctx context.Context, tag string) ([]*models.PromptConfig, error) {
	all, _ := r.List(ctx)
	return filterByTag(all, strings.TrimSpace(tag)), nil
}
