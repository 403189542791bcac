package core

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/edvin/sitepublish/internal/model"
	"github.com/edvin/sitepublish/internal/platform"
)

// APIKeyService manages API key operations against the core database.
type APIKeyService struct {
	db DB
}

// NewAPIKeyService creates a new APIKeyService.
func NewAPIKeyService(db DB) *APIKeyService {
	return &APIKeyService{db: db}
}

// HashKey returns the stored form of a raw API key.
func HashKey(rawKey string) string {
	hash := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(hash[:])
}

// Create generates a new API key, stores the hash, and returns the model along
// with the raw key string. The raw key must be shown to the user exactly once.
// Nil scopes or tenants grant full access on that axis.
func (s *APIKeyService) Create(ctx context.Context, name string, scopes, tenants []string) (*model.APIKey, string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return nil, "", fmt.Errorf("generate api key: %w", err)
	}
	rawKey := "sp_" + hex.EncodeToString(rawBytes)

	if scopes == nil {
		scopes = []string{model.ScopeAll}
	}
	if tenants == nil {
		tenants = []string{model.AllTenants}
	}
	key := &model.APIKey{ID: platform.NewID(), Name: name, KeyHash: HashKey(rawKey), Scopes: scopes, Tenants: tenants}

	err := s.db.QueryRow(ctx,
		`INSERT INTO api_keys (id, name, key_hash, scopes, tenants, created_at) VALUES ($1, $2, $3, $4, $5, now())
		 RETURNING created_at`,
		key.ID, key.Name, key.KeyHash, key.Scopes, key.Tenants,
	).Scan(&key.CreatedAt)
	if err != nil {
		return nil, "", mapError("insert api key", err)
	}
	return key, rawKey, nil
}

// Authenticate returns the unrevoked key matching rawKey.
func (s *APIKeyService) Authenticate(ctx context.Context, rawKey string) (*model.APIKey, error) {
	var k model.APIKey
	err := s.db.QueryRow(ctx,
		`SELECT id, name, key_hash, scopes, tenants, created_at, revoked_at FROM api_keys
		 WHERE key_hash = $1 AND revoked_at IS NULL`, HashKey(rawKey),
	).Scan(&k.ID, &k.Name, &k.KeyHash, &k.Scopes, &k.Tenants, &k.CreatedAt, &k.RevokedAt)
	if err != nil {
		return nil, mapError("authenticate api key", err)
	}
	return &k, nil
}

// Revoke soft-deletes an API key by setting revoked_at.
func (s *APIKeyService) Revoke(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE api_keys SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL", id,
	)
	if err != nil {
		return fmt.Errorf("revoke api key %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("revoke api key %s: %w", id, ErrNotFound)
	}
	return nil
}
