package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/edvin/sitepublish/internal/api/request"
	"github.com/edvin/sitepublish/internal/config"
	"github.com/edvin/sitepublish/internal/core"
	"github.com/edvin/sitepublish/internal/db"
)

const createAPIKeyUsage = "usage: core-api create-api-key --name <name> [--scopes deployments:write,domains:*] [--tenants <id>,<id>]"

// parseCreateAPIKey reads the create-api-key flags. Omitted scopes or
// tenants mean full access.
func parseCreateAPIKey(args []string, stderr io.Writer) (request.CreateAPIKey, error) {
	fs := flag.NewFlagSet("create-api-key", flag.ContinueOnError)
	fs.SetOutput(stderr)
	name := fs.String("name", "", "Name for the API key (required)")
	scopes := fs.String("scopes", "", "Comma-separated resource:action scopes (default *:*)")
	tenants := fs.String("tenants", "", "Comma-separated tenant IDs the key may act on (default all)")
	if err := fs.Parse(args); err != nil {
		return request.CreateAPIKey{}, err
	}

	req := request.CreateAPIKey{
		Name:    *name,
		Scopes:  splitList(*scopes),
		Tenants: splitList(*tenants),
	}
	if err := request.Validate(&req); err != nil {
		return request.CreateAPIKey{}, fmt.Errorf("%w\n%s", err, createAPIKeyUsage)
	}
	return req, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		out = append(out, strings.TrimSpace(part))
	}
	return out
}

func createAPIKey(args []string) error {
	req, err := parseCreateAPIKey(args, os.Stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewCorePool(ctx, cfg.CoreDatabaseURL, "sitepublish-cli")
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	key, rawKey, err := core.NewAPIKeyService(pool).Create(ctx, req.Name, req.Scopes, req.Tenants)
	if err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}

	fmt.Printf("API key created successfully.\n\n")
	fmt.Printf("  Name:    %s\n", key.Name)
	fmt.Printf("  ID:      %s\n", key.ID)
	fmt.Printf("  Scopes:  %s\n", strings.Join(key.Scopes, ","))
	fmt.Printf("  Tenants: %s\n", strings.Join(key.Tenants, ","))
	fmt.Printf("  Key:     %s\n\n", rawKey)
	fmt.Printf("Save this key now. It will not be shown again.\n")
	return nil
}
