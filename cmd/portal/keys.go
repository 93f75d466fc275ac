package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/security/apikey"
	"github.com/Adithya-Monish-Kumar-K/department-portal/migrations"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/postgres"
)

// manageKeys handles -gen-api-key and -revoke-api-key. With Postgres
// enabled keys live in the api_keys table; otherwise a new key is printed
// with the hash to add to admin.apiKeyHashes.
func manageKeys(ctx context.Context, cfg *config.Config, name, revoke string, out io.Writer) error {
	if !cfg.Postgres.Enabled {
		if revoke != "" {
			return errors.New("revoking needs postgres; remove the hash from admin.apiKeyHashes instead")
		}
		raw, err := apikey.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "api key:  %s\nsha-256:  %s\n", raw, apikey.HashKey(raw))
		return nil
	}

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(migrations.FS, "."); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	store := apikey.NewStore(db)

	if revoke != "" {
		if err := store.RevokeKey(ctx, revoke); err != nil {
			return err
		}
		fmt.Fprintln(out, "api key revoked")
		return nil
	}
	raw, err := store.CreateKey(ctx, name, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "api key %q: %s\n", name, raw)
	return nil
}
