package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"perfreview/internal/domain/auth"
	"perfreview/internal/platform/config"
)

func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensurePermissions(ctx, pool); err != nil {
		return err
	}

	if err := ensureRolePermissions(ctx, pool); err != nil {
		return err
	}

	if err := ensureAdminUser(ctx, pool, auth.RoleHRLead, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		return err
	}

	if cfg.SeedSystemAdminEmail != "" {
		_ = ensureAdminUser(ctx, pool, auth.RoleSystemAdmin, cfg.SeedSystemAdminEmail, cfg.SeedSystemAdminPassword)
	}

	return nil
}

func ensurePermissions(ctx context.Context, pool *pgxpool.Pool) error {
	for _, perm := range auth.DefaultPermissions {
		_, err := pool.Exec(ctx, "INSERT INTO permissions (key) VALUES ($1) ON CONFLICT (key) DO NOTHING", perm)
		if err != nil {
			return err
		}
	}
	return nil
}

func ensureRolePermissions(ctx context.Context, pool *pgxpool.Pool) error {
	for roleName, perms := range auth.RolePermissions {
		for _, permKey := range perms {
			_, err := pool.Exec(ctx, "INSERT INTO role_permissions (role_name, permission_key) VALUES ($1, $2) ON CONFLICT DO NOTHING", roleName, permKey)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, role, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return nil
	}

	normalized := strings.ToLower(strings.TrimSpace(email))

	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", normalized).Scan(&id)
	if err == nil {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	err = pool.QueryRow(ctx, `
    INSERT INTO users (email, name, role, password_hash)
    VALUES ($1, $2, $3, $4)
    RETURNING id
  `, normalized, "Administrator", role, hash).Scan(&id)
	if err != nil {
		return err
	}
	return nil
}
