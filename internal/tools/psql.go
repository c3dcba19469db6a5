/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/profiles"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

// readOnlyStatementPrefixes are the only statement forms the `query`
// action will run; anything else must go through `exec`, which is
// write-gated.
var readOnlyStatementPrefixes = []string{"select", "with", "explain", "show", "table"}

// PSQLTool runs SQL against a named postgres profile. Connections are
// pooled per profile for the lifetime of the process.
type PSQLTool struct {
	profiles *profiles.Store

	mu    sync.Mutex
	conns map[string]*pgx.Conn
}

// NewPSQLTool constructs the mcp_psql_manager handler.
func NewPSQLTool(store *profiles.Store) *PSQLTool {
	return &PSQLTool{profiles: store, conns: map[string]*pgx.Conn{}}
}

// Handle implements toolexec.Handler.
func (t *PSQLTool) Handle(ctx context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "", "query":
		return t.run(ctx, args, false)
	case "exec":
		return t.run(ctx, args, true)
	case "close":
		profile, err := requireString(args, "profile")
		if err != nil {
			return nil, err
		}
		t.closeConn(profile)
		return map[string]any{"ok": true}, nil
	default:
		return nil, unknownAction("mcp_psql_manager", action)
	}
}

func (t *PSQLTool) run(ctx context.Context, args map[string]any, write bool) (any, error) {
	profileName, err := requireString(args, "profile")
	if err != nil {
		return nil, err
	}
	sql, err := requireString(args, "sql")
	if err != nil {
		return nil, err
	}

	if write {
		if !argBool(args, "apply") {
			return nil, toolerr.New(toolerr.KindDenied, toolerr.CodeApplyRequired, "exec requires apply=true")
		}
	} else if !isReadOnlyStatement(sql) {
		return nil, toolerr.New(toolerr.KindDenied, toolerr.CodeApplyRequired, "statement is not read-only; use the exec action with apply=true")
	}

	conn, err := t.connFor(ctx, profileName)
	if err != nil {
		return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeConnectionFailed, "connect to profile %s: %v", profileName, err)
	}

	params := argSlice(args, "params")

	if write {
		tag, err := conn.Exec(ctx, sql, params...)
		if err != nil {
			return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeQueryFailed, "exec failed: %v", err)
		}
		return map[string]any{"rows_affected": tag.RowsAffected()}, nil
	}

	rows, err := conn.Query(ctx, sql, params...)
	if err != nil {
		return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeQueryFailed, "query failed: %v", err)
	}
	defer rows.Close()

	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeQueryFailed, "collect rows: %v", err)
	}
	return map[string]any{"rows": records, "count": len(records)}, nil
}

func (t *PSQLTool) connFor(ctx context.Context, profileName string) (*pgx.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if conn, ok := t.conns[profileName]; ok {
		return conn, nil
	}

	cred, err := t.profiles.Get(profileName, "postgres")
	if err != nil {
		return nil, err
	}

	dsn := buildPostgresDSN(cred)
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	t.conns[profileName] = conn
	return conn, nil
}

func (t *PSQLTool) closeConn(profileName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conn, ok := t.conns[profileName]; ok {
		conn.Close(context.Background())
		delete(t.conns, profileName)
	}
}

func buildPostgresDSN(cred *profiles.Resolved) string {
	host, _ := cred.Data["host"].(string)
	database, _ := cred.Data["database"].(string)
	user, _ := cred.Data["user"].(string)
	sslmode, _ := cred.Data["sslmode"].(string)
	if sslmode == "" {
		sslmode = "require"
	}
	port := "5432"
	if p, ok := cred.Data["port"]; ok {
		port = fmt.Sprintf("%v", p)
	}
	password := cred.Secrets["password"]
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, database, sslmode)
}

func isReadOnlyStatement(sql string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(sql))
	for _, prefix := range readOnlyStatementPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}
