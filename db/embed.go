// Package db embeds the PostgreSQL schema.
package db

import _ "embed"

// Schema holds idempotent DDL for products, orders and settings.
//
//go:embed migrations/001_schema.sql
var Schema string
