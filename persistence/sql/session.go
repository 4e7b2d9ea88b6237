// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package sql

import (
	"fmt"
	"net"
	"net/url"

	"github.com/iancoleman/strcase"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // load the SQL driver for postgres

	"github.com/maestroio/maestro/config"
)

const (
	driverName = "postgres"
	dsnFmt     = "postgres://%s@%s:%s/%s"
)

// NewSQLSession creates a logical connection to the underlying Postgres
// database. The returned object is shared by the template and process stores.
func NewSQLSession(cfg *config.SQL) (*sqlx.DB, error) {
	host, port, err := net.SplitHostPort(cfg.ConnectAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid connect address, it must be in host:port format, %v, err: %v", cfg.ConnectAddr, err)
	}

	sslParams := url.Values{}
	sslParams.Set("sslmode", "disable")
	db, err := sqlx.Connect(driverName, buildDSN(cfg, host, port, sslParams))
	if err != nil {
		return nil, err
	}

	// Maps struct names in CamelCase to snake without need for db struct tags.
	db.MapperFunc(strcase.ToSnake)
	return db, nil
}

func buildDSN(cfg *config.SQL, host string, port string, params url.Values) string {
	credentialString := generateCredentialString(cfg)
	dsn := fmt.Sprintf(dsnFmt, credentialString, host, port, cfg.DatabaseName)
	if attrs := params.Encode(); attrs != "" {
		dsn += "?" + attrs
	}
	return dsn
}

func generateCredentialString(cfg *config.SQL) string {
	password := ""
	if cfg.Password != "" {
		password = ":" + url.QueryEscape(cfg.Password)
	}
	return fmt.Sprintf("%s%s", url.QueryEscape(cfg.User), password)
}
