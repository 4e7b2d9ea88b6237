// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package sql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"github.com/maestroio/maestro/common/log"
	"github.com/maestroio/maestro/config"
	"github.com/maestroio/maestro/persistence"
)

type sqlTemplateStoreImpl struct {
	db     *sqlx.DB
	logger log.Logger
}

type templateRow struct {
	Name string `db:"name"`
	Body []byte `db:"body"`
}

func NewSQLTemplateStore(sqlConfig config.SQL, logger log.Logger) (persistence.TemplateStore, error) {
	db, err := NewSQLSession(&sqlConfig)
	if err != nil {
		return nil, err
	}
	return &sqlTemplateStoreImpl{
		db:     db,
		logger: logger,
	}, nil
}

// NewSQLTemplateStoreWithDB reuses an already opened session
func NewSQLTemplateStoreWithDB(db *sqlx.DB, logger log.Logger) persistence.TemplateStore {
	return &sqlTemplateStoreImpl{
		db:     db,
		logger: logger,
	}
}

func (s sqlTemplateStoreImpl) Close() error {
	return s.db.Close()
}

func (s sqlTemplateStoreImpl) Save(ctx context.Context, template *persistence.Template) error {
	body, err := json.Marshal(template)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflow_templates(name, body) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body`,
		template.Name, body)
	return err
}

func (s sqlTemplateStoreImpl) UpdateTemplate(
	ctx context.Context, name string, template *persistence.Template,
) (bool, error) {
	body, err := json.Marshal(template)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE workflow_templates SET body = $2 WHERE name = $1`,
		name, body)
	if err != nil {
		return false, err
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return updated > 0, nil
}

func (s sqlTemplateStoreImpl) Fetch(ctx context.Context, name string) (*persistence.Template, error) {
	var row templateRow
	err := s.db.GetContext(ctx, &row,
		`SELECT name, body FROM workflow_templates WHERE name = $1`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return decodeTemplateRow(row)
}

func (s sqlTemplateStoreImpl) FetchAll(ctx context.Context) ([]*persistence.Template, error) {
	var rows []templateRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT name, body FROM workflow_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	templates := make([]*persistence.Template, 0, len(rows))
	for _, row := range rows {
		template, err := decodeTemplateRow(row)
		if err != nil {
			return nil, err
		}
		templates = append(templates, template)
	}
	return templates, nil
}

func (s sqlTemplateStoreImpl) RemoveTemplate(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM workflow_templates WHERE name = $1`, name)
	return err
}

func decodeTemplateRow(row templateRow) (*persistence.Template, error) {
	var template persistence.Template
	if err := json.Unmarshal(row.Body, &template); err != nil {
		return nil, err
	}
	return &template, nil
}
