// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"github.com/maestroio/maestro/common/log"
	"github.com/maestroio/maestro/config"
	"github.com/maestroio/maestro/persistence"
)

type sqlProcessStoreImpl struct {
	db     *sqlx.DB
	logger log.Logger
}

type processRow struct {
	ProcessUuid string    `db:"process_uuid"`
	FlowName    string    `db:"flow_name"`
	StartDate   time.Time `db:"start_date"`
	Body        []byte    `db:"body"`
}

func NewSQLProcessStore(sqlConfig config.SQL, logger log.Logger) (persistence.ProcessStore, error) {
	db, err := NewSQLSession(&sqlConfig)
	if err != nil {
		return nil, err
	}
	return &sqlProcessStoreImpl{
		db:     db,
		logger: logger,
	}, nil
}

// NewSQLProcessStoreWithDB reuses an already opened session
func NewSQLProcessStoreWithDB(db *sqlx.DB, logger log.Logger) persistence.ProcessStore {
	return &sqlProcessStoreImpl{
		db:     db,
		logger: logger,
	}
}

func (s sqlProcessStoreImpl) Close() error {
	return s.db.Close()
}

func (s sqlProcessStoreImpl) Save(ctx context.Context, process *persistence.Process) error {
	body, err := json.Marshal(process)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflow_processes(process_uuid, flow_name, start_date, body)
		 VALUES ($1, $2, $3, $4)`,
		process.ProcessUuid, process.FlowName, process.StartDate, body)
	return err
}

// UpdateProcess replaces the whole stored document. There is no version
// check; last writer wins.
func (s sqlProcessStoreImpl) UpdateProcess(
	ctx context.Context, processUuid string, process *persistence.Process,
) error {
	body, err := json.Marshal(process)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE workflow_processes SET body = $2 WHERE process_uuid = $1`,
		processUuid, body)
	return err
}

func (s sqlProcessStoreImpl) Fetch(ctx context.Context, processUuid string) (*persistence.Process, error) {
	var row processRow
	err := s.db.GetContext(ctx, &row,
		`SELECT process_uuid, flow_name, start_date, body
		 FROM workflow_processes WHERE process_uuid = $1`, processUuid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return decodeProcessRow(row)
}

func (s sqlProcessStoreImpl) GetCompletedProcesses(
	ctx context.Context, query persistence.ProcessQuery,
) ([]*persistence.Process, error) {
	sqlQuery := `SELECT process_uuid, flow_name, start_date, body FROM workflow_processes`
	var conds []string
	var args []interface{}
	addCond := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if query.From != nil {
		addCond(`start_date >= $%d`, *query.From)
	}
	if query.To != nil {
		addCond(`start_date <= $%d`, *query.To)
	}
	if query.ProcessName != "" {
		addCond(`flow_name = $%d`, query.ProcessName)
	}
	if query.ProcessUuid != "" {
		addCond(`process_uuid = $%d`, query.ProcessUuid)
	}
	for i, cond := range conds {
		if i == 0 {
			sqlQuery += " WHERE " + cond
		} else {
			sqlQuery += " AND " + cond
		}
	}
	sqlQuery += " ORDER BY start_date"

	var rows []processRow
	err := s.db.SelectContext(ctx, &rows, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	processes := make([]*persistence.Process, 0, len(rows))
	for _, row := range rows {
		process, err := decodeProcessRow(row)
		if err != nil {
			return nil, err
		}
		processes = append(processes, process)
	}
	return processes, nil
}

func decodeProcessRow(row processRow) (*persistence.Process, error) {
	var process persistence.Process
	if err := json.Unmarshal(row.Body, &process); err != nil {
		return nil, err
	}
	return &process, nil
}
