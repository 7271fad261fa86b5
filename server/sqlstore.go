package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/kmjones1979/ampersend-sdk/types"
)

// DefaultRequirementsTable is used when NewSQLStore is given no table name.
const DefaultRequirementsTable = "x402_payment_requirements"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLStore keeps requirements in a Postgres table shaped like
//
//	CREATE TABLE x402_payment_requirements (
//	    task_id      TEXT PRIMARY KEY,
//	    requirements JSONB NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//
// so that a paid request can be served by a different replica than the one
// that asked for payment.
type SQLStore struct {
	db *sql.DB

	putQuery    string
	getQuery    string
	deleteQuery string
}

var _ RequirementsStore = (*SQLStore)(nil)

func NewSQLStore(db *sql.DB, table string) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("sql store: db is required")
	}
	if table == "" {
		table = DefaultRequirementsTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("sql store: invalid table name %q", table)
	}
	return &SQLStore{
		db: db,
		putQuery: "INSERT INTO " + table + " (task_id, requirements) VALUES ($1, $2) " +
			"ON CONFLICT (task_id) DO UPDATE SET requirements = EXCLUDED.requirements",
		getQuery:    "SELECT requirements FROM " + table + " WHERE task_id = $1",
		deleteQuery: "DELETE FROM " + table + " WHERE task_id = $1",
	}, nil
}

func (s *SQLStore) Put(ctx context.Context, taskID string, required *types.PaymentRequiredResponse) error {
	data, err := json.Marshal(required)
	if err != nil {
		return fmt.Errorf("encode requirements: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.putQuery, taskID, data); err != nil {
		return fmt.Errorf("store requirements for task %s: %w", taskID, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, taskID string) (*types.PaymentRequiredResponse, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, s.getQuery, taskID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequirementsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load requirements for task %s: %w", taskID, err)
	}
	var out types.PaymentRequiredResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode requirements for task %s: %w", taskID, err)
	}
	return &out, nil
}

func (s *SQLStore) Delete(ctx context.Context, taskID string) error {
	if _, err := s.db.ExecContext(ctx, s.deleteQuery, taskID); err != nil {
		return fmt.Errorf("delete requirements for task %s: %w", taskID, err)
	}
	return nil
}
