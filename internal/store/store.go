package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"storebot/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sqlx.DB
}

// Tx is the set of writes that must commit together. It is only valid
// inside the callback passed to WithTx.
type Tx interface {
	// LockProduct reads a product and holds its row lock until the
	// transaction ends. Stock reservations for the product serialize on it.
	LockProduct(ctx context.Context, code string) (*models.Product, error)
	// ReserveStock marks quantity AVAILABLE items of the product SOLD to
	// buyerID, oldest first. It never reserves fewer than quantity.
	ReserveStock(ctx context.Context, code string, quantity int, buyerID string) ([]models.StockItem, error)
	// EnsureUser creates the GrowID with a zero balance if it is missing.
	EnsureUser(ctx context.Context, growID string) error
	// AdjustBalance adds delta to the balance and returns the old and new values.
	AdjustBalance(ctx context.Context, growID string, delta int64) (oldBalance, newBalance int64, err error)
	// SetBalance overwrites the balance and returns the previous value.
	SetBalance(ctx context.Context, growID string, balance int64) (oldBalance int64, err error)
	// RecordTransaction appends a ledger entry and fills its ID and CreatedAt.
	RecordTransaction(ctx context.Context, trx *models.Transaction) error
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStoreFromDB wraps an existing connection pool
func NewStoreFromDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the tables and indexes if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// WithTx runs fn inside a database transaction. The transaction commits
// only if fn returns nil; any error rolls back every write made through tx.
func (s *Store) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	tx *sqlx.Tx
}

func (t *txStore) LockProduct(ctx context.Context, code string) (*models.Product, error) {
	return lockProduct(ctx, t.tx, code)
}

func (t *txStore) ReserveStock(ctx context.Context, code string, quantity int, buyerID string) ([]models.StockItem, error) {
	return reserveStock(ctx, t.tx, code, quantity, buyerID)
}

func (t *txStore) EnsureUser(ctx context.Context, growID string) error {
	return ensureUser(ctx, t.tx, growID)
}

func (t *txStore) AdjustBalance(ctx context.Context, growID string, delta int64) (int64, int64, error) {
	return adjustBalance(ctx, t.tx, growID, delta)
}

func (t *txStore) SetBalance(ctx context.Context, growID string, balance int64) (int64, error) {
	return setBalance(ctx, t.tx, growID, balance)
}

func (t *txStore) RecordTransaction(ctx context.Context, trx *models.Transaction) error {
	return recordTransaction(ctx, t.tx, trx)
}
