package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/wms/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	txMaxAttempts  = 3
	txRetryBackoff = time.Second
)

// queryer объединяет *sql.DB и *sql.Tx: одни и те же акцессоры работают
// и в autocommit-режиме, и внутри транзакции.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store оборачивает SQL-подключение к PostgreSQL и реализует domain.Store.
type Store struct {
	db     *sql.DB
	logger *log.Entry

	// OnTxRetry вызывается перед каждым повтором транзакции (метрики).
	OnTxRetry func()
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{
		db:     db,
		logger: log.New().WithField("component", "postgres"),
	}, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Акцессоры в autocommit-режиме работают напрямую поверх пула.

func (s *Store) Cells() domain.CellAccessor                 { return cellAccessor{q: s.db} }
func (s *Store) ExtraElements() domain.ExtraElementAccessor { return extraAccessor{q: s.db} }
func (s *Store) Wheelstacks() domain.WheelstackAccessor     { return wheelstackAccessor{q: s.db} }
func (s *Store) Wheels() domain.WheelAccessor               { return wheelAccessor{q: s.db} }
func (s *Store) Storages() domain.StorageAccessor           { return storageAccessor{q: s.db} }
func (s *Store) Batches() domain.BatchAccessor              { return batchAccessor{q: s.db} }
func (s *Store) Orders() domain.OrderAccessor               { return orderAccessor{q: s.db} }
func (s *Store) Snapshots() domain.SnapshotAccessor         { return snapshotAccessor{q: s.db} }

type txAccessors struct {
	tx *sql.Tx
}

func (t txAccessors) Cells() domain.CellAccessor                 { return cellAccessor{q: t.tx} }
func (t txAccessors) ExtraElements() domain.ExtraElementAccessor { return extraAccessor{q: t.tx} }
func (t txAccessors) Wheelstacks() domain.WheelstackAccessor     { return wheelstackAccessor{q: t.tx} }
func (t txAccessors) Wheels() domain.WheelAccessor               { return wheelAccessor{q: t.tx} }
func (t txAccessors) Storages() domain.StorageAccessor           { return storageAccessor{q: t.tx} }
func (t txAccessors) Batches() domain.BatchAccessor              { return batchAccessor{q: t.tx} }
func (t txAccessors) Orders() domain.OrderAccessor               { return orderAccessor{q: t.tx} }
func (t txAccessors) Snapshots() domain.SnapshotAccessor         { return snapshotAccessor{q: t.tx} }

// WithinTx выполняет fn в одной транзакции. Сериализационные сбои и
// deadlock-и (SQLSTATE 40001, 40P01) повторяются с фиксированной паузой;
// после txMaxAttempts неудач возвращается ErrTxRetriesExhausted.
// Любая другая ошибка fn откатывает транзакцию и уходит вызывающему как есть.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		err := s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isTransientTxError(err) {
			return err
		}

		lastErr = err
		s.logger.WithError(err).WithField("attempt", attempt).Warn("transient tx failure")
		if s.OnTxRetry != nil && attempt < txMaxAttempts {
			s.OnTxRetry()
		}
		if attempt < txMaxAttempts {
			select {
			case <-time.After(txRetryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrTxRetriesExhausted, lastErr)
}

func (s *Store) runTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(txAccessors{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// isTransientTxError распознаёт serialization_failure и deadlock_detected.
func isTransientTxError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

var _ domain.Store = (*Store)(nil)
