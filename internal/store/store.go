// Package store owns the single relational-file state database (spec.md
// §6.6): portfolio positions and the persisted identity-resolution cache.
// It is accessed only from the event loop thread or the blocking worker
// pool behind it — there is no independent connection pool to coordinate.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Store wraps the sqlite-backed database handle.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the sqlite file at path, applies every
// pending migration, and returns a ready Store.
func Open(path string) (*Store, error) {
	rawDB, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single sqlite file writer: one connection avoids SQLITE_BUSY under
	// this engine's single-event-loop-plus-bounded-worker-pool concurrency.
	rawDB.SetMaxOpenConns(1)

	if err := Migrate(rawDB); err != nil {
		rawDB.Close()
		return nil, err
	}

	return &Store{db: sqlx.NewDb(rawDB, "sqlite3")}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Position is one persisted holding (spec.md §6.3 "Position").
type Position struct {
	ID           int64           `db:"id"`
	PortfolioID  int64           `db:"portfolio_id"`
	ISIN         string          `db:"isin"`
	Name         string          `db:"name"`
	Quantity     decimal.Decimal `db:"quantity"`
	AverageCost  decimal.Decimal `db:"avg_cost"`
	CurrentPrice decimal.Decimal `db:"current_price"`
	IsETF        bool            `db:"is_etf"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// NetValue is quantity × current price — consumers must never report raw
// price as position value (spec.md §6.3 invariant).
func (p Position) NetValue() decimal.Decimal {
	return p.Quantity.Mul(p.CurrentPrice)
}

// ReplacePortfolio atomically replaces every position under portfolioID with
// positions, in a single transaction (sync_portfolio's write path).
func (s *Store) ReplacePortfolio(ctx context.Context, portfolioID int64, positions []Position) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE portfolio_id = ?`, portfolioID); err != nil {
		return fmt.Errorf("store: clear positions: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO positions (portfolio_id, isin, name, quantity, avg_cost, current_price, is_etf)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range positions {
		if _, err := stmt.ExecContext(ctx, portfolioID, p.ISIN, p.Name,
			p.Quantity.String(), p.AverageCost.String(), p.CurrentPrice.String(), p.IsETF); err != nil {
			return fmt.Errorf("store: insert position %s: %w", p.ISIN, err)
		}
	}

	return tx.Commit()
}

// ListPositions returns every position under portfolioID.
func (s *Store) ListPositions(ctx context.Context, portfolioID int64) ([]Position, error) {
	var rows []struct {
		ID           int64     `db:"id"`
		PortfolioID  int64     `db:"portfolio_id"`
		ISIN         string    `db:"isin"`
		Name         string    `db:"name"`
		Quantity     string    `db:"quantity"`
		AverageCost  string    `db:"avg_cost"`
		CurrentPrice string    `db:"current_price"`
		IsETF        bool      `db:"is_etf"`
		UpdatedAt    time.Time `db:"updated_at"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, portfolio_id, isin, name, quantity, avg_cost, current_price, is_etf, updated_at
		 FROM positions WHERE portfolio_id = ? ORDER BY isin`, portfolioID); err != nil {
		return nil, fmt.Errorf("store: list positions: %w", err)
	}

	positions := make([]Position, 0, len(rows))
	for _, r := range rows {
		qty, err := decimal.NewFromString(r.Quantity)
		if err != nil {
			return nil, fmt.Errorf("store: decode quantity for %s: %w", r.ISIN, err)
		}
		cost, err := decimal.NewFromString(r.AverageCost)
		if err != nil {
			return nil, fmt.Errorf("store: decode avg_cost for %s: %w", r.ISIN, err)
		}
		price, err := decimal.NewFromString(r.CurrentPrice)
		if err != nil {
			return nil, fmt.Errorf("store: decode current_price for %s: %w", r.ISIN, err)
		}
		positions = append(positions, Position{
			ID: r.ID, PortfolioID: r.PortfolioID, ISIN: r.ISIN, Name: r.Name,
			Quantity: qty, AverageCost: cost, CurrentPrice: price, IsETF: r.IsETF, UpdatedAt: r.UpdatedAt,
		})
	}
	return positions, nil
}

// EnsurePortfolio returns the id of the named portfolio, creating it if
// absent. This engine manages a single default portfolio per data directory.
func (s *Store) EnsurePortfolio(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, `SELECT id FROM portfolios WHERE name = ?`, name)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("store: lookup portfolio %s: %w", name, err)
	}

	result, err := s.db.ExecContext(ctx, `INSERT INTO portfolios (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("store: create portfolio %s: %w", name, err)
	}
	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: read new portfolio id: %w", err)
	}
	return id, nil
}
