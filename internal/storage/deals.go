// internal/storage/deals.go

// Package storage holds the PostgreSQL repositories for deals, price
// history, and score records. Queries are built with squirrel; all errors
// surface as persistence errors so callers can apply their degradation
// policy uniformly.
package storage

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	engerrors "github.com/zarzn/dealbot-be-sub000/internal/common/errors"
	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
	"github.com/zarzn/dealbot-be-sub000/internal/models"
)

// ErrDealNotFound reports a lookup for a deal id that does not exist.
var ErrDealNotFound = errors.New("deal not found")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// DealRepository reads deals and writes back their latest score.
type DealRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewDealRepository(db *sql.DB, log logger.Logger) *DealRepository {
	return &DealRepository{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "storage.deals"}),
	}
}

// GetDeal loads a single deal by id.
func (r *DealRepository) GetDeal(ctx context.Context, id string) (models.Deal, error) {
	query, args, err := psql.
		Select("id", "title", "price", "original_price", "currency", "source", "category", "status", "latest_score", "created_at").
		From("deals").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return models.Deal{}, engerrors.NewPersistenceError("get_deal", err)
	}

	var d models.Deal
	var status string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&d.ID, &d.Title, &d.Price, &d.OriginalPrice, &d.Currency,
		&d.Source, &d.Category, &status, &d.LatestScore, &d.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Deal{}, ErrDealNotFound
	}
	if err != nil {
		return models.Deal{}, engerrors.NewPersistenceError("get_deal", err)
	}
	d.Status = models.DealStatus(status)
	return d, nil
}

// UpdateLatestScore writes the deal's normalized score. The stored value
// is clamped to [0,1] regardless of what the caller computed.
func (r *DealRepository) UpdateLatestScore(ctx context.Context, id string, score float64) error {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	query, args, err := psql.
		Update("deals").
		Set("latest_score", score).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return engerrors.NewPersistenceError("update_latest_score", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return engerrors.NewPersistenceError("update_latest_score", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDealNotFound
	}
	return nil
}
