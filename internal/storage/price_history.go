// internal/storage/price_history.go
package storage

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	engerrors "github.com/zarzn/dealbot-be-sub000/internal/common/errors"
	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
	"github.com/zarzn/dealbot-be-sub000/internal/models"
)

// PriceHistoryRepository reads the append-only price observations. The
// engine never writes here; ingestion owns that table.
type PriceHistoryRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPriceHistoryRepository(db *sql.DB, log logger.Logger) *PriceHistoryRepository {
	return &PriceHistoryRepository{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "storage.price_history"}),
	}
}

// GetPriceHistory returns the deal's price points from the last `days`
// days in chronological order. days <= 0 means the full history.
func (r *PriceHistoryRepository) GetPriceHistory(ctx context.Context, dealID string, days int) ([]models.PriceHistoryPoint, error) {
	builder := psql.
		Select("deal_id", "price", "source", "recorded_at").
		From("price_history").
		Where(sq.Eq{"deal_id": dealID}).
		OrderBy("recorded_at ASC")
	if days > 0 {
		builder = builder.Where(sq.GtOrEq{"recorded_at": time.Now().AddDate(0, 0, -days)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, engerrors.NewPersistenceError("get_price_history", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, engerrors.NewPersistenceError("get_price_history", err)
	}
	defer rows.Close()

	var points []models.PriceHistoryPoint
	for rows.Next() {
		var p models.PriceHistoryPoint
		if err := rows.Scan(&p.DealID, &p.Price, &p.Source, &p.Timestamp); err != nil {
			return nil, engerrors.NewPersistenceError("get_price_history", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, engerrors.NewPersistenceError("get_price_history", err)
	}
	return points, nil
}
