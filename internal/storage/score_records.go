// internal/storage/score_records.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"

	engerrors "github.com/zarzn/dealbot-be-sub000/internal/common/errors"
	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
	"github.com/zarzn/dealbot-be-sub000/internal/models"
)

// ScoreRecordRepository owns the append-only deal_scores audit table.
type ScoreRecordRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewScoreRecordRepository(db *sql.DB, log logger.Logger) *ScoreRecordRepository {
	return &ScoreRecordRepository{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "storage.score_records"}),
	}
}

// Append inserts one score record. Records are never updated or deleted.
func (r *ScoreRecordRepository) Append(ctx context.Context, rec models.DealScoreRecord) error {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return engerrors.NewPersistenceError("append_score", err)
	}

	query, args, err := psql.
		Insert("deal_scores").
		Columns("id", "deal_id", "score", "confidence", "score_type", "metadata", "created_at").
		Values(rec.ID, rec.DealID, rec.Score, rec.Confidence, rec.ScoreType, meta, rec.CreatedAt).
		ToSql()
	if err != nil {
		return engerrors.NewPersistenceError("append_score", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return engerrors.NewPersistenceError("append_score", err)
	}
	return nil
}

// GetScoreHistory returns the deal's most recent normalized scores in
// chronological order, at most limit entries.
func (r *ScoreRecordRepository) GetScoreHistory(ctx context.Context, dealID string, limit int) ([]float64, error) {
	builder := psql.
		Select("score").
		From("deal_scores").
		Where(sq.Eq{"deal_id": dealID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, engerrors.NewPersistenceError("get_score_history", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, engerrors.NewPersistenceError("get_score_history", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var s float64
		if err := rows.Scan(&s); err != nil {
			return nil, engerrors.NewPersistenceError("get_score_history", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, engerrors.NewPersistenceError("get_score_history", err)
	}

	// Newest-first from the query; flip to chronological for consumers.
	for i, j := 0, len(scores)-1; i < j; i, j = i+1, j-1 {
		scores[i], scores[j] = scores[j], scores[i]
	}
	return scores, nil
}

// ScoreWriter bundles the two best-effort writes a score computation
// performs, satisfying the calculator's Recorder dependency with one value.
type ScoreWriter struct {
	Records *ScoreRecordRepository
	Deals   *DealRepository
}

func (w *ScoreWriter) Append(ctx context.Context, rec models.DealScoreRecord) error {
	return w.Records.Append(ctx, rec)
}

func (w *ScoreWriter) UpdateLatestScore(ctx context.Context, dealID string, score float64) error {
	return w.Deals.UpdateLatestScore(ctx, dealID, score)
}
