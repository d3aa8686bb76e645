// internal/storage/storage_test.go
package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "github.com/zarzn/dealbot-be-sub000/internal/common/errors"
	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
	"github.com/zarzn/dealbot-be-sub000/internal/models"
)

func newMock(t *testing.T) (*DealRepository, *PriceHistoryRepository, *ScoreRecordRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewNop()
	return NewDealRepository(db, log), NewPriceHistoryRepository(db, log), NewScoreRecordRepository(db, log), mock
}

func TestGetDeal_Found(t *testing.T) {
	deals, _, _, mock := newMock(t)

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	orig := 100.0
	score := 0.8
	mock.ExpectQuery("SELECT .+ FROM deals WHERE id = \\$1").
		WithArgs("deal-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "price", "original_price", "currency", "source", "category", "status", "latest_score", "created_at",
		}).AddRow("deal-1", "Wireless Headphones", 80.0, orig, "USD", "amazon", "electronics", "active", score, created))

	d, err := deals.GetDeal(context.Background(), "deal-1")

	require.NoError(t, err)
	assert.Equal(t, "deal-1", d.ID)
	assert.Equal(t, models.DealStatusActive, d.Status)
	require.NotNil(t, d.OriginalPrice)
	assert.InDelta(t, 100.0, *d.OriginalPrice, 0.001)
	require.NotNil(t, d.LatestScore)
	assert.InDelta(t, 0.8, *d.LatestScore, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDeal_NotFound(t *testing.T) {
	deals, _, _, mock := newMock(t)

	mock.ExpectQuery("SELECT .+ FROM deals").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := deals.GetDeal(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrDealNotFound)
}

func TestGetDeal_QueryErrorMapsToPersistence(t *testing.T) {
	deals, _, _, mock := newMock(t)

	mock.ExpectQuery("SELECT .+ FROM deals").
		WillReturnError(errors.New("connection reset"))

	_, err := deals.GetDeal(context.Background(), "deal-1")

	assert.Equal(t, engerrors.ErrCodePersistenceError, engerrors.CodeOf(err))
}

func TestUpdateLatestScore_ClampsToUnitRange(t *testing.T) {
	deals, _, _, mock := newMock(t)

	mock.ExpectExec("UPDATE deals SET latest_score = \\$1 WHERE id = \\$2").
		WithArgs(1.0, "deal-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE deals SET latest_score = \\$1 WHERE id = \\$2").
		WithArgs(0.0, "deal-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, deals.UpdateLatestScore(context.Background(), "deal-1", 1.4))
	require.NoError(t, deals.UpdateLatestScore(context.Background(), "deal-1", -0.2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLatestScore_UnknownDeal(t *testing.T) {
	deals, _, _, mock := newMock(t)

	mock.ExpectExec("UPDATE deals").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := deals.UpdateLatestScore(context.Background(), "missing", 0.5)

	assert.ErrorIs(t, err, ErrDealNotFound)
}

func TestGetPriceHistory_WindowedChronological(t *testing.T) {
	_, history, _, mock := newMock(t)

	now := time.Now()
	mock.ExpectQuery("SELECT .+ FROM price_history WHERE deal_id = \\$1 AND recorded_at >= \\$2 ORDER BY recorded_at ASC").
		WithArgs("deal-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"deal_id", "price", "source", "recorded_at"}).
			AddRow("deal-1", 100.0, "amazon", now.AddDate(0, 0, -10)).
			AddRow("deal-1", 91.0, "amazon", now.AddDate(0, 0, -1)))

	points, err := history.GetPriceHistory(context.Background(), "deal-1", 30)

	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.InDelta(t, 100.0, points[0].Price, 0.001)
	assert.True(t, points[0].Timestamp.Before(points[1].Timestamp))
}

func TestGetPriceHistory_EmptyIsNotAnError(t *testing.T) {
	_, history, _, mock := newMock(t)

	mock.ExpectQuery("SELECT .+ FROM price_history").
		WillReturnRows(sqlmock.NewRows([]string{"deal_id", "price", "source", "recorded_at"}))

	points, err := history.GetPriceHistory(context.Background(), "deal-1", 0)

	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestAppendScoreRecord(t *testing.T) {
	_, _, scores, mock := newMock(t)

	mock.ExpectExec("INSERT INTO deal_scores").
		WithArgs("rec-1", "deal-1", 0.8, 0.9, "ai", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := scores.Append(context.Background(), models.DealScoreRecord{
		ID:         "rec-1",
		DealID:     "deal-1",
		Score:      0.8,
		Confidence: 0.9,
		ScoreType:  "ai",
		Metadata:   map[string]interface{}{"base": 75.0},
		CreatedAt:  time.Now().UTC(),
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetScoreHistory_ReversedToChronological(t *testing.T) {
	_, _, scores, mock := newMock(t)

	// Query returns newest first.
	mock.ExpectQuery("SELECT score FROM deal_scores WHERE deal_id = \\$1 ORDER BY created_at DESC LIMIT 5").
		WithArgs("deal-1").
		WillReturnRows(sqlmock.NewRows([]string{"score"}).
			AddRow(0.9).AddRow(0.8).AddRow(0.7))

	got, err := scores.GetScoreHistory(context.Background(), "deal-1", 5)

	require.NoError(t, err)
	assert.Equal(t, []float64{0.7, 0.8, 0.9}, got)
}

func TestScoreWriter_DelegatesBothWrites(t *testing.T) {
	deals, _, scores, mock := newMock(t)
	writer := &ScoreWriter{Records: scores, Deals: deals}

	mock.ExpectExec("INSERT INTO deal_scores").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE deals").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, writer.Append(context.Background(), models.DealScoreRecord{ID: "rec-1", DealID: "deal-1"}))
	require.NoError(t, writer.UpdateLatestScore(context.Background(), "deal-1", 0.5))
	assert.NoError(t, mock.ExpectationsWereMet())
}
