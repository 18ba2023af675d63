package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/jobtrust/internal/types"
)

const analysisColumns = `id, user_id, label, payload, created_at`

func scanAnalysis(row rowScanner) (*types.Analysis, error) {
	var (
		a   types.Analysis
		raw []byte
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Label, &raw, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Payload = types.NewPostingAnalysis()
	if err := json.Unmarshal(raw, a.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode analysis %s payload: %w", a.ID, err)
	}
	return &a, nil
}

// CreateAnalysis saves a posting analysis to the user's history.
func (db *DB) CreateAnalysis(ctx context.Context, userID uuid.UUID, payload *types.PostingAnalysis) (*types.Analysis, error) {
	raw, err := payload.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis payload: %w", err)
	}
	a, err := scanAnalysis(db.pool.QueryRow(ctx,
		`INSERT INTO analyses (user_id, label, payload) VALUES ($1, $2, $3) RETURNING `+analysisColumns,
		userID, payload.ConfidenceLabel(), raw,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis: %w", err)
	}
	return a, nil
}

// ListAnalyses returns the user's analyses, newest first. limit <= 0 means all.
func (db *DB) ListAnalyses(ctx context.Context, userID uuid.UUID, limit int) ([]types.Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE user_id = $1 ORDER BY created_at DESC, id`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	analyses := []types.Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		analyses = append(analyses, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return analyses, nil
}

// LatestAnalysis returns the user's newest analysis, or nil, nil when there is none.
func (db *DB) LatestAnalysis(ctx context.Context, userID uuid.UUID) (*types.Analysis, error) {
	list, err := db.ListAnalyses(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

// GetAnalysis returns one of the user's analyses, or nil, nil when absent or owned by someone else.
func (db *DB) GetAnalysis(ctx context.Context, userID, id uuid.UUID) (*types.Analysis, error) {
	a, err := scanAnalysis(db.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE id = $1 AND user_id = $2`, id, userID,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// DeleteAnalysis removes one analysis. It reports whether a row was deleted.
func (db *DB) DeleteAnalysis(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM analyses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete analysis: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ClearAnalyses removes the user's whole history and returns how many rows went.
func (db *DB) ClearAnalyses(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM analyses WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear analyses: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AnalysisStats counts the user's analyses by classifier label.
func (db *DB) AnalysisStats(ctx context.Context, userID uuid.UUID) (types.AnalysisStats, error) {
	var total, fake, genuine int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE LOWER(TRIM(label)) = 'fake'),
			COUNT(*) FILTER (WHERE LOWER(TRIM(label)) = 'real')
		 FROM analyses WHERE user_id = $1`, userID,
	).Scan(&total, &fake, &genuine)
	if err != nil {
		return types.AnalysisStats{}, fmt.Errorf("failed to compute analysis stats: %w", err)
	}
	return types.NewAnalysisStats(total, fake, genuine), nil
}
