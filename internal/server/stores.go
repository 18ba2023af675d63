package server

import (
	"context"

	"github.com/google/uuid"

	"github.com/jonathan/jobtrust/internal/db"
	"github.com/jonathan/jobtrust/internal/types"
)

// DBClient is the user storage the auth flows need.
type DBClient interface {
	CreateUser(ctx context.Context, name, email, profession string) (uuid.UUID, error)
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	CheckEmailExists(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateUser(ctx context.Context, id uuid.UUID, upd db.UserUpdate) (*db.User, error)
	CountUsers(ctx context.Context) (int, error)
}

// AnalysisStore is the per-user analysis history.
type AnalysisStore interface {
	CreateAnalysis(ctx context.Context, userID uuid.UUID, payload *types.PostingAnalysis) (*types.Analysis, error)
	ListAnalyses(ctx context.Context, userID uuid.UUID, limit int) ([]types.Analysis, error)
	LatestAnalysis(ctx context.Context, userID uuid.UUID) (*types.Analysis, error)
	GetAnalysis(ctx context.Context, userID, id uuid.UUID) (*types.Analysis, error)
	DeleteAnalysis(ctx context.Context, userID, id uuid.UUID) (bool, error)
	ClearAnalyses(ctx context.Context, userID uuid.UUID) (int64, error)
	AnalysisStats(ctx context.Context, userID uuid.UUID) (types.AnalysisStats, error)
}

// Store is everything the server persists. *db.DB implements it.
type Store interface {
	DBClient
	AnalysisStore
	Ping(ctx context.Context) error
}

var _ Store = (*db.DB)(nil)
