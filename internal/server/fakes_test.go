package server

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/jobtrust/internal/db"
	"github.com/jonathan/jobtrust/internal/types"
)

// memStore is an in-memory Store for handler tests.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*db.User
	analyses map[uuid.UUID]*types.Analysis
	pingErr  error
	clock    time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[uuid.UUID]*db.User),
		analyses: make(map[uuid.UUID]*types.Analysis),
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) CreateUser(_ context.Context, name, email, profession string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == db.NormalizeEmail(email) {
			return uuid.Nil, errors.New("duplicate email")
		}
	}
	now := m.tick()
	u := &db.User{ID: uuid.New(), Name: strings.TrimSpace(name), Email: db.NormalizeEmail(email), CreatedAt: now, UpdatedAt: now}
	if p := strings.TrimSpace(profession); p != "" {
		u.Profession = &p
	}
	m.users[u.ID] = u
	return u.ID, nil
}

func (m *memStore) GetUser(_ context.Context, id uuid.UUID) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == db.NormalizeEmail(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	u, err := m.GetUserByEmail(ctx, email)
	return u != nil, err
}

func (m *memStore) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return errors.New("user not found")
	}
	u.PasswordHash, u.PasswordSet = hash, true
	return nil
}

func (m *memStore) UpdateUser(_ context.Context, id uuid.UUID, upd db.UserUpdate) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	if upd.Name != nil {
		u.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Profession != nil {
		u.Profession = nil
		if p := strings.TrimSpace(*upd.Profession); p != "" {
			u.Profession = &p
		}
	}
	u.UpdatedAt = m.tick()
	cp := *u
	return &cp, nil
}

func (m *memStore) CountUsers(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *memStore) deleteUser(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

func (m *memStore) CreateAnalysis(_ context.Context, userID uuid.UUID, payload *types.PostingAnalysis) (*types.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &types.Analysis{ID: uuid.New(), UserID: userID, Label: payload.ConfidenceLabel(), Payload: payload.Clone(), CreatedAt: m.tick()}
	m.analyses[a.ID] = a
	return a, nil
}

func (m *memStore) ListAnalyses(_ context.Context, userID uuid.UUID, limit int) ([]types.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []types.Analysis{}
	for _, a := range m.analyses {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) LatestAnalysis(ctx context.Context, userID uuid.UUID) (*types.Analysis, error) {
	list, _ := m.ListAnalyses(ctx, userID, 1)
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (m *memStore) GetAnalysis(_ context.Context, userID, id uuid.UUID) (*types.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.analyses[id]
	if !ok || a.UserID != userID {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) DeleteAnalysis(_ context.Context, userID, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.analyses[id]
	if !ok || a.UserID != userID {
		return false, nil
	}
	delete(m.analyses, id)
	return true, nil
}

func (m *memStore) ClearAnalyses(_ context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, a := range m.analyses {
		if a.UserID == userID {
			delete(m.analyses, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) AnalysisStats(_ context.Context, userID uuid.UUID) (types.AnalysisStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total, fake, genuine int
	for _, a := range m.analyses {
		if a.UserID != userID {
			continue
		}
		total++
		switch types.NormalizeLabel(a.Label) {
		case "fake":
			fake++
		case "real":
			genuine++
		}
	}
	return types.NewAnalysisStats(total, fake, genuine), nil
}
