package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/spec-kit/parts-support/internal/domain"
	"github.com/spec-kit/parts-support/internal/events"
	"github.com/spec-kit/parts-support/internal/repository"
	"github.com/spec-kit/parts-support/internal/repository/gormstore"
)

var fixedNow = time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)

func frozenClock() time.Time { return fixedNow }

// testStore opens an in-memory SQLite store with all tables.
func testStore(t *testing.T) *gormstore.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := gormstore.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return gormstore.New(db)
}

func seedUser(t *testing.T, store repository.Store, id string, roles ...domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:           id,
		Name:         id,
		Email:        id + "@parts.test",
		PasswordHash: "x",
		Roles:        domain.NewRoleSet(roles...),
		RoleStatus:   domain.ApprovalNone,
		CreatedAt:    fixedNow,
		UpdatedAt:    fixedNow,
	}
	if err := store.Repositories().Users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return user
}

func actorFor(user *domain.User, acting domain.Role) domain.Actor {
	return domain.NewActor(user, acting)
}

// recordingDispatcher captures published events.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
	inner  events.Dispatcher
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{inner: events.NewInMemoryDispatcher()}
}

func (d *recordingDispatcher) Publish(ctx context.Context, e events.Event) error {
	d.mu.Lock()
	d.events = append(d.events, e)
	d.mu.Unlock()
	return d.inner.Publish(ctx, e)
}

func (d *recordingDispatcher) Subscribe(t events.EventType, h events.EventHandler) {
	d.inner.Subscribe(t, h)
}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, len(d.events))
	for i, e := range d.events {
		out[i] = e.Type
	}
	return out
}

// brokenStore fails every unit of work, standing in for a lost database.
type brokenStore struct {
	repository.Store
	err error
}

func (b brokenStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return b.err
}

func countSystem(replies []domain.Reply) int {
	n := 0
	for _, r := range replies {
		if r.IsSystem {
			n++
		}
	}
	return n
}

// faultyTxStore runs the real transaction but hands fn repositories
// rewritten by wrap, so a write can fail after earlier writes succeeded.
type faultyTxStore struct {
	repository.Store
	wrap func(repository.Repositories) repository.Repositories
}

func (s faultyTxStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return fn(ctx, s.wrap(repos))
	})
}

type failingAdminLogs struct {
	repository.AdminLogRepository
	err error
}

func (f failingAdminLogs) Create(context.Context, *domain.AdminLog) error { return f.err }

type failingReplies struct {
	repository.ReplyRepository
	err error
}

func (f failingReplies) Create(context.Context, *domain.Reply) error { return f.err }
