package taskqueue

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ddrc/internal/platform/database"
	"ddrc/pkg/platform/sentinel"
	txcontext "ddrc/pkg/platform/tx"
)

type TaskStoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) (Store, *database.DB)
	store    Store
	db       *database.DB
	ctx      context.Context
	now      time.Time
}

func TestInMemoryTaskStoreSuite(t *testing.T) {
	suite.Run(t, &TaskStoreSuite{newStore: func(*testing.T) (Store, *database.DB) { return NewInMemory(), nil }})
}

func TestSQLiteTaskStoreSuite(t *testing.T) {
	suite.Run(t, &TaskStoreSuite{newStore: func(t *testing.T) (Store, *database.DB) {
		db, err := database.Open(context.Background(), "sqlite", "file:"+filepath.Join(t.TempDir(), "tasks.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		return NewSQL(db), db
	}})
}

func (s *TaskStoreSuite) SetupTest() {
	s.store, s.db = s.newStore(s.T())
	s.ctx = context.Background()
	s.now = time.Date(2025, 1, 20, 8, 30, 0, 0, time.UTC)
}

func (s *TaskStoreSuite) enqueue(name string, at time.Time) *Task {
	t, err := NewTask("vital-records", name, map[string]string{"request_id": "abc"}, at)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Enqueue(s.ctx, t))
	s.Require().NotZero(t.ID)
	return t
}

func (s *TaskStoreSuite) TestClaim() {
	s.Run("empty queue", func() {
		_, err := s.store.Claim(s.ctx, s.now)
		s.Require().ErrorIs(err, sentinel.ErrEmpty)
	})

	s.Run("oldest available first", func() {
		first := s.enqueue("package", s.now)
		s.enqueue("email", s.now)
		s.enqueue("cleanup", s.now.Add(time.Hour))

		got, err := s.store.Claim(s.ctx, s.now)
		s.Require().NoError(err)
		s.Equal(first.ID, got.ID)
		s.Equal(StatusRunning, got.Status)
		s.Equal(1, got.Attempts)
		s.JSONEq(`{"request_id":"abc"}`, string(got.Payload))

		got, err = s.store.Claim(s.ctx, s.now)
		s.Require().NoError(err)
		s.Equal("email", got.Name)

		_, err = s.store.Claim(s.ctx, s.now)
		s.Require().ErrorIs(err, sentinel.ErrEmpty, "future task is not available yet")

		got, err = s.store.Claim(s.ctx, s.now.Add(time.Hour))
		s.Require().NoError(err)
		s.Equal("cleanup", got.Name)
	})
}

func (s *TaskStoreSuite) TestClaimIsExclusive() {
	for range 5 {
		s.enqueue("package", s.now)
	}

	var (
		mu      sync.Mutex
		claimed = map[int64]int{}
		wg      sync.WaitGroup
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t, err := s.store.Claim(s.ctx, s.now)
			if err != nil {
				return
			}
			mu.Lock()
			claimed[t.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Len(claimed, 5)
	for id, n := range claimed {
		s.Equal(1, n, "task %d claimed more than once", id)
	}
}

func (s *TaskStoreSuite) TestCompleteAndFail() {
	s.Run("complete stores result", func() {
		t := s.enqueue("package", s.now)
		_, err := s.store.Claim(s.ctx, s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.store.Complete(s.ctx, t.ID, json.RawMessage(`"vital-records.pdf"`), s.now))

		got, err := s.store.Get(s.ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(StatusSucceeded, got.Status)
		s.JSONEq(`"vital-records.pdf"`, string(got.Result))
	})

	s.Run("fail with retry requeues", func() {
		t := s.enqueue("email", s.now)
		_, err := s.store.Claim(s.ctx, s.now)
		s.Require().NoError(err)
		retry := s.now.Add(time.Minute)
		s.Require().NoError(s.store.Fail(s.ctx, t.ID, "smtp down", &retry, s.now))

		got, err := s.store.Get(s.ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(StatusQueued, got.Status)
		s.Equal("smtp down", got.LastError)
		s.True(got.AvailableAt.Equal(retry))
	})

	s.Run("final failure", func() {
		t := s.enqueue("cleanup", s.now)
		s.Require().NoError(s.store.Fail(s.ctx, t.ID, "boom", nil, s.now))
		got, err := s.store.Get(s.ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(StatusFailed, got.Status)
	})

	s.Run("unknown task", func() {
		s.Require().ErrorIs(s.store.Complete(s.ctx, 9999, nil, s.now), sentinel.ErrNotFound)
		_, err := s.store.Get(s.ctx, 9999)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *TaskStoreSuite) TestListNewestFirst() {
	s.enqueue("package", s.now)
	s.enqueue("email", s.now)
	s.enqueue("cleanup", s.now)

	tasks, err := s.store.List(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(tasks, 2)
	s.Equal("cleanup", tasks[0].Name)
	s.Equal("email", tasks[1].Name)
}

func (s *TaskStoreSuite) TestEnqueueRollsBackWithTransaction() {
	if s.db == nil {
		s.T().Skip("in-memory store has no transactions")
	}
	err := txcontext.Run(s.ctx, s.db.DB, func(ctx context.Context) error {
		t, err := NewTask("vital-records", "package", nil, s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.store.Enqueue(ctx, t))
		return context.Canceled
	})
	s.Require().ErrorIs(err, context.Canceled)

	_, err = s.store.Claim(s.ctx, s.now)
	s.Require().ErrorIs(err, sentinel.ErrEmpty)
}
