package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jheroy/Redmine-desktop/pkg/cache"
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

func newEngine(t *testing.T) (*Engine, *cache.MemoryStore, *cache.Writer) {
	t.Helper()
	store := cache.NewMemoryStore()
	writer := cache.NewWriter(store, nil)
	t.Cleanup(func() { _ = writer.Close() })
	return NewEngine(writer, nil), store, writer
}

func flush(t *testing.T, w *cache.Writer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Flush(ctx))
}

func TestEngine_ApplyPersistsAndNotifies(t *testing.T) {
	engine, store, writer := newEngine(t)

	var got []Result
	engine.Subscribe(func(r Result) { got = append(got, r) })

	result := engine.Apply(ActiveVersionsRefresh(10), []redmine.Issue{issue(1, 10, "one"), issue(2, 0, "two")})
	assert.Equal(t, []int{1, 2}, result.Added)
	require.Len(t, got, 1)

	// unchanged batch does not notify
	engine.Apply(ActiveVersionsRefresh(10), []redmine.Issue{issue(1, 10, "one")})
	assert.Len(t, got, 1)

	flush(t, writer)
	cached, ok := cache.LoadJSON(context.Background(), store, cache.KeyIssues, []redmine.Issue(nil))
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, ids(cached))

	tracked, ok := cache.LoadJSON(context.Background(), store, cache.KeyVersionsWithIssues, cache.IDSet{})
	require.True(t, ok)
	assert.Equal(t, []int{10}, tracked.Sorted())
}

func TestEngine_PersistFailureKeepsMemoryState(t *testing.T) {
	store := cache.NewMemoryStore()
	store.SetPutErr(assert.AnError)
	writer := cache.NewWriter(store, nil)
	defer writer.Close()

	engine := NewEngine(writer, nil)
	engine.Apply(FollowedSync(7), []redmine.Issue{issue(1, 0, "one")})
	flush(t, writer)

	assert.Equal(t, 1, engine.Len())
}

func TestEngine_InsertAndRemove(t *testing.T) {
	engine, _, _ := newEngine(t)
	engine.Apply(FollowedSync(7), []redmine.Issue{issue(1, 0, "one")})

	created := issue(2, 15, "created")
	engine.Insert(created)

	got, ok := engine.Get(2)
	require.True(t, ok)
	assert.Equal(t, "created", got.Subject)
	assert.True(t, engine.Versions().Has(15))

	assert.True(t, engine.Remove(1))
	assert.False(t, engine.Remove(1))
	assert.Equal(t, []int{2}, ids(engine.Snapshot()))
}

func TestEngine_Restore(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	require.NoError(t, cache.SaveJSON(ctx, store, cache.KeyIssues, []redmine.Issue{issue(1, 10, "one")}))
	require.NoError(t, cache.SaveJSON(ctx, store, cache.KeyVersionsWithIssues, cache.NewIDSet(99)))

	engine := NewEngine(nil, nil)
	engine.Restore(ctx, store)

	assert.Equal(t, 1, engine.Len())
	assert.True(t, engine.Versions().Has(10))
	assert.True(t, engine.Versions().Has(99))
}

func TestEngine_RestoreCorruptCache(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	require.NoError(t, store.Put(ctx, cache.KeyIssues, []byte(`{broken`)))

	engine := NewEngine(nil, nil)
	engine.Restore(ctx, store)
	assert.Equal(t, 0, engine.Len())
}

func TestEngine_VersionTrackerOnlyGrows(t *testing.T) {
	engine, _, _ := newEngine(t)
	engine.Apply(ActiveVersionsRefresh(10), []redmine.Issue{issue(1, 10, "one")})
	engine.Apply(ActiveVersionsRefresh(10), nil)

	assert.Equal(t, 0, engine.Len())
	assert.True(t, engine.Versions().Has(10))
}

func TestEngine_ConcurrentApplyIsAtomic(t *testing.T) {
	engine, _, _ := newEngine(t)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			engine.Apply(VersionOnDemand(id), []redmine.Issue{issue(id, id, "x")})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, engine.Len())
}

type readingPersister struct {
	engine *Engine
	mu     sync.Mutex
	lens   []int
}

func (p *readingPersister) EnqueueJSON(key string, v interface{}) {
	if key != cache.KeyIssues {
		return
	}
	n := p.engine.Len()
	p.mu.Lock()
	p.lens = append(p.lens, n)
	p.mu.Unlock()
}

func TestEngine_PersistRunsOutsideLock(t *testing.T) {
	p := &readingPersister{}
	engine := NewEngine(p, nil)
	p.engine = engine

	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.Apply(VersionOnDemand(10), []redmine.Issue{issue(1, 10, "one")})
		engine.Insert(issue(2, 10, "two"))
		engine.Remove(1)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("persister could not read the engine while a write was enqueued")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, []int{1, 2, 1}, p.lens)
}

func TestEngine_ConcurrentPersistKeepsLatest(t *testing.T) {
	engine, store, writer := newEngine(t)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			engine.Apply(VersionOnDemand(id), []redmine.Issue{issue(id, id, "x")})
		}(i)
	}
	wg.Wait()

	flush(t, writer)
	cached, ok := cache.LoadJSON(context.Background(), store, cache.KeyIssues, []redmine.Issue(nil))
	require.True(t, ok)
	assert.Len(t, cached, 50)
}
