package catalog

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"podrepo-agent/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func repo(address string) models.SourceRepo {
	return models.SourceRepo{
		Address:        address,
		Name:           address,
		DisplayName:    address,
		DisplayAddress: address,
		Kind:           models.RepoKindGit,
	}
}

func addresses(repos []models.SourceRepo) []string {
	out := make([]string, len(repos))
	for i, r := range repos {
		out[i] = r.Address
	}
	return out
}

func recvEvents(t *testing.T, ch <-chan Event, n int) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case ev := <-ch:
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}

func TestMerge_InsertsInOrder(t *testing.T) {
	c := New(newTestLogger())
	defer c.Close()

	c.Merge([]models.SourceRepo{repo("a"), repo("b")})
	c.Merge([]models.SourceRepo{repo("c"), repo("a")})

	assert.Equal(t, []string{"a", "b", "c"}, addresses(c.GetAll()))
	assert.Equal(t, 3, c.Len())
}

func TestMerge_IsAdditive(t *testing.T) {
	c := New(newTestLogger())
	defer c.Close()

	c.Merge([]models.SourceRepo{repo("a"), repo("b")})
	c.Merge([]models.SourceRepo{repo("c")})
	c.Merge(nil)

	assert.ElementsMatch(t, []string{"a", "b", "c"}, addresses(c.GetAll()))
}

func TestMerge_KeepsStatusAndRefreshesDisplayFields(t *testing.T) {
	c := New(newTestLogger())
	defer c.Close()

	c.Merge([]models.SourceRepo{repo("a")})
	require.True(t, c.SetUpdating("a", true))

	refreshed := repo("a")
	refreshed.DisplayName = "Renamed"
	refreshed.Commit = "abc123"
	refreshed.IsUpdating = false
	c.Merge([]models.SourceRepo{refreshed})

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.True(t, got.IsUpdating)
	assert.Equal(t, "Renamed", got.DisplayName)
	assert.Equal(t, "abc123", got.Commit)
}

func TestMerge_NewEntriesStartIdle(t *testing.T) {
	c := New(newTestLogger())
	defer c.Close()

	r := repo("a")
	r.IsUpdating = true
	c.Merge([]models.SourceRepo{r})

	got, _ := c.Get("a")
	assert.False(t, got.IsUpdating)
}

func TestMerge_Idempotent(t *testing.T) {
	c := New(newTestLogger())
	defer c.Close()

	d := []models.SourceRepo{repo("a"), repo("b"), repo("a")}
	c.Merge(d)
	once := c.GetAll()
	c.Merge(d)

	assert.Equal(t, once, c.GetAll())
}

func TestMerge_SkipsEmptyAddress(t *testing.T) {
	c := New(newTestLogger())
	defer c.Close()

	c.Merge([]models.SourceRepo{{Name: "broken"}})
	assert.Equal(t, 0, c.Len())
}

func TestMerge_NeverDuplicatesAddresses(t *testing.T) {
	c := New(newTestLogger())
	defer c.Close()

	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 200; n++ {
		batch := make([]models.SourceRepo, rng.Intn(6))
		for i := range batch {
			batch[i] = repo(fmt.Sprintf("repo-%d", rng.Intn(12)))
		}
		c.Merge(batch)

		seen := map[string]bool{}
		for _, r := range c.GetAll() {
			require.False(t, seen[r.Address], "duplicate %s", r.Address)
			seen[r.Address] = true
		}
	}
}

func TestGetAll_ReturnsCopy(t *testing.T) {
	c := New(newTestLogger())
	defer c.Close()

	c.Merge([]models.SourceRepo{repo("a")})
	snapshot := c.GetAll()
	snapshot[0].DisplayName = "mutated"

	got, _ := c.Get("a")
	assert.Equal(t, "a", got.DisplayName)
}

func TestFind(t *testing.T) {
	c := New(newTestLogger())
	defer c.Close()

	trunk := models.SourceRepo{Address: "https://cdn.cocoapods.org/", Name: "trunk"}
	c.Merge([]models.SourceRepo{repo("a"), trunk})

	got, ok := c.Find("https://cdn.cocoapods.org/")
	require.True(t, ok)
	assert.Equal(t, "trunk", got.Name)

	got, ok = c.Find("trunk")
	require.True(t, ok)
	assert.Equal(t, trunk.Address, got.Address)

	_, ok = c.Find("missing")
	assert.False(t, ok)
}

func TestReplace(t *testing.T) {
	c := New(newTestLogger())
	defer c.Close()

	c.Merge([]models.SourceRepo{repo("a"), repo("b")})
	c.SetUpdating("b", true)

	c.Replace([]models.SourceRepo{repo("b"), repo("c"), repo("c")})

	assert.Equal(t, []string{"b", "c"}, addresses(c.GetAll()))
	b, _ := c.Get("b")
	assert.True(t, b.IsUpdating)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestSetUpdating(t *testing.T) {
	c := New(newTestLogger())
	defer c.Close()

	assert.False(t, c.SetUpdating("missing", true))
	assert.Equal(t, 0, c.Len())

	c.Merge([]models.SourceRepo{repo("a")})
	assert.True(t, c.SetUpdating("a", true))
	got, _ := c.Get("a")
	assert.True(t, got.IsUpdating)
}

func TestTrySetUpdating(t *testing.T) {
	c := New(newTestLogger())
	defer c.Close()

	_, found, started := c.TrySetUpdating("missing")
	assert.False(t, found)
	assert.False(t, started)

	c.Merge([]models.SourceRepo{repo("a")})
	got, found, started := c.TrySetUpdating("a")
	assert.True(t, found)
	assert.True(t, started)
	assert.True(t, got.IsUpdating)

	_, found, started = c.TrySetUpdating("a")
	assert.True(t, found)
	assert.False(t, started, "second caller must not start")

	require.True(t, c.SetUpdating("a", false))
	_, _, started = c.TrySetUpdating("a")
	assert.True(t, started, "idle again once cleared")
}

func TestTrySetUpdating_Concurrent(t *testing.T) {
	c := New(newTestLogger())
	defer c.Close()
	c.Merge([]models.SourceRepo{repo("a")})

	var wg sync.WaitGroup
	var started atomic.Int32
	for n := 0; n < 32; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, ok := c.TrySetUpdating("a"); ok {
				started.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), started.Load())
}

func TestSubscribe_ReceivesEventsInMutationOrder(t *testing.T) {
	c := New(newTestLogger())
	defer c.Close()

	events := make(chan Event, 16)
	c.Subscribe(func(ev Event) { events <- ev })

	c.Merge([]models.SourceRepo{repo("a")})
	c.SetUpdating("a", true)
	c.SetUpdating("a", true) // no change, no event
	c.SetUpdating("a", false)
	changed := repo("a")
	changed.DisplayName = "A"
	c.Merge([]models.SourceRepo{changed})
	c.Replace([]models.SourceRepo{repo("b")})

	got := recvEvents(t, events, 5)
	types := make([]EventType, len(got))
	for i, ev := range got {
		types[i] = ev.Type
	}
	assert.Equal(t, []EventType{EventAdded, EventStatus, EventStatus, EventChanged, EventReplaced}, types)
	assert.True(t, got[1].Repo.IsUpdating)
	assert.False(t, got[2].Repo.IsUpdating)
	assert.Equal(t, []string{"b"}, addresses(got[4].Repos))
}

func TestUnsubscribe(t *testing.T) {
	c := New(newTestLogger())

	var mu sync.Mutex
	count := 0
	sub := c.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	c.Unsubscribe(sub)

	c.Merge([]models.SourceRepo{repo("a")})
	c.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, count)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	c := New(newTestLogger())
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Merge([]models.SourceRepo{repo(fmt.Sprintf("r%d", (i+j)%10))})
				c.SetUpdating(fmt.Sprintf("r%d", j%10), j%2 == 0)
			}
		}()
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				snapshot := c.GetAll()
				seen := map[string]bool{}
				for _, r := range snapshot {
					assert.False(t, seen[r.Address])
					seen[r.Address] = true
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, c.Len())
}
