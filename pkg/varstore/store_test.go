package varstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/sqlite-datasource/pkg/templating"
)

func newTestStore() *Store {
	return New(log.NewNopLogger(), prometheus.NewRegistry())
}

func TestStore_Update(t *testing.T) {
	s := newTestStore()
	assert.Equal(t, 0, s.Index().Len())

	before := s.Index()
	s.Update([]templating.Variable{{Name: "a", Current: templating.Current{Value: "1"}}})

	assert.Equal(t, 0, before.Len())
	assert.Equal(t, []string{"a"}, s.Index().Names())
	assert.Equal(t, 1.0, testutil.ToFloat64(s.variableCount))
}

func TestStore_Subscribe(t *testing.T) {
	s := newTestStore()
	ch, cancel := s.Subscribe()

	s.Update([]templating.Variable{{Name: "a", Current: templating.Current{Value: "1"}}})
	s.Update([]templating.Variable{{Name: "b", Current: templating.Current{Value: "2"}}})

	// a slow subscriber only sees the latest snapshot
	idx := <-ch
	assert.Equal(t, []string{"b"}, idx.Names())
	select {
	case <-ch:
		t.Fatal("unexpected second snapshot")
	default:
	}

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)

	// no panic on updates after the subscription is gone
	s.Update(nil)
}

func TestStore_ConcurrentUpdatesNotifyLatest(t *testing.T) {
	s := newTestStore()
	ch, cancel := s.Subscribe()
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Update([]templating.Variable{{Name: fmt.Sprintf("v%d", i), Current: templating.Current{Value: "x"}}})
		}(i)
	}
	wg.Wait()

	idx := <-ch
	assert.Equal(t, s.Index().Names(), idx.Names())
}

func TestStore_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vars.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testFile), 0o600))

	s := newTestStore()
	require.NoError(t, s.LoadFile(path))
	assert.Equal(t, 5, s.Index().Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(s.reloads.WithLabelValues("success")))

	require.NoError(t, os.WriteFile(path, []byte("variables: [{}]\n"), 0o600))
	require.Error(t, s.LoadFile(path))
	assert.Equal(t, 5, s.Index().Len(), "snapshot is kept on a failed reload")
	assert.Equal(t, 1.0, testutil.ToFloat64(s.reloads.WithLabelValues("failure")))

	require.Error(t, s.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}
