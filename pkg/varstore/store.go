package varstore

import (
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/atomic"

	"github.com/grafana/sqlite-datasource/pkg/templating"
)

// Store holds the current variable index. Readers always see a complete
// snapshot; Update swaps it and notifies subscribers.
type Store struct {
	logger log.Logger
	index  atomic.Pointer[templating.Index]

	mtx         sync.Mutex
	subscribers map[int]chan templating.Index
	nextID      int

	reloads       *prometheus.CounterVec
	lastReload    prometheus.Gauge
	variableCount prometheus.Gauge
}

// New makes an empty Store.
func New(logger log.Logger, reg prometheus.Registerer) *Store {
	s := &Store{
		logger:      logger,
		subscribers: map[int]chan templating.Index{},
		reloads: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sqlite_datasource_variables_reloads_total",
			Help: "Total number of variables file reloads by outcome.",
		}, []string{"status"}),
		lastReload: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "sqlite_datasource_variables_last_reload_success_timestamp_seconds",
			Help: "Timestamp of the last successful variables file reload.",
		}),
		variableCount: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "sqlite_datasource_variables",
			Help: "Number of variables in the current snapshot.",
		}),
	}
	empty := templating.NewIndex(nil)
	s.index.Store(&empty)
	return s
}

// Index returns the current snapshot.
func (s *Store) Index() templating.Index {
	return *s.index.Load()
}

// Update replaces the snapshot with one built from vars.
func (s *Store) Update(vars []templating.Variable) {
	idx := templating.NewIndex(vars)

	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.index.Store(&idx)
	s.variableCount.Set(float64(idx.Len()))
	for _, ch := range s.subscribers {
		// only the latest snapshot matters to a slow subscriber
		select {
		case <-ch:
		default:
		}
		ch <- idx
	}
}

// Subscribe returns a channel receiving every new snapshot, and a function
// that cancels the subscription and closes the channel.
func (s *Store) Subscribe() (<-chan templating.Index, func()) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan templating.Index, 1)
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mtx.Lock()
			defer s.mtx.Unlock()
			delete(s.subscribers, id)
			close(ch)
		})
	}
}

// LoadFile reads the variables file at path and installs it. On error the
// current snapshot is kept.
func (s *Store) LoadFile(path string) error {
	f, err := ReadFile(path)
	if err != nil {
		s.reloads.WithLabelValues("failure").Inc()
		return err
	}

	s.Update(f.TemplatingVariables())
	s.reloads.WithLabelValues("success").Inc()
	s.lastReload.SetToCurrentTime()
	level.Info(s.logger).Log("msg", "loaded variables", "path", path, "variables", len(f.Variables))
	return nil
}
