package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type recorder struct {
	events []string
}

func (r *recorder) dep(name string, requires ...string) *Dependency {
	return &Dependency{
		Name:     name,
		Requires: requires,
		StartFn:  func(context.Context) error { r.events = append(r.events, "start "+name); return nil },
		StopFn:   func(context.Context) error { r.events = append(r.events, "stop "+name); return nil },
	}
}

func TestStartup_Order(t *testing.T) {
	rec := &recorder{}
	s := NewStartup(testLogger(), 1)
	s.AddDependency(rec.dep("http", "merging", "database"))
	s.AddDependency(rec.dep("merging", "database", "redis"))
	s.AddDependency(rec.dep("database"))
	s.AddDependency(rec.dep("redis"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start database", "start redis", "start merging", "start http"}, rec.events)
	assert.Equal(t, StartupStatusStarted, s.Status("http"))

	rec.events = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop http", "stop merging", "stop redis", "stop database"}, rec.events)
	assert.Equal(t, StartupStatusStopped, s.Status("database"))
}

func TestStartup_Retries(t *testing.T) {
	attempts := 0
	s := NewStartup(testLogger(), 3).WithBackoffUnit(time.Millisecond)
	s.AddDependency(&Dependency{Name: "database", StartFn: func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	}})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, attempts)
}

func TestStartup_GivesUp(t *testing.T) {
	s := NewStartup(testLogger(), 2).WithBackoffUnit(time.Millisecond)
	s.AddDependency(&Dependency{Name: "kafka", StartFn: func(context.Context) error { return errors.New("no brokers") }})

	err := s.Start(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup failed after 2 attempts: no brokers")
	assert.Equal(t, StartupStatusFailed, s.Status("kafka"))
}

func TestStartup_GraphErrors(t *testing.T) {
	tests := []struct {
		name    string
		deps    []*Dependency
		wantErr string
	}{
		{
			name:    "missing dependency",
			deps:    []*Dependency{{Name: "http", Requires: []string{"database"}}},
			wantErr: "dependency 'database' of 'http' is not registered",
		},
		{
			name: "cycle",
			deps: []*Dependency{
				{Name: "a", Requires: []string{"b"}},
				{Name: "b", Requires: []string{"a"}},
			},
			wantErr: "dependency cycle through 'a'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStartup(testLogger(), 1)
			for _, d := range tt.deps {
				s.AddDependency(d)
			}

			err := s.Start(context.Background())

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStartup_StopContinuesAfterFailure(t *testing.T) {
	stopped := []string{}
	s := NewStartup(testLogger(), 1)
	s.AddDependency(&Dependency{Name: "database", StopFn: func(context.Context) error {
		stopped = append(stopped, "database")
		return nil
	}})
	s.AddDependency(&Dependency{Name: "kafka", StopFn: func(context.Context) error {
		stopped = append(stopped, "kafka")
		return errors.New("flush timeout")
	}})

	require.NoError(t, s.Start(context.Background()))
	err := s.Stop(context.Background())

	assert.EqualError(t, err, "flush timeout")
	assert.Equal(t, []string{"kafka", "database"}, stopped)
}
