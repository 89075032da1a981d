package service

import (
	"sync/atomic"
	"time"
)

// State — сводка для /healthz: соединение сессии, последнее событие,
// активные компиляции.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	wsConnected   atomic.Bool
	lastEventUnix atomic.Int64 // unix seconds
	reconnects    atomic.Int64
	compiling     atomic.Int32
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetWSConnected(v bool) { s.wsConnected.Store(v) }
func (s *State) WSConnected() bool     { return s.wsConnected.Load() }

func (s *State) AddReconnect()      { s.reconnects.Add(1) }
func (s *State) Reconnects() int64  { return s.reconnects.Load() }
func (s *State) SetCompiling(n int) { s.compiling.Store(int32(n)) }
func (s *State) Compiling() int     { return int(s.compiling.Load()) }

func (s *State) TouchEvent(t time.Time) { s.lastEventUnix.Store(t.Unix()) }
func (s *State) LastEvent() time.Time {
	u := s.lastEventUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
