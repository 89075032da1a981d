package stream

import (
	"slices"
	"sync"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"pve_client/internal/models"
)

const (
	defaultPrecision = 2
	defaultMinMove   = 0.01
)

// Snapshot — копия текущего состояния графика.
type Snapshot struct {
	Data      []map[string]any
	Precision int
	MinMove   float64
	Orders    []models.Order
	UpdatedAt time.Time
}

// ChartState держит последний снапшот графика и ордеров.
// Каждое обновление полностью заменяет предыдущее, без мерджа по ордерам.
type ChartState struct {
	log *zap.Logger

	mu   sync.RWMutex
	snap Snapshot
}

func NewChartState(log *zap.Logger) *ChartState {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChartState{log: log}
}

// Apply применяет update_chart. Неуспешный статус игнорируется,
// невалидный массив ордеров оставляет прежние ордера.
func (c *ChartState) Apply(u models.ChartUpdate) bool {
	if !u.Success() {
		c.log.Warn("chart update rejected by server", zap.String("status", u.Status))
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap.Data = u.Data
	c.snap.Precision = u.Precision
	c.snap.MinMove = u.MinMove
	if u.OrdersValid {
		c.snap.Orders = slices.Clone(u.Orders)
	} else {
		c.log.Error("invalid orders format received, keeping previous snapshot")
	}
	c.snap.UpdatedAt = time.Now()
	return true
}

// FromBacktest выставляет график из сохранённого бэктеста.
func (c *ChartState) FromBacktest(bt models.Backtest) bool {
	if bt.BacktestData == nil {
		return false
	}

	precision := defaultPrecision
	if p, err := cast.ToFloat64E(bt.Precision); err == nil && p != 0 {
		precision = int(p)
	}
	minMove := defaultMinMove
	if m, err := cast.ToFloat64E(bt.MinMove); err == nil && m != 0 {
		minMove = m
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap.Data = bt.BacktestData
	c.snap.Precision = precision
	c.snap.MinMove = minMove
	if bt.Orders != nil {
		orders, err := DecodeOrders(bt.Orders)
		if err != nil {
			c.log.Error("backtest orders", zap.Error(err))
		} else {
			c.snap.Orders = orders
		}
	}
	c.snap.UpdatedAt = time.Now()
	return true
}

func (c *ChartState) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := c.snap
	out.Orders = slices.Clone(c.snap.Orders)
	return out
}

func (c *ChartState) Orders() []models.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.snap.Orders)
}
