package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"

	"pve_client/internal/models"
	"pve_client/internal/stream"
	"pve_client/pkg/exception"
)

// wire-формы событий: числа приходят то int, то float, то строкой
type wireChart struct {
	Status    string `json:"status"`
	Data      any    `json:"data"`
	Precision any    `json:"precision"`
	MinMove   any    `json:"minMove"`
	Orders    any    `json:"orders"`
}

type wireProgress struct {
	Status     string `json:"status"`
	Progress   any    `json:"progress"`
	Stage      string `json:"stage"`
	GraphName  string `json:"graph_name"`
	BacktestID any    `json:"backtest_id"`
	Message    string `json:"message"`
}

// eventDecoder превращает пару (имя, payload) в models.Event.
type eventDecoder struct {
	validate *validator.Validate
	now      func() time.Time
}

func newEventDecoder() *eventDecoder {
	return &eventDecoder{validate: validator.New(), now: time.Now}
}

func (d *eventDecoder) decode(name string, payload json.RawMessage) (models.Event, error) {
	ev := models.Event{Kind: models.EventKindFromName(name), ReceivedAt: d.now()}

	switch ev.Kind {
	case models.EventLogMessage:
		var m models.LogMessage
		if err := sonic.Unmarshal(payload, &m); err != nil {
			return ev, fmt.Errorf("%w: %s: %v", exception.ErrParse, name, err)
		}
		ev.Log = &m

	case models.EventChartUpdate:
		var w wireChart
		if err := sonic.Unmarshal(payload, &w); err != nil {
			return ev, fmt.Errorf("%w: %s: %v", exception.ErrParse, name, err)
		}
		u := models.ChartUpdate{
			Status:    w.Status,
			Data:      rows(w.Data),
			Precision: cast.ToInt(w.Precision),
			MinMove:   cast.ToFloat64(w.MinMove),
		}
		if orders, err := stream.DecodeOrders(w.Orders); err == nil {
			u.Orders, u.OrdersValid = orders, true
		}
		if err := d.validate.Struct(u); err != nil {
			return ev, fmt.Errorf("%w: %s: %v", exception.ErrParse, name, err)
		}
		ev.Chart = &u

	case models.EventCompilationProgress:
		w, err := d.progress(name, payload)
		if err != nil {
			return ev, err
		}
		p := models.CompilationProgress{
			Status:    models.ProgressStatus(w.Status),
			Progress:  cast.ToInt(w.Progress),
			Stage:     w.Stage,
			GraphName: w.GraphName,
			Message:   w.Message,
		}
		if err := d.validate.Struct(p); err != nil {
			return ev, fmt.Errorf("%w: %s: %v", exception.ErrParse, name, err)
		}
		ev.Progress = &p

	case models.EventAnalyzerProgress:
		w, err := d.progress(name, payload)
		if err != nil {
			return ev, err
		}
		p := models.AnalyzerProgress{
			Status:     models.ProgressStatus(w.Status),
			Progress:   cast.ToInt(w.Progress),
			Stage:      w.Stage,
			BacktestID: cast.ToInt64(w.BacktestID),
			Message:    w.Message,
		}
		if err := d.validate.Struct(p); err != nil {
			return ev, fmt.Errorf("%w: %s: %v", exception.ErrParse, name, err)
		}
		ev.Analyzer = &p

	default:
		return ev, fmt.Errorf("%w: unknown event %q", exception.ErrParse, name)
	}
	return ev, nil
}

func (d *eventDecoder) progress(name string, payload json.RawMessage) (wireProgress, error) {
	var w wireProgress
	if err := sonic.Unmarshal(payload, &w); err != nil {
		return w, fmt.Errorf("%w: %s: %v", exception.ErrParse, name, err)
	}
	return w, nil
}

// rows оставляет только объекты из массива data.
func rows(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, it := range list {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
