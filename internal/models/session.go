package models

import "time"

// EventKind — закрытый набор событий сессионного канала.
type EventKind uint8

const (
	EventUnknown EventKind = iota
	EventLogMessage
	EventChartUpdate
	EventCompilationProgress
	EventAnalyzerProgress
	EventConnection
)

var eventNames = map[EventKind]string{
	EventLogMessage:          "log_message",
	EventChartUpdate:         "update_chart",
	EventCompilationProgress: "compilation_progress",
	EventAnalyzerProgress:    "analyzer_progress",
	EventConnection:          "connection",
}

func (k EventKind) String() string {
	if n, ok := eventNames[k]; ok {
		return n
	}
	return "unknown"
}

// EventKindFromName мапит имя события на проводе в EventKind.
func EventKindFromName(name string) EventKind {
	for k, n := range eventNames {
		if n == name && k != EventConnection {
			return k
		}
	}
	return EventUnknown
}

// Event — типизированное сообщение, которое сессия кладёт в канал.
// Заполнено ровно одно поле-payload, соответствующее Kind.
type Event struct {
	Kind       EventKind
	ReceivedAt time.Time

	Log      *LogMessage
	Chart    *ChartUpdate
	Progress *CompilationProgress
	Analyzer *AnalyzerProgress
	Status   *StatusEvent
}

type LogMessage struct {
	Message string `json:"message"`
}

// LogRecord — разобранная строка лога.
type LogRecord struct {
	Timestamp time.Time
	Level     string
	Message   string
}

type Order struct {
	ID            string  `json:"id"`
	Direction     bool    `json:"direction"`
	Type          string  `json:"type"`
	OrderCategory string  `json:"order_category"`
	Price         float64 `json:"price"`
	Quantity      float64 `json:"quantity"`
	Status        string  `json:"status"`
	TimeCreated   string  `json:"time_created"`
	TimeExecuted  *string `json:"time_executed,omitempty"`
	TimeCancelled *string `json:"time_cancelled,omitempty"`
}

// ChartUpdate — полный снапшот графика и ордеров.
type ChartUpdate struct {
	Status    string           `validate:"omitempty,oneof=success error"`
	Data      []map[string]any `validate:"-"`
	Precision int              `validate:"gte=0,lte=16"`
	MinMove   float64          `validate:"gte=0"`
	Orders    []Order          `validate:"-"`
	// OrdersValid == false, если в снапшоте пришёл не массив ордеров.
	OrdersValid bool
}

func (u ChartUpdate) Success() bool { return u.Status == "" || u.Status == "success" }

type ProgressStatus string

const (
	ProgressRunning   ProgressStatus = "progress"
	ProgressCompleted ProgressStatus = "completed"
	ProgressError     ProgressStatus = "error"
)

func (s ProgressStatus) Valid() bool {
	return s == ProgressRunning || s == ProgressCompleted || s == ProgressError
}

type CompilationProgress struct {
	Status    ProgressStatus `json:"status" validate:"required,oneof=progress completed error"`
	Progress  int            `json:"progress" validate:"gte=0,lte=100"`
	Stage     string         `json:"stage"`
	GraphName string         `json:"graph_name" validate:"required"`
	Message   string         `json:"message,omitempty"`
}

type AnalyzerProgress struct {
	Status     ProgressStatus `json:"status" validate:"required,oneof=progress completed error"`
	Progress   int            `json:"progress" validate:"gte=0,lte=100"`
	Stage      string         `json:"stage"`
	BacktestID int64          `json:"backtest_id"`
	Message    string         `json:"message,omitempty"`
}

// ConnState — состояние сессионного соединения.
type ConnState uint8

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

type StatusKind string

const (
	StatusConnect          StatusKind = "connect"
	StatusDisconnect       StatusKind = "disconnect"
	StatusReconnectAttempt StatusKind = "reconnect_attempt"
	StatusError            StatusKind = "connect_error"
)

// StatusEvent — наблюдаемый переход соединения.
type StatusEvent struct {
	Kind    StatusKind
	State   ConnState
	Attempt int
	Err     error
	At      time.Time
}
