package models

// BacktestRecord — строка списка бэктестов пользователя.
type BacktestRecord struct {
	ID               int64  `json:"id"`
	GraphName        string `json:"graph_name"`
	Symbol           string `json:"symbol"`
	Timeframe        string `json:"timeframe"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	UpdatedAt        string `json:"updated_at"`
	AnalyzerResultID *int64 `json:"analyzer_result_id"`
}

func (r BacktestRecord) Analyzed() bool { return r.AnalyzerResultID != nil }

// Backtest — полная запись с данными графика. Precision/MinMove приходят
// то строкой, то числом, Orders — массивом или объектом.
type Backtest struct {
	GraphName        string           `json:"graph_name"`
	BacktestData     []map[string]any `json:"backtest_data"`
	Orders           any              `json:"orders"`
	Precision        any              `json:"precision"`
	MinMove          any              `json:"min_move"`
	Symbol           string           `json:"symbol"`
	Timeframe        string           `json:"timeframe"`
	StartDate        string           `json:"start_date"`
	EndDate          string           `json:"end_date"`
	AnalyzerResultID *int64           `json:"analyzer_result_id"`
	Graph            any              `json:"graph"`
}

// AnalyzerResult — метрики анализатора как есть.
type AnalyzerResult map[string]any
