package models

type BotStatus string

const (
	BotRunning BotStatus = "running"
	BotStopped BotStatus = "stopped"
)

type BotInfo struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Status    BotStatus `json:"status"`
	Symbol    string    `json:"symbol,omitempty"`
	Timeframe string    `json:"timeframe,omitempty"`
	Strategy  string    `json:"strategy,omitempty"`
}

type BotParams struct {
	Name       string         `json:"name" validate:"required"`
	Parameters map[string]any `json:"parameters"`
}

type BotStats struct {
	Performance map[string]any `json:"performance"`
	Logs        []any          `json:"logs"`
}

// BotPage — страница pnl/логов бота, cursor пустой на последней странице.
type BotPage struct {
	Items      []map[string]any
	NextCursor string
}
