package models

import "time"

// GraphSummary — строка списка сохранённых стратегий.
type GraphSummary struct {
	ID         int64
	Name       string
	ModifiedAt time.Time
}

// LoadedGraph — сериализованный документ и его метаданные с сервера.
type LoadedGraph struct {
	Name     string
	Data     []byte
	Metadata Metadata
}
