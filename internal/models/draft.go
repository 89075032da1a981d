package models

import "time"

// Draft — локальная копия несохранённого документа редактора.
type Draft struct {
	Owner     string
	Name      string
	Data      []byte
	Metadata  Metadata
	UpdatedAt time.Time
}
