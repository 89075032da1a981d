package models

import "time"

type CompileState uint8

const (
	CompileIdle CompileState = iota
	CompileRequested
	CompileCompiling
	CompileCompleted
	CompileFailed
)

func (s CompileState) String() string {
	switch s {
	case CompileRequested:
		return "requested"
	case CompileCompiling:
		return "compiling"
	case CompileCompleted:
		return "completed"
	case CompileFailed:
		return "failed"
	default:
		return "idle"
	}
}

// CompilationSession — транзиентное состояние компиляции одного графа.
type CompilationSession struct {
	GraphName string
	State     CompileState
	Progress  int
	Stage     string
	Message   string
	UpdatedAt time.Time
	// External: компиляцию запустил другой клиент, сессия заведена по событию.
	External bool
}

func (s CompilationSession) InFlight() bool {
	return s.State == CompileRequested || s.State == CompileCompiling
}
