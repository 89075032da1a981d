package exception

import "errors"

// Graph edit errors. Мутация отклоняется до изменения документа.
var (
	ErrUnknownNodeType  = errors.New("graph: unknown node type")
	ErrDuplicateType    = errors.New("graph: node type already registered")
	ErrInvalidNodeType  = errors.New("graph: invalid node type")
	ErrNodeNotFound     = errors.New("graph: node not found")
	ErrLinkNotFound     = errors.New("graph: link not found")
	ErrPortNotFound     = errors.New("graph: port not found")
	ErrIncompatibleType = errors.New("graph: incompatible port types")
	ErrPortOccupied     = errors.New("graph: input port already connected")
	ErrInvalidProperty  = errors.New("graph: invalid property value")
	ErrNotVariadic      = errors.New("graph: node has no variadic ports")
	ErrCycle            = errors.New("graph: cycle detected")
	ErrInvalidDocument  = errors.New("graph: invalid document")
)

// ErrTypeMismatch — синоним для вызывающего кода, который проверяет mismatch.
var ErrTypeMismatch = ErrIncompatibleType
