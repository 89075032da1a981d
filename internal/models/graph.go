package models

import (
	"strconv"
	"strings"
)

// PortType — закрытый набор типов данных, текущих между нодами.
type PortType string

const (
	PortFloat     PortType = "float"
	PortInteger   PortType = "integer"
	PortString    PortType = "string"
	PortBool      PortType = "bool"
	PortColumn    PortType = "column"
	PortDataframe PortType = "dataframe"
	PortObject    PortType = "object"
	PortExec      PortType = "exec"
)

var portAliases = map[string]PortType{
	"boolean": PortBool,
	"int":     PortInteger,
	"number":  PortFloat,
	"list":    PortObject,
	"any":     PortObject,
	"":        PortObject,
}

// ParsePortType принимает канонические имена и легаси-алиасы редактора.
func ParsePortType(s string) (PortType, bool) {
	t := PortType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t, true
	}
	if alias, ok := portAliases[string(t)]; ok {
		return alias, true
	}
	return "", false
}

func (t PortType) Valid() bool {
	switch t {
	case PortFloat, PortInteger, PortString, PortBool, PortColumn, PortDataframe, PortObject, PortExec:
		return true
	}
	return false
}

func (t PortType) String() string { return string(t) }

type PortSpec struct {
	Name string
	Type PortType
}

type WidgetKind string

const (
	WidgetNumber WidgetKind = "number"
	WidgetText   WidgetKind = "text"
	WidgetToggle WidgetKind = "toggle"
	WidgetCombo  WidgetKind = "combo"
)

// WidgetSpec описывает, как редактируется свойство.
// Precision 0 у number-виджета означает целые значения.
type WidgetSpec struct {
	Kind      WidgetKind
	Min       *float64
	Max       *float64
	Step      float64
	Precision int
	Values    []string // combo
}

// PropertySpec — редактируемое скалярное свойство ноды с дефолтом.
type PropertySpec struct {
	Name    string
	Default any
	Widget  *WidgetSpec
}

// VariadicSpec — группа входов, число которых хранится в свойстве Property.
// Порты называются Prefix, "Prefix 2", "Prefix 3"...
type VariadicSpec struct {
	Property string
	Prefix   string
	Type     PortType
	Min      int
	Max      int
}

func (v VariadicSpec) PortName(i int) string {
	if i == 0 {
		return v.Prefix
	}
	return v.Prefix + " " + strconv.Itoa(i+1)
}

// NodeType — неизменяемый дескриптор вида ноды в каталоге.
type NodeType struct {
	ID          string
	Title       string
	Description string
	Inputs      []PortSpec
	Outputs     []PortSpec
	Properties  []PropertySpec
	Variadic    *VariadicSpec
}

func (t NodeType) Category() string {
	if i := strings.LastIndex(t.ID, "/"); i > 0 {
		return t.ID[:i]
	}
	return ""
}

func (t NodeType) Property(name string) (PropertySpec, bool) {
	for _, p := range t.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertySpec{}, false
}

// Defaults возвращает новую карту дефолтных значений свойств.
func (t NodeType) Defaults() map[string]any {
	out := make(map[string]any, len(t.Properties))
	for _, p := range t.Properties {
		out[p.Name] = p.Default
	}
	return out
}

// InputPorts выводит входы детерминированно из дескриптора и числа variadic-портов.
func (t NodeType) InputPorts(portCount int) []PortSpec {
	out := make([]PortSpec, 0, len(t.Inputs)+portCount)
	out = append(out, t.Inputs...)
	if t.Variadic != nil {
		for i := 0; i < portCount; i++ {
			out = append(out, PortSpec{Name: t.Variadic.PortName(i), Type: t.Variadic.Type})
		}
	}
	return out
}

func (t NodeType) OutputPorts() []PortSpec {
	out := make([]PortSpec, len(t.Outputs))
	copy(out, t.Outputs)
	return out
}

// NodeInstance — конкретная нода внутри документа.
type NodeInstance struct {
	ID         int64
	TypeID     string
	Title      string
	Pos        [2]float64
	Size       [2]float64
	Mode       int
	Properties map[string]any
	PortCount  int // только для variadic
}

// Link — направленное ребро от выхода к входу.
type Link struct {
	ID       int64
	FromNode int64
	FromSlot int
	ToNode   int64
	ToSlot   int
	Type     PortType
}

type Metadata struct {
	Symbol    string `json:"symbol,omitempty" yaml:"symbol"`
	Timeframe string `json:"timeframe,omitempty" yaml:"timeframe"`
	StartDate string `json:"start_date,omitempty" yaml:"start_date"`
	EndDate   string `json:"end_date,omitempty" yaml:"end_date"`
}
