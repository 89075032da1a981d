// Package graph — документ стратегии: инстансы нод и типизированные связи.
//
// Document не потокобезопасен: им владеет одна горутина (редактор),
// все мутации синхронные и отклоняются целиком до изменения состояния.
package graph

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"pve_client/internal/catalog"
	"pve_client/internal/models"
	"pve_client/pkg/exception"
)

// Resolver — то, что нужно документу от каталога.
type Resolver interface {
	Resolve(id string) (models.NodeType, error)
}

type node struct {
	inst models.NodeInstance
	typ  models.NodeType
	// свойства, которых нет в дескрипторе; хранятся как есть для round-trip
	extra map[string]any
}

func (n *node) inputs() []models.PortSpec  { return n.typ.InputPorts(n.inst.PortCount) }
func (n *node) outputs() []models.PortSpec { return n.typ.OutputPorts() }

type Document struct {
	Name      string
	OwnerID   string
	Metadata  models.Metadata
	UpdatedAt time.Time

	reg Resolver

	nodes []*node
	byID  map[int64]*node
	links []*models.Link

	lastNodeID int64
	lastLinkID int64
}

func New(reg Resolver, name, ownerID string) *Document {
	return &Document{
		Name:    name,
		OwnerID: ownerID,
		reg:     reg,
		byID:    make(map[int64]*node),
	}
}

// AddNode создаёт инстанс с дефолтами вида, поверх которых ложатся props.
func (d *Document) AddNode(typeID string, props map[string]any) (models.NodeInstance, error) {
	typ, err := d.reg.Resolve(typeID)
	if err != nil {
		return models.NodeInstance{}, err
	}

	values := typ.Defaults()
	for _, name := range sortedKeys(props) {
		spec, ok := typ.Property(name)
		if !ok {
			return models.NodeInstance{}, fmt.Errorf("%w: %s has no property %q", exception.ErrInvalidProperty, typeID, name)
		}
		v, err := checkProperty(spec, props[name])
		if err != nil {
			return models.NodeInstance{}, fmt.Errorf("%s.%s: %w", typeID, name, err)
		}
		values[name] = v
	}

	n := &node{
		typ: typ,
		inst: models.NodeInstance{
			ID:         d.lastNodeID + 1,
			TypeID:     typ.ID,
			Title:      typ.Title,
			Properties: values,
		},
	}
	if v := typ.Variadic; v != nil {
		count, _ := catalog.AsInt(values[v.Property])
		if count < v.Min || count > v.Max {
			return models.NodeInstance{}, fmt.Errorf("%w: %s must be in [%d,%d]", exception.ErrInvalidProperty, v.Property, v.Min, v.Max)
		}
		n.inst.PortCount = count
	}
	n.inst.Size = defaultSize(n)

	d.lastNodeID = n.inst.ID
	d.nodes = append(d.nodes, n)
	d.byID[n.inst.ID] = n
	return cloneInstance(n.inst), nil
}

// RemoveNode удаляет ноду вместе со всеми связями, которые её касаются.
func (d *Document) RemoveNode(id int64) error {
	if _, ok := d.byID[id]; !ok {
		return fmt.Errorf("%w: %d", exception.ErrNodeNotFound, id)
	}
	d.links = slices.DeleteFunc(d.links, func(l *models.Link) bool {
		return l.FromNode == id || l.ToNode == id
	})
	d.nodes = slices.DeleteFunc(d.nodes, func(n *node) bool { return n.inst.ID == id })
	delete(d.byID, id)
	return nil
}

// MoveNode меняет только позицию на канвасе.
func (d *Document) MoveNode(id int64, x, y float64) error {
	n, ok := d.byID[id]
	if !ok {
		return fmt.Errorf("%w: %d", exception.ErrNodeNotFound, id)
	}
	n.inst.Pos = [2]float64{x, y}
	return nil
}

// Connect соединяет выход fromSlot с входом toSlot.
// Занятый вход → exception.ErrPortOccupied; для замены есть Replace.
func (d *Document) Connect(from int64, fromSlot int, to int64, toSlot int) (models.Link, error) {
	t, err := d.checkEndpoints(from, fromSlot, to, toSlot)
	if err != nil {
		return models.Link{}, err
	}
	if l := d.incoming(to, toSlot); l != nil {
		return models.Link{}, fmt.Errorf("%w: node %d slot %d (link %d)", exception.ErrPortOccupied, to, toSlot, l.ID)
	}
	return d.addLink(from, fromSlot, to, toSlot, t), nil
}

// Replace атомарно заменяет входящую связь: старая удаляется, новая добавляется.
// При несовпадении типов документ не меняется.
func (d *Document) Replace(from int64, fromSlot int, to int64, toSlot int) (models.Link, error) {
	t, err := d.checkEndpoints(from, fromSlot, to, toSlot)
	if err != nil {
		return models.Link{}, err
	}
	if old := d.incoming(to, toSlot); old != nil {
		d.dropLink(old.ID)
	}
	return d.addLink(from, fromSlot, to, toSlot, t), nil
}

func (d *Document) Disconnect(linkID int64) error {
	if !d.dropLink(linkID) {
		return fmt.Errorf("%w: %d", exception.ErrLinkNotFound, linkID)
	}
	return nil
}

// SetProperty валидирует значение виджетом свойства. Приведения типов нет.
// Изменение свойства-счётчика variadic-группы перестраивает входы.
func (d *Document) SetProperty(id int64, name string, value any) error {
	n, ok := d.byID[id]
	if !ok {
		return fmt.Errorf("%w: %d", exception.ErrNodeNotFound, id)
	}
	spec, ok := n.typ.Property(name)
	if !ok {
		return fmt.Errorf("%w: %s has no property %q", exception.ErrInvalidProperty, n.typ.ID, name)
	}
	v, err := checkProperty(spec, value)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", n.typ.ID, name, err)
	}

	if vs := n.typ.Variadic; vs != nil && vs.Property == name {
		count, _ := catalog.AsInt(v)
		return d.resize(n, count)
	}
	n.inst.Properties[name] = v
	return nil
}

// SetPortCount меняет число variadic-входов. Связи на уцелевших портах не трогаются,
// связи на удалённых портах удаляются.
func (d *Document) SetPortCount(id int64, count int) error {
	n, ok := d.byID[id]
	if !ok {
		return fmt.Errorf("%w: %d", exception.ErrNodeNotFound, id)
	}
	if n.typ.Variadic == nil {
		return fmt.Errorf("%w: %s", exception.ErrNotVariadic, n.typ.ID)
	}
	return d.resize(n, count)
}

func (d *Document) resize(n *node, count int) error {
	vs := n.typ.Variadic
	if count < vs.Min || count > vs.Max {
		return fmt.Errorf("%w: %s=%d outside [%d,%d]", exception.ErrInvalidProperty, vs.Property, count, vs.Min, vs.Max)
	}
	limit := len(n.typ.Inputs) + count
	d.links = slices.DeleteFunc(d.links, func(l *models.Link) bool {
		return l.ToNode == n.inst.ID && l.ToSlot >= limit
	})
	n.inst.PortCount = count
	n.inst.Properties[vs.Property] = float64(count)
	n.inst.Size = defaultSize(n)
	return nil
}

func (d *Document) Node(id int64) (models.NodeInstance, bool) {
	n, ok := d.byID[id]
	if !ok {
		return models.NodeInstance{}, false
	}
	return cloneInstance(n.inst), true
}

// Nodes — в порядке добавления.
func (d *Document) Nodes() []models.NodeInstance {
	out := make([]models.NodeInstance, 0, len(d.nodes))
	for _, n := range d.nodes {
		out = append(out, cloneInstance(n.inst))
	}
	return out
}

// Links — в порядке добавления.
func (d *Document) Links() []models.Link {
	out := make([]models.Link, 0, len(d.links))
	for _, l := range d.links {
		out = append(out, *l)
	}
	return out
}

func (d *Document) Inputs(id int64) ([]models.PortSpec, error) {
	n, ok := d.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", exception.ErrNodeNotFound, id)
	}
	return n.inputs(), nil
}

func (d *Document) Outputs(id int64) ([]models.PortSpec, error) {
	n, ok := d.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", exception.ErrNodeNotFound, id)
	}
	return n.outputs(), nil
}

// Clone — глубокая копия под новым именем (дублирование стратегии).
func (d *Document) Clone(name string) *Document {
	c := New(d.reg, name, d.OwnerID)
	c.Metadata = d.Metadata
	c.lastNodeID, c.lastLinkID = d.lastNodeID, d.lastLinkID
	for _, n := range d.nodes {
		cp := &node{typ: n.typ, inst: cloneInstance(n.inst), extra: maps.Clone(n.extra)}
		c.nodes = append(c.nodes, cp)
		c.byID[cp.inst.ID] = cp
	}
	for _, l := range d.links {
		cp := *l
		c.links = append(c.links, &cp)
	}
	return c
}

func (d *Document) checkEndpoints(from int64, fromSlot int, to int64, toSlot int) (models.PortType, error) {
	src, ok := d.byID[from]
	if !ok {
		return "", fmt.Errorf("%w: %d", exception.ErrNodeNotFound, from)
	}
	dst, ok := d.byID[to]
	if !ok {
		return "", fmt.Errorf("%w: %d", exception.ErrNodeNotFound, to)
	}
	outs, ins := src.outputs(), dst.inputs()
	if fromSlot < 0 || fromSlot >= len(outs) {
		return "", fmt.Errorf("%w: node %d has no output %d", exception.ErrPortNotFound, from, fromSlot)
	}
	if toSlot < 0 || toSlot >= len(ins) {
		return "", fmt.Errorf("%w: node %d has no input %d", exception.ErrPortNotFound, to, toSlot)
	}
	if outs[fromSlot].Type != ins[toSlot].Type {
		return "", fmt.Errorf("%w: %s -> %s", exception.ErrIncompatibleType, outs[fromSlot].Type, ins[toSlot].Type)
	}
	return outs[fromSlot].Type, nil
}

func (d *Document) incoming(to int64, slot int) *models.Link {
	for _, l := range d.links {
		if l.ToNode == to && l.ToSlot == slot {
			return l
		}
	}
	return nil
}

func (d *Document) addLink(from int64, fromSlot int, to int64, toSlot int, t models.PortType) models.Link {
	d.lastLinkID++
	l := &models.Link{
		ID:       d.lastLinkID,
		FromNode: from,
		FromSlot: fromSlot,
		ToNode:   to,
		ToSlot:   toSlot,
		Type:     t,
	}
	d.links = append(d.links, l)
	return *l
}

func (d *Document) dropLink(id int64) bool {
	before := len(d.links)
	d.links = slices.DeleteFunc(d.links, func(l *models.Link) bool { return l.ID == id })
	return len(d.links) != before
}

// checkProperty возвращает нормализованное значение (числа → float64).
func checkProperty(spec models.PropertySpec, v any) (any, error) {
	if spec.Widget != nil {
		if err := catalog.CheckValue(*spec.Widget, v); err != nil {
			return nil, err
		}
	} else if !sameKind(spec.Default, v) {
		return nil, fmt.Errorf("%w: expected %T, got %T", exception.ErrInvalidProperty, spec.Default, v)
	}
	if f, ok := catalog.AsFloat(v); ok {
		return f, nil
	}
	return v, nil
}

func sameKind(def, v any) bool {
	switch def.(type) {
	case nil:
		return true
	case string:
		_, ok := v.(string)
		return ok
	case bool:
		_, ok := v.(bool)
		return ok
	}
	if _, ok := catalog.AsFloat(def); ok {
		_, ok = catalog.AsFloat(v)
		return ok
	}
	return false
}

func defaultSize(n *node) [2]float64 {
	rows := max(len(n.inputs()), len(n.outputs()))
	for _, p := range n.typ.Properties {
		if p.Widget != nil {
			rows++
		}
	}
	return [2]float64{180, float64(30 + 20*rows)}
}

func cloneInstance(in models.NodeInstance) models.NodeInstance {
	out := in
	out.Properties = maps.Clone(in.Properties)
	return out
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
