package graph

import (
	"fmt"
	"maps"

	"github.com/bytedance/sonic"

	"pve_client/internal/catalog"
	"pve_client/internal/models"
	"pve_client/pkg/exception"
)

// Формат совместим с сериализацией LiteGraph, которую читает бэкенд:
// ссылки — кортежи [id, origin_id, origin_slot, target_id, target_slot, type].
const formatVersion = 0.4

type wireGraph struct {
	LastNodeID int64          `json:"last_node_id"`
	LastLinkID int64          `json:"last_link_id"`
	Nodes      []wireNode     `json:"nodes"`
	Links      [][]any        `json:"links"`
	Groups     []any          `json:"groups"`
	Config     map[string]any `json:"config"`
	Extra      map[string]any `json:"extra"`
	Version    float64        `json:"version"`
}

type wireNode struct {
	ID            int64          `json:"id"`
	Type          string         `json:"type"`
	Title         string         `json:"title,omitempty"`
	Pos           any            `json:"pos"`
	Size          any            `json:"size"`
	Flags         map[string]any `json:"flags"`
	Order         int            `json:"order"`
	Mode          int            `json:"mode"`
	Inputs        []wireInput    `json:"inputs,omitempty"`
	Outputs       []wireOutput   `json:"outputs,omitempty"`
	Properties    map[string]any `json:"properties"`
	WidgetsValues []any          `json:"widgets_values,omitempty"`
}

type wireInput struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Link *int64 `json:"link"`
}

type wireOutput struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Links     []int64 `json:"links"`
	SlotIndex int     `json:"slot_index"`
}

// Serialize — каноничный JSON: ноды и связи в порядке добавления,
// ключи свойств отсортированы. Повторная сериализация даёт те же байты.
func (d *Document) Serialize() ([]byte, error) {
	g := wireGraph{
		LastNodeID: d.lastNodeID,
		LastLinkID: d.lastLinkID,
		Nodes:      make([]wireNode, 0, len(d.nodes)),
		Links:      make([][]any, 0, len(d.links)),
		Groups:     []any{},
		Config:     map[string]any{},
		Extra:      map[string]any{},
		Version:    formatVersion,
	}

	for order, n := range d.nodes {
		wn := wireNode{
			ID:         n.inst.ID,
			Type:       n.inst.TypeID,
			Title:      n.inst.Title,
			Pos:        []float64{n.inst.Pos[0], n.inst.Pos[1]},
			Size:       []float64{n.inst.Size[0], n.inst.Size[1]},
			Flags:      map[string]any{},
			Order:      order,
			Mode:       n.inst.Mode,
			Properties: maps.Clone(n.extra),
		}
		if wn.Properties == nil {
			wn.Properties = make(map[string]any, len(n.inst.Properties))
		}
		maps.Copy(wn.Properties, n.inst.Properties)

		for slot, p := range n.inputs() {
			in := wireInput{Name: p.Name, Type: p.Type.String()}
			if l := d.incoming(n.inst.ID, slot); l != nil {
				id := l.ID
				in.Link = &id
			}
			wn.Inputs = append(wn.Inputs, in)
		}
		for slot, p := range n.outputs() {
			out := wireOutput{Name: p.Name, Type: p.Type.String(), SlotIndex: slot}
			for _, l := range d.links {
				if l.FromNode == n.inst.ID && l.FromSlot == slot {
					out.Links = append(out.Links, l.ID)
				}
			}
			wn.Outputs = append(wn.Outputs, out)
		}
		for _, p := range n.typ.Properties {
			if p.Widget != nil {
				wn.WidgetsValues = append(wn.WidgetsValues, n.inst.Properties[p.Name])
			}
		}
		g.Nodes = append(g.Nodes, wn)
	}

	for _, l := range d.links {
		g.Links = append(g.Links, []any{l.ID, l.FromNode, l.FromSlot, l.ToNode, l.ToSlot, l.Type.String()})
	}

	return sonic.ConfigStd.Marshal(&g)
}

// Deserialize восстанавливает документ и валидирует его целиком.
// Первая же ошибка инварианта прерывает загрузку, ничего не отбрасывается молча.
func Deserialize(reg Resolver, name, ownerID string, data []byte) (*Document, error) {
	var g wireGraph
	if err := sonic.ConfigStd.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", exception.ErrInvalidDocument, err)
	}

	d := New(reg, name, ownerID)
	for i := range g.Nodes {
		if err := d.loadNode(&g.Nodes[i]); err != nil {
			return nil, err
		}
	}
	for i, raw := range g.Links {
		if err := d.loadLink(raw); err != nil {
			return nil, fmt.Errorf("link #%d: %w", i, err)
		}
	}

	d.lastNodeID = max(d.lastNodeID, g.LastNodeID)
	d.lastLinkID = max(d.lastLinkID, g.LastLinkID)
	return d, nil
}

func (d *Document) loadNode(wn *wireNode) error {
	if _, dup := d.byID[wn.ID]; dup {
		return fmt.Errorf("%w: duplicate node id %d", exception.ErrInvalidDocument, wn.ID)
	}
	typ, err := d.reg.Resolve(wn.Type)
	if err != nil {
		return fmt.Errorf("node %d: %w", wn.ID, err)
	}

	n := &node{
		typ: typ,
		inst: models.NodeInstance{
			ID:         wn.ID,
			TypeID:     typ.ID,
			Title:      wn.Title,
			Mode:       wn.Mode,
			Properties: typ.Defaults(),
		},
	}
	if n.inst.Title == "" {
		n.inst.Title = typ.Title
	}
	if n.inst.Pos, err = vec2(wn.Pos); err != nil {
		return fmt.Errorf("node %d pos: %w", wn.ID, err)
	}
	if n.inst.Size, err = vec2(wn.Size); err != nil {
		return fmt.Errorf("node %d size: %w", wn.ID, err)
	}

	// widgets_values используются только для свойств, которых нет в properties
	widgetIdx := 0
	for _, p := range typ.Properties {
		v, ok := wn.Properties[p.Name]
		if !ok && p.Widget != nil && widgetIdx < len(wn.WidgetsValues) {
			v, ok = wn.WidgetsValues[widgetIdx], true
		}
		if p.Widget != nil {
			widgetIdx++
		}
		if !ok {
			continue
		}
		val, err := checkProperty(p, v)
		if err != nil {
			return fmt.Errorf("node %d %s.%s: %w", wn.ID, typ.ID, p.Name, err)
		}
		n.inst.Properties[p.Name] = val
	}
	for k, v := range wn.Properties {
		if _, declared := typ.Property(k); declared {
			continue
		}
		if n.extra == nil {
			n.extra = make(map[string]any)
		}
		n.extra[k] = v
	}

	if vs := typ.Variadic; vs != nil {
		count, ok := catalog.AsInt(n.inst.Properties[vs.Property])
		if !ok || count < vs.Min || count > vs.Max {
			return fmt.Errorf("node %d: %w: %s=%v", wn.ID, exception.ErrInvalidProperty, vs.Property, n.inst.Properties[vs.Property])
		}
		n.inst.PortCount = count
	}
	if n.inst.Size == ([2]float64{}) {
		n.inst.Size = defaultSize(n)
	}

	d.nodes = append(d.nodes, n)
	d.byID[n.inst.ID] = n
	d.lastNodeID = max(d.lastNodeID, n.inst.ID)
	return nil
}

func (d *Document) loadLink(raw []any) error {
	if len(raw) < 5 {
		return fmt.Errorf("%w: link tuple has %d fields", exception.ErrInvalidDocument, len(raw))
	}
	var f [5]int64
	for i := range f {
		n, ok := catalog.AsInt(raw[i])
		if !ok {
			return fmt.Errorf("%w: link field %d is %v", exception.ErrInvalidDocument, i, raw[i])
		}
		f[i] = int64(n)
	}
	id, from, fromSlot, to, toSlot := f[0], f[1], int(f[2]), f[3], int(f[4])

	for _, l := range d.links {
		if l.ID == id {
			return fmt.Errorf("%w: duplicate link id %d", exception.ErrInvalidDocument, id)
		}
	}
	t, err := d.checkEndpoints(from, fromSlot, to, toSlot)
	if err != nil {
		return err
	}
	if len(raw) > 5 {
		if s, ok := raw[5].(string); ok {
			declared, known := models.ParsePortType(s)
			if !known || declared != t {
				return fmt.Errorf("%w: link %d declared %q, ports carry %s", exception.ErrIncompatibleType, id, s, t)
			}
		}
	}
	if l := d.incoming(to, toSlot); l != nil {
		return fmt.Errorf("%w: node %d slot %d has links %d and %d", exception.ErrPortOccupied, to, toSlot, l.ID, id)
	}

	d.links = append(d.links, &models.Link{ID: id, FromNode: from, FromSlot: fromSlot, ToNode: to, ToSlot: toSlot, Type: t})
	d.lastLinkID = max(d.lastLinkID, id)
	return nil
}

// vec2 принимает [x, y] и объектную форму {"0": x, "1": y} старых сохранений.
func vec2(v any) ([2]float64, error) {
	var out [2]float64
	switch p := v.(type) {
	case nil:
		return out, nil
	case []any:
		if len(p) < 2 {
			return out, fmt.Errorf("%w: expected 2 components", exception.ErrInvalidDocument)
		}
		for i := 0; i < 2; i++ {
			f, ok := catalog.AsFloat(p[i])
			if !ok {
				return out, fmt.Errorf("%w: component %v", exception.ErrInvalidDocument, p[i])
			}
			out[i] = f
		}
	case map[string]any:
		for i, k := range []string{"0", "1"} {
			f, ok := catalog.AsFloat(p[k])
			if !ok {
				return out, fmt.Errorf("%w: component %q", exception.ErrInvalidDocument, k)
			}
			out[i] = f
		}
	default:
		return out, fmt.Errorf("%w: unexpected %T", exception.ErrInvalidDocument, v)
	}
	return out, nil
}
