// Package catalog держит каталог видов нод и их типизированные схемы портов.
package catalog

import (
	"fmt"
	"sync"

	"pve_client/internal/models"
	"pve_client/pkg/exception"
)

// Registry — явный экземпляр каталога. Повторная регистрация id отклоняется.
type Registry struct {
	mu    sync.RWMutex
	types map[string]models.NodeType
	order []string
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]models.NodeType)}
}

// Register добавляет вид ноды. Дубликат id → exception.ErrDuplicateType.
func (r *Registry) Register(t models.NodeType) error {
	if err := validateType(t); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.types[t.ID]; ok {
		return fmt.Errorf("%w: %s", exception.ErrDuplicateType, t.ID)
	}
	r.types[t.ID] = cloneType(t)
	r.order = append(r.order, t.ID)
	return nil
}

// MustRegister для статической сборки каталога.
func (r *Registry) MustRegister(types ...models.NodeType) {
	for _, t := range types {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Resolve(id string) (models.NodeType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[id]
	if !ok {
		return models.NodeType{}, fmt.Errorf("%w: %s", exception.ErrUnknownNodeType, id)
	}
	return cloneType(t), nil
}

// List — в порядке регистрации.
func (r *Registry) List() []models.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.NodeType, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, cloneType(r.types[id]))
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func validateType(t models.NodeType) error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", exception.ErrInvalidNodeType, t.ID, fmt.Sprintf(format, args...))
	}

	if t.ID == "" {
		return fmt.Errorf("%w: empty id", exception.ErrInvalidNodeType)
	}
	for _, p := range t.Inputs {
		if !p.Type.Valid() {
			return bad("input %q has unknown type %q", p.Name, p.Type)
		}
	}
	for _, p := range t.Outputs {
		if !p.Type.Valid() {
			return bad("output %q has unknown type %q", p.Name, p.Type)
		}
	}

	seen := make(map[string]struct{}, len(t.Properties))
	for _, p := range t.Properties {
		if p.Name == "" {
			return bad("property without name")
		}
		if _, dup := seen[p.Name]; dup {
			return bad("property %q declared twice", p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Widget != nil {
			if err := CheckValue(*p.Widget, p.Default); err != nil {
				return bad("default of %q: %v", p.Name, err)
			}
		}
	}

	if v := t.Variadic; v != nil {
		if !v.Type.Valid() {
			return bad("variadic type %q", v.Type)
		}
		if v.Min < 0 || v.Max < v.Min {
			return bad("variadic bounds [%d,%d]", v.Min, v.Max)
		}
		prop, ok := t.Property(v.Property)
		if !ok {
			return bad("variadic count property %q not declared", v.Property)
		}
		n, ok := AsInt(prop.Default)
		if !ok || n < v.Min || n > v.Max {
			return bad("variadic default count %v out of bounds", prop.Default)
		}
	}
	return nil
}

func cloneType(t models.NodeType) models.NodeType {
	out := t
	out.Inputs = append([]models.PortSpec(nil), t.Inputs...)
	out.Outputs = append([]models.PortSpec(nil), t.Outputs...)
	out.Properties = append([]models.PropertySpec(nil), t.Properties...)
	for i, p := range out.Properties {
		if p.Widget != nil {
			out.Properties[i].Widget = cloneWidget(*p.Widget)
		}
	}
	if t.Variadic != nil {
		v := *t.Variadic
		out.Variadic = &v
	}
	return out
}

func cloneWidget(w models.WidgetSpec) *models.WidgetSpec {
	if w.Min != nil {
		v := *w.Min
		w.Min = &v
	}
	if w.Max != nil {
		v := *w.Max
		w.Max = &v
	}
	w.Values = append([]string(nil), w.Values...)
	return &w
}
