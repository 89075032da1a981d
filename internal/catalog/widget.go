package catalog

import (
	"fmt"
	"math"
	"slices"

	"pve_client/internal/models"
	"pve_client/pkg/exception"
)

// CheckValue проверяет значение против виджета. Без приведения типов и без клампа.
func CheckValue(w models.WidgetSpec, v any) error {
	switch w.Kind {
	case models.WidgetNumber:
		f, ok := AsFloat(v)
		if !ok {
			return fmt.Errorf("%w: expected number, got %T", exception.ErrInvalidProperty, v)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite number", exception.ErrInvalidProperty)
		}
		if w.Precision == 0 && f != math.Trunc(f) {
			return fmt.Errorf("%w: expected integer, got %v", exception.ErrInvalidProperty, f)
		}
		if w.Min != nil && f < *w.Min {
			return fmt.Errorf("%w: %v below minimum %v", exception.ErrInvalidProperty, f, *w.Min)
		}
		if w.Max != nil && f > *w.Max {
			return fmt.Errorf("%w: %v above maximum %v", exception.ErrInvalidProperty, f, *w.Max)
		}
	case models.WidgetText:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: expected string, got %T", exception.ErrInvalidProperty, v)
		}
	case models.WidgetToggle:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%w: expected bool, got %T", exception.ErrInvalidProperty, v)
		}
	case models.WidgetCombo:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: expected string, got %T", exception.ErrInvalidProperty, v)
		}
		if !slices.Contains(w.Values, s) {
			return fmt.Errorf("%w: %q is not one of %v", exception.ErrInvalidProperty, s, w.Values)
		}
	default:
		return fmt.Errorf("%w: unknown widget kind %q", exception.ErrInvalidProperty, w.Kind)
	}
	return nil
}

// AsFloat принимает только числовые Go-типы; строки не парсятся.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func AsInt(v any) (int, bool) {
	f, ok := AsFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
