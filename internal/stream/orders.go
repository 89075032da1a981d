package stream

import (
	"fmt"

	"github.com/spf13/cast"

	"pve_client/internal/models"
	"pve_client/pkg/exception"
)

// DecodeOrders разбирает снапшот ордеров из сырого JSON-значения.
// Не массив → exception.ErrParse; вызывающий оставляет прежний список.
func DecodeOrders(v any) ([]models.Order, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: orders must be an array, got %T", exception.ErrParse, v)
	}

	out := make([]models.Order, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: order #%d is %T", exception.ErrParse, i, item)
		}
		out = append(out, decodeOrder(m))
	}
	return out, nil
}

func decodeOrder(m map[string]any) models.Order {
	return models.Order{
		ID:            cast.ToString(m["id"]),
		Direction:     cast.ToBool(m["direction"]),
		Type:          cast.ToString(m["type"]),
		OrderCategory: cast.ToString(m["order_category"]),
		Price:         cast.ToFloat64(m["price"]),
		Quantity:      cast.ToFloat64(m["quantity"]),
		Status:        cast.ToString(m["status"]),
		TimeCreated:   cast.ToString(m["time_created"]),
		TimeExecuted:  optString(m["time_executed"]),
		TimeCancelled: optString(m["time_cancelled"]),
	}
}

func optString(v any) *string {
	if v == nil {
		return nil
	}
	s := cast.ToString(v)
	if s == "" {
		return nil
	}
	return &s
}
