package catalog

import "pve_client/internal/models"

func tradeNodes() []models.NodeType {
	position := func(id, title string) models.NodeType {
		return models.NodeType{
			ID:    id,
			Title: title,
			Outputs: ports(
				port("Price", models.PortFloat),
				port("Quantity", models.PortFloat),
				port("Created", models.PortInteger),
			),
		}
	}
	return []models.NodeType{
		{
			ID:    "trade/create_order",
			Title: "Create Order",
			Inputs: ports(
				port("Exec", models.PortExec),
				port("Long/Short", models.PortBool),
				port("Limit/Market", models.PortBool),
				port("Price", models.PortFloat),
				port("Quantity", models.PortFloat),
			),
			Outputs:     ports(port("Exec", models.PortExec), port("ID", models.PortString)),
			Description: "direction: true long / false short; type: true limit / false market",
		},
		{
			ID:    "trade/create_conditional_order",
			Title: "Create Conditional Order",
			Inputs: ports(
				port("Exec", models.PortExec),
				port("Long/Short", models.PortBool),
				port("Trigger Price", models.PortFloat),
				port("Quantity", models.PortFloat),
			),
			Outputs:     ports(port("Exec", models.PortExec), port("ID", models.PortString)),
			Description: "Always market order",
		},
		{
			ID:      "trade/cancel_order",
			Title:   "Cancel Order",
			Inputs:  ports(port("Exec", models.PortExec), port("ID", models.PortString)),
			Outputs: ports(port("Exec", models.PortExec)),
		},
		{
			ID:      "trade/cancel_all_order",
			Title:   "Cancel All",
			Inputs:  ports(port("Exec", models.PortExec)),
			Outputs: ports(port("Exec", models.PortExec)),
		},
		{
			ID:    "trade/modify_order",
			Title: "Modify Order",
			Inputs: ports(
				port("Exec", models.PortExec),
				port("ID", models.PortString),
				port("Price", models.PortFloat),
				port("Quantity", models.PortFloat),
			),
			Outputs: ports(port("Exec", models.PortExec), port("ID", models.PortString)),
		},
		{
			ID:      "trade/save_order",
			Title:   "Save Order",
			Inputs:  ports(port("Exec", models.PortExec), port("Order", models.PortObject)),
			Outputs: ports(port("Exec", models.PortExec), port("ID", models.PortString)),
		},
		{
			ID:     "trade/get_order",
			Title:  "Get Order",
			Inputs: ports(port("ID", models.PortString)),
			Outputs: ports(
				port("ID", models.PortString),
				port("Price", models.PortFloat),
				port("Quantity", models.PortFloat),
				port("Created", models.PortFloat),
				port("Executed?", models.PortBool),
				port("Open?", models.PortBool),
			),
		},
		position("trade/get_position", "Get Position"),
		position("trade/get_long_position", "Get Long Position"),
		position("trade/get_short_position", "Get Short Position"),
		{
			ID:    "trade/get_last_order",
			Title: "Get Last Order",
			Outputs: ports(
				port("Exists?", models.PortBool),
				port("ID", models.PortString),
				port("Long/Short", models.PortBool),
				port("Normal/Conditional", models.PortBool),
				port("Cancelled", models.PortBool),
			),
		},
		{
			ID:      "trade/is_none",
			Title:   "Is None",
			Inputs:  ports(port("Value", models.PortObject)),
			Outputs: ports(port("None?", models.PortBool)),
		},
	}
}

func backtestNodes() []models.NodeType {
	return []models.NodeType{
		{
			ID:    "backtest/simple_backtest",
			Title: "Simple Backtest",
			Inputs: ports(
				port("Signals", models.PortBool),
				port("Profit target", models.PortFloat),
				port("Candles to close", models.PortInteger),
				port("First order size", models.PortInteger),
			),
		},
	}
}

func telegramNodes() []models.NodeType {
	return []models.NodeType{
		{
			ID:    "telegram/send_message",
			Title: "Send Message",
			Inputs: ports(
				port("Exec", models.PortExec),
				port("Message", models.PortString),
				port("UserID", models.PortInteger),
			),
			Outputs: ports(port("Exec", models.PortExec)),
		},
	}
}
