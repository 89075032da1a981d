package catalog

import "pve_client/internal/models"

var maModes = []string{"dma", "ema", "hma", "rma", "sinwma", "sma", "swma", "tema", "trima", "wma", "zlma"}

func indicatorNodes() []models.NodeType {
	windowProp := func(name string) models.PropertySpec {
		return models.PropertySpec{Name: name, Default: 7.0, Widget: rangeWidget(1, 1000, 1, 0)}
	}
	return []models.NodeType{
		{
			ID:      "indicators/ema",
			Title:   "EMA",
			Inputs:  ports(port("Column", models.PortColumn), port("Window", models.PortInteger)),
			Outputs: ports(port("EMA", models.PortColumn)),
		},
		{
			ID:    "indicators/super_trend",
			Title: "SuperTrend",
			Inputs: ports(
				port("High", models.PortColumn),
				port("Low", models.PortColumn),
				port("Close", models.PortColumn),
				port("Window", models.PortInteger),
			),
			Outputs: ports(port("SuperTrend", models.PortColumn)),
		},
		{
			ID:    "indicators/true_range",
			Title: "True Range",
			Inputs: ports(
				port("High", models.PortColumn),
				port("Low", models.PortColumn),
				port("Close", models.PortColumn),
			),
			Outputs: ports(port("TrueRange", models.PortColumn)),
		},
		{
			ID:    "custom/indicators/heikin_ashi",
			Title: "Heikin Ashi",
			Inputs: ports(
				port("Open", models.PortColumn),
				port("High", models.PortColumn),
				port("Low", models.PortColumn),
				port("Close", models.PortColumn),
			),
			Outputs: ports(
				port("HA_Open", models.PortColumn),
				port("HA_High", models.PortColumn),
				port("HA_Low", models.PortColumn),
				port("HA_Close", models.PortColumn),
			),
		},
		{
			ID:      "custom/indicators/ma",
			Title:   "MA",
			Inputs:  ports(port("Close", models.PortDataframe)),
			Outputs: ports(port("ma", models.PortDataframe)),
			Properties: []models.PropertySpec{
				windowProp("Window"),
				{Name: "Mode", Default: "ema", Widget: comboWidget(maModes...)},
			},
		},
		{
			ID:         "custom/indicators/rsi",
			Title:      "RSI",
			Inputs:     ports(port("Close", models.PortDataframe)),
			Outputs:    ports(port("rsi", models.PortDataframe)),
			Properties: []models.PropertySpec{windowProp("windows")},
		},
		{
			ID:         "custom/indicators/bollinger",
			Title:      "Bollinger",
			Inputs:     ports(port("Close", models.PortDataframe)),
			Outputs:    ports(port("Lower", models.PortDataframe), port("Mid", models.PortDataframe), port("Upper", models.PortDataframe)),
			Properties: []models.PropertySpec{windowProp("windows")},
		},
	}
}
