package catalog

import "pve_client/internal/models"

func dataNodes() []models.NodeType {
	column := func(id, title, out string) models.NodeType {
		return models.NodeType{
			ID:          id,
			Title:       title,
			Description: "Series of " + out + " prices of the selected symbol",
			Outputs:     ports(port(out, models.PortColumn)),
		}
	}
	return []models.NodeType{
		column("get/open", "Get Open", "open"),
		column("get/high", "Get High", "high"),
		column("get/low", "Get Low", "low"),
		column("get/close", "Get Close", "close"),
		{
			ID:      "get/volume",
			Title:   "Get Volume",
			Outputs: ports(port("volume", models.PortColumn)),
		},
		{
			ID:      "get/last_value",
			Title:   "Get Last Value",
			Inputs:  ports(port("Column", models.PortColumn)),
			Outputs: ports(port("Value", models.PortFloat)),
		},
		{
			ID:          "custom/data/getallindicatorsnode",
			Title:       "Assemble indicators",
			Description: "Collects a variable number of indicator frames into one list",
			Outputs:     ports(port("List of indicators", models.PortObject)),
			Properties: []models.PropertySpec{
				{Name: "factor", Default: 1.0, Widget: numberWidget(1, 0)},
				{Name: "numInputs", Default: 1.0, Widget: rangeWidget(1, 16, 1, 0)},
			},
			Variadic: &models.VariadicSpec{
				Property: "numInputs",
				Prefix:   "Indicator",
				Type:     models.PortDataframe,
				Min:      1,
				Max:      16,
			},
		},
	}
}

func valueNodes() []models.NodeType {
	return []models.NodeType{
		{
			ID:         "set/float",
			Title:      "Set float",
			Outputs:    ports(port("Float", models.PortFloat)),
			Properties: []models.PropertySpec{{Name: "value", Default: 1.0, Widget: numberWidget(0.01, 3)}},
		},
		{
			ID:         "set/integer",
			Title:      "Set integer",
			Outputs:    ports(port("Integer", models.PortInteger)),
			Properties: []models.PropertySpec{{Name: "value", Default: 3.0, Widget: numberWidget(10, 0)}},
		},
		{
			ID:         "set/string",
			Title:      "Set string",
			Outputs:    ports(port("String", models.PortString)),
			Properties: []models.PropertySpec{{Name: "value", Default: "Hello!", Widget: textWidget()}},
		},
		{
			ID:         "set/bool",
			Title:      "Set bool",
			Outputs:    ports(port("Bool", models.PortBool)),
			Properties: []models.PropertySpec{{Name: "value", Default: true, Widget: toggleWidget()}},
		},
	}
}
