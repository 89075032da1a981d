package catalog

import "pve_client/internal/models"

func toolNodes() []models.NodeType {
	named := func(id, title, in string, t models.PortType) models.NodeType {
		return models.NodeType{
			ID:     id,
			Title:  title,
			Inputs: ports(port(in, t), port("Name", models.PortString)),
		}
	}
	return []models.NodeType{
		named("tools/add_column", "Add column", "Column", models.PortColumn),
		named("tools/add_condition", "Add condition", "Condition", models.PortBool),
		named("tools/add_signal", "Add Signal", "Signal", models.PortBool),
		named("tools/add_indicator", "Add Indicator", "Indicator", models.PortFloat),
		{
			ID:      "tools/get_column",
			Title:   "Get column",
			Inputs:  ports(port("Name", models.PortString)),
			Outputs: ports(port("Column", models.PortColumn)),
		},
		{
			ID:      "tools/get_condition",
			Title:   "Get condition",
			Inputs:  ports(port("Name", models.PortString)),
			Outputs: ports(port("Condition", models.PortBool)),
		},
	}
}
