package catalog

import "pve_client/internal/models"

func mathNodes() []models.NodeType {
	binary := func(id, title string) models.NodeType {
		return models.NodeType{
			ID:      id,
			Title:   title,
			Inputs:  ports(port("Float", models.PortFloat), port("Float", models.PortFloat)),
			Outputs: ports(port("Float", models.PortFloat)),
		}
	}
	window := func(id, title string) models.NodeType {
		return models.NodeType{
			ID:      id,
			Title:   title,
			Inputs:  ports(port("Float", models.PortFloat), port("Length", models.PortInteger)),
			Outputs: ports(port("Float", models.PortFloat)),
		}
	}
	return []models.NodeType{
		binary("math/add_float", "Add"),
		binary("math/subtract_float", "Subtract"),
		binary("math/multiply_float", "Multiply"),
		binary("math/divide_float", "Divide"),
		{
			ID:      "math/clip_float",
			Title:   "Clip",
			Inputs:  ports(port("Min", models.PortFloat), port("Max", models.PortFloat), port("Value", models.PortFloat)),
			Outputs: ports(port("Float", models.PortFloat)),
		},
		window("math/highest", "Highest"),
		window("math/lowest", "Lowest"),
		{
			ID:      "math/multiply_column",
			Title:   "Multiply column",
			Inputs:  ports(port("Column", models.PortColumn), port("Coefficient", models.PortFloat)),
			Outputs: ports(port("Result", models.PortColumn)),
		},
		{
			ID:      "math/subtract_column",
			Title:   "Subtract column",
			Inputs:  ports(port("Column", models.PortColumn), port("Column", models.PortColumn)),
			Outputs: ports(port("Result", models.PortColumn)),
		},
	}
}

func compareNodes() []models.NodeType {
	columns := func(id, title string) models.NodeType {
		return models.NodeType{
			ID:      id,
			Title:   title,
			Inputs:  ports(port("Column", models.PortColumn), port("Column", models.PortColumn)),
			Outputs: ports(port("Condition", models.PortBool)),
		}
	}
	return []models.NodeType{
		{
			ID:      "compare/greater",
			Title:   "Greater",
			Inputs:  ports(port("Float", models.PortFloat), port("Float", models.PortFloat)),
			Outputs: ports(port("Bool", models.PortBool)),
		},
		columns("compare/smaller", "Smaller"),
		columns("compare/equal", "Equal"),
		columns("compare/cross_over", "Cross Over"),
		{
			ID:      "compare/cross_under",
			Title:   "Cross Under",
			Inputs:  ports(port("Float", models.PortFloat), port("Float", models.PortFloat)),
			Outputs: ports(port("Condition", models.PortBool)),
		},
	}
}

func logicNodes() []models.NodeType {
	gate := func(id, title string) models.NodeType {
		return models.NodeType{
			ID:      id,
			Title:   title,
			Inputs:  ports(port("Bool", models.PortBool), port("Bool", models.PortBool)),
			Outputs: ports(port("Bool", models.PortBool)),
		}
	}
	return []models.NodeType{
		gate("logic/and", "AND"),
		gate("logic/or", "OR"),
		{
			ID:      "logic/not",
			Title:   "NOT",
			Inputs:  ports(port("Bool", models.PortBool)),
			Outputs: ports(port("Bool", models.PortBool)),
		},
		{
			ID:      "logic/if",
			Title:   "IF",
			Inputs:  ports(port("Bool", models.PortBool)),
			Outputs: ports(port("True", models.PortExec), port("False", models.PortExec)),
		},
	}
}
