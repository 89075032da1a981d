package catalog

import "pve_client/internal/models"

// Builtin собирает свежий реестр со всем встроенным каталогом.
// Вызывается один раз на старте, дальше экземпляр передаётся явно.
func Builtin() *Registry {
	r := NewRegistry()
	r.MustRegister(dataNodes()...)
	r.MustRegister(valueNodes()...)
	r.MustRegister(mathNodes()...)
	r.MustRegister(compareNodes()...)
	r.MustRegister(logicNodes()...)
	r.MustRegister(toolNodes()...)
	r.MustRegister(tradeNodes()...)
	r.MustRegister(indicatorNodes()...)
	r.MustRegister(backtestNodes()...)
	r.MustRegister(telegramNodes()...)
	return r
}

func port(name string, t models.PortType) models.PortSpec {
	return models.PortSpec{Name: name, Type: t}
}

func ports(specs ...models.PortSpec) []models.PortSpec { return specs }

func bound(f float64) *float64 { return &f }

func numberWidget(step float64, precision int) *models.WidgetSpec {
	return &models.WidgetSpec{Kind: models.WidgetNumber, Step: step, Precision: precision}
}

func rangeWidget(min, max, step float64, precision int) *models.WidgetSpec {
	w := numberWidget(step, precision)
	w.Min, w.Max = bound(min), bound(max)
	return w
}

func textWidget() *models.WidgetSpec   { return &models.WidgetSpec{Kind: models.WidgetText} }
func toggleWidget() *models.WidgetSpec { return &models.WidgetSpec{Kind: models.WidgetToggle} }

func comboWidget(values ...string) *models.WidgetSpec {
	return &models.WidgetSpec{Kind: models.WidgetCombo, Values: values}
}
