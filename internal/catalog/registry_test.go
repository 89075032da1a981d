package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pve_client/internal/models"
	"pve_client/pkg/exception"
)

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	nt := models.NodeType{ID: "math/x", Outputs: ports(port("Float", models.PortFloat))}

	require.NoError(t, r.Register(nt))
	err := r.Register(models.NodeType{ID: "math/x", Title: "other"})
	require.ErrorIs(t, err, exception.ErrDuplicateType)

	got, err := r.Resolve("math/x")
	require.NoError(t, err)
	assert.Empty(t, got.Title, "first registration must win")
}

func TestRegistryResolveUnknown(t *testing.T) {
	_, err := NewRegistry().Resolve("nope")
	require.ErrorIs(t, err, exception.ErrUnknownNodeType)
}

func TestRegistryListKeepsInsertionOrder(t *testing.T) {
	r := NewRegistry()
	ids := []string{"b/1", "a/2", "c/3"}
	for _, id := range ids {
		require.NoError(t, r.Register(models.NodeType{ID: id}))
	}

	var got []string
	for _, nt := range r.List() {
		got = append(got, nt.ID)
	}
	assert.Equal(t, ids, got)
}

func TestRegistryValidatesDescriptors(t *testing.T) {
	r := NewRegistry()

	err := r.Register(models.NodeType{ID: ""})
	assert.ErrorIs(t, err, exception.ErrInvalidNodeType)

	err = r.Register(models.NodeType{ID: "x/bad", Inputs: ports(port("A", "decimal"))})
	assert.ErrorIs(t, err, exception.ErrInvalidNodeType)

	err = r.Register(models.NodeType{
		ID:         "x/combo",
		Properties: []models.PropertySpec{{Name: "Mode", Default: "xxx", Widget: comboWidget("a", "b")}},
	})
	assert.ErrorIs(t, err, exception.ErrInvalidNodeType)

	err = r.Register(models.NodeType{
		ID:       "x/var",
		Variadic: &models.VariadicSpec{Property: "n", Prefix: "In", Type: models.PortFloat, Min: 1, Max: 4},
	})
	assert.ErrorIs(t, err, exception.ErrInvalidNodeType)

	assert.Zero(t, r.Len())
}

func TestRegistryReturnsCopies(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(models.NodeType{ID: "x/y", Inputs: ports(port("A", models.PortFloat))}))

	nt, err := r.Resolve("x/y")
	require.NoError(t, err)
	nt.Inputs[0].Type = models.PortBool

	again, err := r.Resolve("x/y")
	require.NoError(t, err)
	assert.Equal(t, models.PortFloat, again.Inputs[0].Type)
}

func TestRegistryReturnsWidgetCopies(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(models.NodeType{
		ID: "x/w",
		Properties: []models.PropertySpec{
			{Name: "Length", Default: 5, Widget: rangeWidget(1, 10, 1, 0)},
			{Name: "Mode", Default: "a", Widget: comboWidget("a", "b")},
		},
	}))

	nt, err := r.Resolve("x/w")
	require.NoError(t, err)
	*nt.Properties[0].Widget.Min = 100
	*nt.Properties[0].Widget.Max = -1
	nt.Properties[0].Widget.Step = 7
	nt.Properties[1].Widget.Values[0] = "zzz"

	again, err := r.Resolve("x/w")
	require.NoError(t, err)
	w := again.Properties[0].Widget
	assert.Equal(t, 1.0, *w.Min)
	assert.Equal(t, 10.0, *w.Max)
	assert.Equal(t, 1.0, w.Step)
	assert.Equal(t, []string{"a", "b"}, again.Properties[1].Widget.Values)
	assert.NoError(t, CheckValue(*again.Properties[1].Widget, "a"))
}

func TestBuiltinCatalog(t *testing.T) {
	r := Builtin()
	assert.Greater(t, r.Len(), 40)

	for _, id := range []string{
		"get/close", "set/float", "math/add_float", "compare/cross_over", "logic/if",
		"tools/add_signal", "trade/create_order", "indicators/ema", "custom/indicators/ma",
		"backtest/simple_backtest", "telegram/send_message", "custom/data/getallindicatorsnode",
	} {
		_, err := r.Resolve(id)
		assert.NoError(t, err, id)
	}

	ma, err := r.Resolve("custom/indicators/ma")
	require.NoError(t, err)
	assert.Equal(t, "custom/indicators", ma.Category())
	assert.Equal(t, map[string]any{"Window": 7.0, "Mode": "ema"}, ma.Defaults())

	asm, err := r.Resolve("custom/data/getallindicatorsnode")
	require.NoError(t, err)
	require.NotNil(t, asm.Variadic)
	in := asm.InputPorts(3)
	require.Len(t, in, 3)
	assert.Equal(t, "Indicator", in[0].Name)
	assert.Equal(t, "Indicator 3", in[2].Name)
	assert.Equal(t, models.PortDataframe, in[1].Type)

	// каждый вызов даёт независимый экземпляр
	assert.NotSame(t, r, Builtin())
}

func TestCheckValue(t *testing.T) {
	intW := *numberWidget(10, 0)
	floatW := *rangeWidget(0, 1, 0.01, 3)

	assert.NoError(t, CheckValue(intW, 30.0))
	assert.NoError(t, CheckValue(intW, 30))
	assert.ErrorIs(t, CheckValue(intW, 1.5), exception.ErrInvalidProperty)
	assert.ErrorIs(t, CheckValue(intW, "30"), exception.ErrInvalidProperty)

	assert.NoError(t, CheckValue(floatW, 0.5))
	assert.ErrorIs(t, CheckValue(floatW, 1.5), exception.ErrInvalidProperty)
	assert.ErrorIs(t, CheckValue(floatW, -0.1), exception.ErrInvalidProperty)

	assert.NoError(t, CheckValue(*toggleWidget(), false))
	assert.ErrorIs(t, CheckValue(*toggleWidget(), 1), exception.ErrInvalidProperty)
	assert.NoError(t, CheckValue(*textWidget(), ""))
	assert.ErrorIs(t, CheckValue(*comboWidget(maModes...), "nope"), exception.ErrInvalidProperty)
	assert.NoError(t, CheckValue(*comboWidget(maModes...), "sma"))
}
