package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pve_client/internal/models"
	"pve_client/pkg/exception"
)

func TestDecodeFrame(t *testing.T) {
	f, err := decodeFrame([]byte(`0{"sid":"abc","pingInterval":25000,"pingTimeout":20000}`))
	require.NoError(t, err)
	assert.Equal(t, byte(eioOpen), f.eio)
	hs, err := decodeHandshake(f.data)
	require.NoError(t, err)
	assert.Equal(t, "abc", hs.SID)
	assert.Equal(t, 45*time.Second, hs.deadline())

	f, err = decodeFrame([]byte("2"))
	require.NoError(t, err)
	assert.Equal(t, byte(eioPing), f.eio)

	f, err = decodeFrame([]byte(`40{"sid":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, byte(sioConnect), f.sio)

	f, err = decodeFrame([]byte(`42/admin,["log_message",{"message":"hi"}]`))
	require.NoError(t, err)
	assert.Equal(t, "/admin", f.ns)
	name, payload, err := decodeEvent(f.data)
	require.NoError(t, err)
	assert.Equal(t, "log_message", name)
	assert.JSONEq(t, `{"message":"hi"}`, string(payload))

	f, err = decodeFrame([]byte(`4217["update_chart",{}]`))
	require.NoError(t, err)
	name, _, err = decodeEvent(f.data)
	require.NoError(t, err)
	assert.Equal(t, "update_chart", name)

	f, err = decodeFrame([]byte(`44{"message":"Invalid token"}`))
	require.NoError(t, err)
	assert.Equal(t, byte(sioConnectError), f.sio)
	assert.Equal(t, "Invalid token", connectErrorMessage(f.data))
	assert.Equal(t, "connection rejected by server", connectErrorMessage(nil))

	for _, bad := range []string{"", "4", "9abc"} {
		_, err := decodeFrame([]byte(bad))
		require.ErrorIs(t, err, exception.ErrProtocol, "frame %q", bad)
	}

	_, err = decodeHandshake([]byte(`{"pingInterval":1}`))
	require.ErrorIs(t, err, exception.ErrProtocol)
	_, _, err = decodeEvent([]byte(`[]`))
	require.ErrorIs(t, err, exception.ErrProtocol)
}

func TestEncodeConnect(t *testing.T) {
	assert.Equal(t, "40", string(encodeConnect("")))
	assert.Equal(t, "40/admin,", string(encodeConnect("/admin")))
}

func TestDecodeChartUpdate(t *testing.T) {
	d := newEventDecoder()

	ev, err := d.decode("update_chart", []byte(`{
		"status":"success",
		"data":[{"time":1,"close":10.5},{"time":2,"close":11}],
		"precision":2.0,
		"minMove":0.01,
		"orders":[{"id":"o1","direction":true,"price":"10.5","quantity":1,"status":"filled","time_created":"t0"}]
	}`))
	require.NoError(t, err)
	require.Equal(t, models.EventChartUpdate, ev.Kind)
	require.NotNil(t, ev.Chart)
	assert.True(t, ev.Chart.Success())
	assert.Len(t, ev.Chart.Data, 2)
	assert.Equal(t, 2, ev.Chart.Precision)
	assert.InDelta(t, 0.01, ev.Chart.MinMove, 1e-12)
	require.True(t, ev.Chart.OrdersValid)
	require.Len(t, ev.Chart.Orders, 1)
	assert.InDelta(t, 10.5, ev.Chart.Orders[0].Price, 1e-12)
	assert.Nil(t, ev.Chart.Orders[0].TimeExecuted)

	ev, err = d.decode("update_chart", []byte(`{"status":"success","data":[],"orders":"oops"}`))
	require.NoError(t, err)
	assert.False(t, ev.Chart.OrdersValid)

	_, err = d.decode("update_chart", []byte(`{"status":"weird"}`))
	require.ErrorIs(t, err, exception.ErrParse)
}

func TestDecodeProgress(t *testing.T) {
	d := newEventDecoder()

	ev, err := d.decode("compilation_progress", []byte(`{"status":"progress","progress":40.0,"stage":"indicators","graph_name":"alpha"}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Progress)
	assert.Equal(t, models.ProgressRunning, ev.Progress.Status)
	assert.Equal(t, 40, ev.Progress.Progress)
	assert.Equal(t, "alpha", ev.Progress.GraphName)

	_, err = d.decode("compilation_progress", []byte(`{"status":"progress","progress":140,"graph_name":"alpha"}`))
	require.ErrorIs(t, err, exception.ErrParse)
	_, err = d.decode("compilation_progress", []byte(`{"status":"done","graph_name":"alpha"}`))
	require.ErrorIs(t, err, exception.ErrParse)
	_, err = d.decode("compilation_progress", []byte(`{"status":"progress"}`))
	require.ErrorIs(t, err, exception.ErrParse)

	ev, err = d.decode("analyzer_progress", []byte(`{"status":"completed","progress":100,"backtest_id":"17"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(17), ev.Analyzer.BacktestID)

	_, err = d.decode("something_else", []byte(`{}`))
	require.ErrorIs(t, err, exception.ErrParse)
}

func TestDecodeLogMessage(t *testing.T) {
	ev, err := newEventDecoder().decode("log_message", []byte(`{"message":"2024-11-06 17:19:55,657 - app.nodes - INFO - Starting"}`))
	require.NoError(t, err)
	assert.Equal(t, models.EventLogMessage, ev.Kind)
	assert.Contains(t, ev.Log.Message, "Starting")
}
