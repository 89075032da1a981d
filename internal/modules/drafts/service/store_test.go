package service

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pve_client/internal/models"
	"pve_client/pkg/db"
	"pve_client/pkg/exception"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2024, 11, 6, 12, 0, 0, 0, time.UTC)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	data := []byte(`{"nodes":[]}`)
	require.NoError(t, m.Save(ctx, models.Draft{Owner: "42", Name: "alpha", Data: data, Metadata: models.Metadata{Symbol: "BTCUSDT"}}))
	require.NoError(t, m.Save(ctx, models.Draft{Owner: "42", Name: "beta", Data: []byte(`{}`)}))
	require.NoError(t, m.Save(ctx, models.Draft{Owner: "7", Name: "alpha", Data: []byte(`{}`)}))

	// входной буфер можно менять после Save
	data[0] = 'X'
	d, err := m.Get(ctx, "42", "alpha")
	require.NoError(t, err)
	assert.Equal(t, `{"nodes":[]}`, string(d.Data))
	assert.Equal(t, "BTCUSDT", d.Metadata.Symbol)

	list, err := m.List(ctx, "42")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "beta", list[0].Name)
	assert.Nil(t, list[0].Data)

	// перезапись поднимает черновик наверх
	require.NoError(t, m.Save(ctx, models.Draft{Owner: "42", Name: "alpha", Data: []byte(`{"v":2}`)}))
	list, err = m.List(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "alpha", list[0].Name)

	require.NoError(t, m.Delete(ctx, "42", "alpha"))
	_, err = m.Get(ctx, "42", "alpha")
	require.ErrorIs(t, err, exception.ErrNotFound)
	require.ErrorIs(t, m.Delete(ctx, "42", "alpha"), exception.ErrNotFound)

	require.Error(t, m.Save(ctx, models.Draft{Owner: "42", Name: "  "}))
}

type fakeRow struct {
	err  error
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return r.scan(dest...)
}

type fakeTx struct {
	execSQL  []string
	execArgs [][]any
	tag      pgconn.CommandTag
	row      fakeRow
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return f.tag, nil
}

func (f *fakeTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, pgx.ErrTxClosed
}

func (f *fakeTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return f.row
}

type fakeManager struct{ tx *fakeTx }

func (m fakeManager) RunMaster(ctx context.Context, fn func(context.Context, db.Transaction) error) error {
	return fn(ctx, m.tx)
}

func (m fakeManager) RunRepeatableRead(ctx context.Context, fn func(context.Context, db.Transaction) error) error {
	return fn(ctx, m.tx)
}

func (m fakeManager) Conn() db.Transaction { return m.tx }

func TestPGSave(t *testing.T) {
	tx := &fakeTx{}
	p := NewPG(fakeManager{tx: tx})
	at := time.Date(2024, 11, 6, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	require.NoError(t, p.Migrate(context.Background()))
	require.NoError(t, p.Save(context.Background(), models.Draft{
		Owner: "42", Name: "alpha", Data: []byte(`{}`), Metadata: models.Metadata{Symbol: "ETHUSDT"},
	}))

	require.Len(t, tx.execSQL, 2)
	assert.Contains(t, tx.execSQL[0], "CREATE TABLE IF NOT EXISTS graph_drafts")
	assert.Contains(t, tx.execSQL[1], "ON CONFLICT (owner, name)")
	args := tx.execArgs[1]
	require.Len(t, args, 5)
	assert.Equal(t, "42", args[0])
	assert.Equal(t, "alpha", args[1])
	assert.JSONEq(t, `{"symbol":"ETHUSDT"}`, string(args[3].([]byte)))
	assert.Equal(t, at, args[4])

	err := p.Save(context.Background(), models.Draft{Name: "alpha"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pg.SaveDraft")
}

func TestPGGetAndDelete(t *testing.T) {
	tx := &fakeTx{row: fakeRow{err: pgx.ErrNoRows}, tag: pgconn.NewCommandTag("DELETE 0")}
	p := NewPG(fakeManager{tx: tx})

	_, err := p.Get(context.Background(), "42", "ghost")
	require.ErrorIs(t, err, exception.ErrNotFound)

	err = p.Delete(context.Background(), "42", "ghost")
	require.ErrorIs(t, err, exception.ErrNotFound)

	at := time.Date(2024, 11, 6, 12, 0, 0, 0, time.UTC)
	tx.row = fakeRow{scan: func(dest ...any) error {
		*dest[0].(*[]byte) = []byte(`{"nodes":[]}`)
		*dest[1].(*[]byte) = []byte(`{"symbol":"BTCUSDT","timeframe":"1h"}`)
		*dest[2].(*time.Time) = at
		return nil
	}}
	d, err := p.Get(context.Background(), "42", "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", d.Name)
	assert.Equal(t, "1h", d.Metadata.Timeframe)
	assert.Equal(t, at, d.UpdatedAt)

	tx.tag = pgconn.NewCommandTag("DELETE 1")
	require.NoError(t, p.Delete(context.Background(), "42", "alpha"))
}
