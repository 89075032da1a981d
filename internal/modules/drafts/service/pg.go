package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"

	"pve_client/internal/models"
	"pve_client/pkg/db"
	"pve_client/pkg/exception"
)

const schema = `
CREATE TABLE IF NOT EXISTS graph_drafts (
	owner      TEXT        NOT NULL,
	name       TEXT        NOT NULL,
	data       BYTEA       NOT NULL,
	metadata   JSONB       NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (owner, name)
)`

const (
	upsertDraft = `
INSERT INTO graph_drafts (owner, name, data, metadata, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (owner, name) DO UPDATE
SET data = EXCLUDED.data, metadata = EXCLUDED.metadata, updated_at = EXCLUDED.updated_at`

	selectDraft = `
SELECT data, metadata, updated_at FROM graph_drafts WHERE owner = $1 AND name = $2`

	listDrafts = `
SELECT name, metadata, updated_at FROM graph_drafts WHERE owner = $1
ORDER BY updated_at DESC, name`

	deleteDraft = `DELETE FROM graph_drafts WHERE owner = $1 AND name = $2`
)

// PG — черновики в таблице graph_drafts.
type PG struct {
	db  db.TxManager
	now func() time.Time
}

func NewPG(tx db.TxManager) *PG {
	return &PG{db: tx, now: time.Now}
}

// Migrate создаёт таблицу, если её нет.
func (p *PG) Migrate(ctx context.Context) error {
	if _, err := p.db.Conn().Exec(ctx, schema); err != nil {
		return fmt.Errorf("pg.Migrate: %w", err)
	}
	return nil
}

func (p *PG) Save(ctx context.Context, d models.Draft) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.SaveDraft: %w", err)
		}
	}()
	if err = checkKey(d.Owner, d.Name); err != nil {
		return err
	}

	meta, err := sonic.Marshal(d.Metadata)
	if err != nil {
		return err
	}
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, upsertDraft, d.Owner, d.Name, d.Data, meta, p.now().UTC())
		return err
	})
}

func (p *PG) Get(ctx context.Context, owner, name string) (d models.Draft, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.GetDraft: %w", err)
		}
	}()

	var meta []byte
	d = models.Draft{Owner: owner, Name: name}
	err = p.db.Conn().QueryRow(ctx, selectDraft, owner, name).Scan(&d.Data, &meta, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Draft{}, fmt.Errorf("draft %q: %w", name, exception.ErrNotFound)
	}
	if err != nil {
		return models.Draft{}, err
	}
	if err = decodeMeta(meta, &d.Metadata); err != nil {
		return models.Draft{}, err
	}
	return d, nil
}

func (p *PG) List(ctx context.Context, owner string) (out []models.Draft, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.ListDrafts: %w", err)
		}
	}()

	rows, err := p.db.Conn().Query(ctx, listDrafts, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		d := models.Draft{Owner: owner}
		var meta []byte
		if err = rows.Scan(&d.Name, &meta, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if err = decodeMeta(meta, &d.Metadata); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *PG) Delete(ctx context.Context, owner, name string) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.DeleteDraft: %w", err)
		}
	}()

	tag, err := p.db.Conn().Exec(ctx, deleteDraft, owner, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("draft %q: %w", name, exception.ErrNotFound)
	}
	return nil
}

func decodeMeta(raw []byte, out *models.Metadata) error {
	if len(raw) == 0 {
		return nil
	}
	return sonic.Unmarshal(raw, out)
}
