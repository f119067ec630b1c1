package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	ordererrors "github.com/ordertrack/ordertrack/internal/errors"
	"github.com/ordertrack/ordertrack/internal/order"
	"github.com/ordertrack/ordertrack/internal/status"
)

// PgStore implements OrderStore on PostgreSQL. Totals and item counts
// are derived from the item rows on every read, never stored. Sequences
// back the order and item identifiers, so a deleted ID is never reused.
type PgStore struct {
	db     *pgxpool.Pool
	engine *status.Engine
	onePer bool
}

// NewPgStore creates a new OrderStore instance backed by a PostgreSQL
// connection pool.
func NewPgStore(dbp *pgxpool.Pool, engine *status.Engine, onePerOwner bool) *PgStore {
	return &PgStore{
		db:     dbp,
		engine: engine,
		onePer: onePerOwner,
	}
}

func (p *PgStore) Create(ctx context.Context, owner string) (*order.Order, error) {
	var created *order.Order

	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		if p.onePer {
			var exists bool
			err := tx.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM orders WHERE owner_ref = $1)`, owner).Scan(&exists)
			if err != nil {
				return ordererrors.ErrCreateOrder
			}
			if exists {
				return ordererrors.ErrOwnerConflict
			}
		}

		now := time.Now().UTC()
		var id int64
		err := tx.QueryRow(ctx,
			`INSERT INTO orders (owner_ref, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $3) RETURNING id`,
			owner, string(order.StatusPending), now).Scan(&id)
		if err != nil {
			return ordererrors.ErrCreateOrder
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO order_status_history (order_id, status, changed_at) VALUES ($1, $2, $3)`,
			id, string(order.StatusPending), now); err != nil {
			return ordererrors.ErrCreateOrder
		}

		var loadErr error
		created, loadErr = p.load(ctx, tx, id)
		return loadErr
	})

	if txErr != nil {
		return nil, txErr
	}
	return created, nil
}

func (p *PgStore) Get(ctx context.Context, id int64) (*order.Order, error) {
	var found *order.Order
	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		found, err = p.load(ctx, tx, id)
		return err
	})
	if txErr != nil {
		return nil, txErr
	}
	return found, nil
}

func (p *PgStore) GetByOwner(ctx context.Context, owner string) (*order.Order, error) {
	var found *order.Order
	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx,
			`SELECT id FROM orders WHERE owner_ref = $1 ORDER BY id LIMIT 1`, owner).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ordererrors.ErrOrderNotFound
			}
			return ordererrors.ErrFailedToFindOrder
		}
		found, err = p.load(ctx, tx, id)
		return err
	})
	if txErr != nil {
		return nil, txErr
	}
	return found, nil
}

func (p *PgStore) List(ctx context.Context) ([]order.Order, error) {
	var list []order.Order
	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT id FROM orders ORDER BY id`)
		if err != nil {
			return ordererrors.ErrFailedToFindOrder
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return ordererrors.ErrFailedToFindOrder
		}
		list = make([]order.Order, 0, len(ids))
		for _, id := range ids {
			o, err := p.load(ctx, tx, id)
			if err != nil {
				return err
			}
			list = append(list, *o)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return list, nil
}

func (p *PgStore) AddItem(ctx context.Context, id int64, item NewItem) (*order.Order, error) {
	if item.Quantity < 1 || item.UnitPrice <= 0 {
		return nil, ordererrors.ErrInvalidQuantity
	}

	var updated *order.Order
	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		if err := p.lockOrder(ctx, tx, id); err != nil {
			return err
		}
		// Same product reference merges by summing quantities.
		if _, err := tx.Exec(ctx,
			`INSERT INTO order_items (order_id, product_ref, name, quantity, unit_price)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (order_id, product_ref)
			 DO UPDATE SET quantity = order_items.quantity + EXCLUDED.quantity`,
			id, item.ProductRef, item.Name, item.Quantity, item.UnitPrice); err != nil {
			return ordererrors.ErrUpdateOrder
		}
		if err := p.touch(ctx, tx, id); err != nil {
			return err
		}
		var loadErr error
		updated, loadErr = p.load(ctx, tx, id)
		return loadErr
	})
	if txErr != nil {
		return nil, txErr
	}
	return updated, nil
}

func (p *PgStore) UpdateItemQuantity(ctx context.Context, id, itemID int64, quantity int32) (*order.Order, error) {
	if quantity < 0 {
		return nil, ordererrors.ErrInvalidQuantity
	}

	var updated *order.Order
	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		if err := p.lockOrder(ctx, tx, id); err != nil {
			return err
		}
		var query string
		args := []any{itemID, id}
		if quantity == 0 {
			query = `DELETE FROM order_items WHERE id = $1 AND order_id = $2`
		} else {
			query = `UPDATE order_items SET quantity = $3 WHERE id = $1 AND order_id = $2`
			args = append(args, quantity)
		}
		res, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return ordererrors.ErrUpdateOrder
		}
		if res.RowsAffected() == 0 {
			return ordererrors.ErrItemNotFound
		}
		if err := p.touch(ctx, tx, id); err != nil {
			return err
		}
		var loadErr error
		updated, loadErr = p.load(ctx, tx, id)
		return loadErr
	})
	if txErr != nil {
		return nil, txErr
	}
	return updated, nil
}

func (p *PgStore) RemoveItem(ctx context.Context, id, itemID int64) (*order.Order, error) {
	var updated *order.Order
	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		if err := p.lockOrder(ctx, tx, id); err != nil {
			return err
		}
		res, err := tx.Exec(ctx,
			`DELETE FROM order_items WHERE id = $1 AND order_id = $2`, itemID, id)
		if err != nil {
			return ordererrors.ErrUpdateOrder
		}
		if res.RowsAffected() == 0 {
			return ordererrors.ErrItemNotFound
		}
		if err := p.touch(ctx, tx, id); err != nil {
			return err
		}
		var loadErr error
		updated, loadErr = p.load(ctx, tx, id)
		return loadErr
	})
	if txErr != nil {
		return nil, txErr
	}
	return updated, nil
}

func (p *PgStore) Clear(ctx context.Context, id int64) (*order.Order, bool, error) {
	var cleared *order.Order
	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		if err := p.lockOrder(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
			return ordererrors.ErrUpdateOrder
		}
		if err := p.touch(ctx, tx, id); err != nil {
			return err
		}
		var loadErr error
		cleared, loadErr = p.load(ctx, tx, id)
		return loadErr
	})
	if txErr != nil {
		if errors.Is(txErr, ordererrors.ErrOrderNotFound) {
			return nil, false, nil
		}
		return nil, false, txErr
	}
	return cleared, true, nil
}

func (p *PgStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := p.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return false, ordererrors.ErrDeleteOrder
	}
	return res.RowsAffected() > 0, nil
}

func (p *PgStore) UpdateStatus(ctx context.Context, id int64, newStatus order.Status) (*order.Order, bool, error) {
	var updated *order.Order
	var changed bool

	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx,
			`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ordererrors.ErrOrderNotFound
			}
			return ordererrors.ErrFailedToFindOrder
		}
		if err := p.engine.Validate(order.Status(current), newStatus); err != nil {
			return err
		}
		if order.Status(current) == newStatus {
			var loadErr error
			updated, loadErr = p.load(ctx, tx, id)
			return loadErr
		}

		now := time.Now().UTC()
		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`,
			id, string(newStatus), now); err != nil {
			return ordererrors.ErrUpdateOrder
		}
		// Append-once history: re-entering a status keeps the first entry.
		if _, err := tx.Exec(ctx,
			`INSERT INTO order_status_history (order_id, status, changed_at) VALUES ($1, $2, $3)
			 ON CONFLICT (order_id, status) DO NOTHING`,
			id, string(newStatus), now); err != nil {
			return ordererrors.ErrUpdateOrder
		}
		changed = true

		var loadErr error
		updated, loadErr = p.load(ctx, tx, id)
		return loadErr
	})

	if txErr != nil {
		return nil, false, txErr
	}
	return updated, changed, nil
}

// lockOrder takes a row lock on the order so the mutation is serialized
// against concurrent writers. Returns ErrOrderNotFound for unknown IDs.
func (p *PgStore) lockOrder(ctx context.Context, tx pgx.Tx, id int64) error {
	var found int64
	err := tx.QueryRow(ctx, `SELECT id FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&found)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ordererrors.ErrOrderNotFound
		}
		return ordererrors.ErrFailedToFindOrder
	}
	return nil
}

// touch bumps the order's updated timestamp.
func (p *PgStore) touch(ctx context.Context, tx pgx.Tx, id int64) error {
	if _, err := tx.Exec(ctx,
		`UPDATE orders SET updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return ordererrors.ErrUpdateOrder
	}
	return nil
}

// load assembles a full order snapshot inside the transaction.
func (p *PgStore) load(ctx context.Context, tx pgx.Tx, id int64) (*order.Order, error) {
	o := &order.Order{ID: id, Items: []order.LineItem{}}
	var statusStr string
	err := tx.QueryRow(ctx,
		`SELECT owner_ref, status, created_at, updated_at FROM orders WHERE id = $1`, id).
		Scan(&o.Owner, &statusStr, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ordererrors.ErrOrderNotFound
		}
		return nil, ordererrors.ErrFailedToFindOrder
	}
	o.Status = order.Status(statusStr)

	itemRows, err := tx.Query(ctx,
		`SELECT id, product_ref, name, quantity, unit_price
		 FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, ordererrors.ErrFailedToFindOrder
	}
	items, err := pgx.CollectRows(itemRows, func(row pgx.CollectableRow) (order.LineItem, error) {
		var item order.LineItem
		err := row.Scan(&item.ID, &item.ProductRef, &item.Name, &item.Quantity, &item.UnitPrice)
		return item, err
	})
	if err != nil {
		return nil, ordererrors.ErrFailedToFindOrder
	}
	if items != nil {
		o.Items = items
	}

	historyRows, err := tx.Query(ctx,
		`SELECT status, changed_at FROM order_status_history
		 WHERE order_id = $1 ORDER BY changed_at, status`, id)
	if err != nil {
		return nil, ordererrors.ErrFailedToFindOrder
	}
	history, err := pgx.CollectRows(historyRows, func(row pgx.CollectableRow) (order.StatusChange, error) {
		var c order.StatusChange
		var s string
		err := row.Scan(&s, &c.Timestamp)
		c.Status = order.Status(s)
		return c, err
	})
	if err != nil {
		return nil, ordererrors.ErrFailedToFindOrder
	}
	o.StatusHistory = history

	o.Recompute()
	return o, nil
}

func (p *PgStore) withTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return ordererrors.ErrTransactionBegin
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return ordererrors.ErrTransactionRollback
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return ordererrors.ErrTransactionCommit
	}
	return nil
}
