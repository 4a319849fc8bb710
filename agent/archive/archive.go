// Package archive persists confirmed orders to Postgres. The conversation
// core never reads this data back; it exists for the kitchen dashboard and
// reporting.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/albayt/ordering-agent/agent/contract"
	statex "github.com/albayt/ordering-agent/agent/state"
)

type Config struct {
	DSN string `envconfig:"DSN" split_words:"true"`
}

// OrderRecord is one confirmed order row.
type OrderRecord struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID           int64     `bun:"id,pk,autoincrement"`
	OrderID      string    `bun:"order_id,notnull,unique"`
	SessionID    string    `bun:"session_id,notnull"`
	CustomerName string    `bun:"customer_name"`
	Phone        string    `bun:"phone"`
	Mode         string    `bun:"mode,notnull"`
	District     string    `bun:"district"`
	Address      string    `bun:"address"`
	Subtotal     float64   `bun:"subtotal,notnull"`
	DeliveryFee  float64   `bun:"delivery_fee,notnull"`
	Total        float64   `bun:"total,notnull"`
	Constraints  []string  `bun:"constraints,array"`
	ConfirmedAt  time.Time `bun:"confirmed_at,notnull"`

	Lines []OrderLineRecord `bun:"rel:has-many,join:id=order_ref"`
}

// OrderLineRecord is one line of a confirmed order.
type OrderLineRecord struct {
	bun.BaseModel `bun:"table:order_lines,alias:ol"`

	ID        int64   `bun:"id,pk,autoincrement"`
	OrderRef  int64   `bun:"order_ref,notnull"`
	CatalogID string  `bun:"catalog_id,notnull"`
	Name      string  `bun:"name,notnull"`
	Quantity  int     `bun:"quantity,notnull"`
	UnitPrice float64 `bun:"unit_price,notnull"`
	Size      string  `bun:"size"`
	Notes     string  `bun:"notes"`
}

// Archive writes confirmed orders. A nil *Archive is a no-op so deployments
// without Postgres keep working.
type Archive struct {
	db *bun.DB
}

// Open connects and ensures the schema exists. An empty DSN returns a nil
// archive.
func Open(ctx context.Context, cfg Config) (*Archive, error) {
	if cfg.DSN == "" {
		return nil, nil
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("archive: ping: %w", err)
	}
	for _, model := range []any{(*OrderRecord)(nil), (*OrderLineRecord)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return nil, fmt.Errorf("archive: create table: %w", err)
		}
	}
	return &Archive{db: db}, nil
}

// Store archives one confirmed order with its lines, atomically.
func (a *Archive) Store(ctx context.Context, s *statex.Session, confirmedAt time.Time) error {
	if a == nil {
		return nil
	}
	subtotal := s.Ledger.Subtotal()
	fee := 0.0
	if s.Mode == contractx.ModeDelivery {
		fee = s.DeliveryFee
	}
	rec := &OrderRecord{
		OrderID:      s.OrderID,
		SessionID:    s.SessionID,
		CustomerName: s.CustomerName,
		Phone:        s.Phone,
		Mode:         string(s.Mode),
		District:     s.District,
		Address:      s.FullAddress(),
		Subtotal:     subtotal,
		DeliveryFee:  fee,
		Total:        subtotal + fee,
		Constraints:  s.Constraints,
		ConfirmedAt:  confirmedAt.UTC(),
	}

	return a.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(rec).Exec(ctx); err != nil {
			return fmt.Errorf("archive: insert order: %w", err)
		}
		for _, l := range s.Ledger.Lines() {
			line := &OrderLineRecord{
				OrderRef:  rec.ID,
				CatalogID: l.CatalogID,
				Name:      l.Name,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
				Size:      l.Size,
				Notes:     l.Notes,
			}
			if _, err := tx.NewInsert().Model(line).Exec(ctx); err != nil {
				return fmt.Errorf("archive: insert line: %w", err)
			}
		}
		return nil
	})
}

// Close releases the underlying pool.
func (a *Archive) Close() error {
	if a == nil {
		return nil
	}
	return a.db.Close()
}
