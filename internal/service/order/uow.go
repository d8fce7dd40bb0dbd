package order

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/Additional-Code/meridian/internal/database"
	orderrepo "github.com/Additional-Code/meridian/internal/repository/order"
	stockrepo "github.com/Additional-Code/meridian/internal/repository/stock"
	stocksvc "github.com/Additional-Code/meridian/internal/service/stock"
)

// bunUnitOfWork runs lifecycle mutations inside a single bun transaction,
// handing the callback repositories bound to that transaction.
type bunUnitOfWork struct {
	conns   *database.Connections
	timeout time.Duration
	orders  *orderrepo.Repository
	stock   *stockrepo.Repository
}

type bunTx struct {
	orders OrderStore
	stock  stocksvc.EntryTx
}

func (t bunTx) Orders() OrderStore        { return t.orders }
func (t bunTx) Stock() stocksvc.EntryTx   { return t.stock }

func (u *bunUnitOfWork) Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return u.conns.RunInTx(ctx, u.timeout, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, bunTx{
			orders: u.orders.WithTx(tx),
			stock:  u.stock.WithTx(tx),
		})
	})
}
