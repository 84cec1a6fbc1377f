package memory

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
)

// Seed registers listings in the catalog and creates their stock rows in one unit of work.
func Seed(ctx context.Context, uow application.UnitOfWork, c *Catalog, listings []catalog.Listing) error {
	err := uow.Do(ctx, func(ctx context.Context, tx application.Tx) error {
		for _, l := range listings {
			s, err := inventory.NewStock(l.Product.ID, l.Stock)
			if err != nil {
				return err
			}
			if err := tx.Stock().Create(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, l := range listings {
		c.Put(l.Product)
	}
	return nil
}
