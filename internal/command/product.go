package command

import (
	"context"
	"log"

	"github.com/example/game-marketplace/internal/auth"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/example/game-marketplace/internal/infrastructure/store"
)

// CreateProduct lists a new product for the calling seller.
func (h *Handler) CreateProduct(ctx context.Context, cmd CreateProduct) (*product.Product, error) {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleSeller)); err != nil {
		return nil, err
	}
	now := h.now()

	p := &product.Product{
		ID:          newID(),
		SellerID:    cmd.Actor.ID,
		Name:        cmd.Name,
		Description: cmd.Description,
		Price:       cmd.Price,
		OnSale:      cmd.OnSale,
		SalePrice:   cmd.SalePrice,
		SaleEndDate: cmd.SaleEndDate,
		Stock:       cmd.Stock,
		Type:        cmd.Type,
		Category:    cmd.Category,
		Status:      product.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.Type.IsDigital() {
		p.Stock = 0
	}
	if p.Category == "" {
		p.Category = p.Type.Category()
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	err := h.store.WithinTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateProduct(ctx, p); err != nil {
			return err
		}
		return emit(ctx, tx, p.ID, product.AggregateType, product.EventProductListed, product.ProductListed{
			ProductID: p.ID,
			SellerID:  p.SellerID,
			Name:      p.Name,
			Type:      p.Type,
			Price:     p.Price,
			Stock:     p.Stock,
			ListedAt:  now,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Product] Seller %s listed %s (%s)", p.SellerID, p.ID, p.Type)
	return p, nil
}

// UpdateProduct replaces the listing fields of a product owned by the
// calling seller. Admins may edit any listing.
func (h *Handler) UpdateProduct(ctx context.Context, cmd UpdateProduct) (*product.Product, error) {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleSeller, user.RoleAdmin)); err != nil {
		return nil, err
	}
	now := h.now()

	var updated *product.Product
	err := h.store.WithinTx(ctx, func(tx store.Tx) error {
		p, err := tx.GetProduct(ctx, cmd.ProductID)
		if err != nil {
			return err
		}
		if cmd.Actor.Role != user.RoleAdmin && p.SellerID != cmd.Actor.ID {
			return product.ErrProductNotFound
		}

		wasOnSale := p.IsOnSale(now)
		p.Name = cmd.Name
		p.Description = cmd.Description
		p.Price = cmd.Price
		p.OnSale = cmd.OnSale
		p.SalePrice = cmd.SalePrice
		p.SaleEndDate = cmd.SaleEndDate
		if cmd.Category != "" {
			p.Category = cmd.Category
		}
		if cmd.Status != "" {
			p.Status = cmd.Status
		}
		p.UpdatedAt = now
		if err := p.Validate(); err != nil {
			return err
		}

		if err := tx.UpdateListing(ctx, p); err != nil {
			return err
		}
		updated = p
		return emit(ctx, tx, p.ID, product.AggregateType, product.EventProductUpdated, product.ProductUpdated{
			ProductID:   p.ID,
			Name:        p.Name,
			Price:       p.Price,
			OnSale:      p.OnSale,
			SalePrice:   p.SalePrice,
			Status:      p.Status,
			SaleStarted: !wasOnSale && p.IsOnSale(now) && p.IsActive(),
			UpdatedAt:   now,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RestockProduct adds units to a physical product's stock.
func (h *Handler) RestockProduct(ctx context.Context, cmd RestockProduct) (*product.Product, error) {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleSeller)); err != nil {
		return nil, err
	}
	if cmd.Quantity <= 0 {
		return nil, product.ErrInvalidStock
	}
	now := h.now()

	var restocked *product.Product
	err := h.store.WithinTx(ctx, func(tx store.Tx) error {
		p, err := tx.GetProduct(ctx, cmd.ProductID)
		if err != nil {
			return err
		}
		if err := authorizeOwner(cmd.Actor, auth.Require(user.RoleSeller).OwnedBy(p.SellerID), product.ErrProductNotFound); err != nil {
			return err
		}
		if !p.IsPhysical() {
			return product.ErrDigitalStock
		}
		if err := tx.RestockProduct(ctx, p.ID, cmd.Quantity, now); err != nil {
			return err
		}
		restocked, err = tx.GetProduct(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Product] Restocked %s by %d, stock now %d", restocked.ID, cmd.Quantity, restocked.Stock)
	return restocked, nil
}
