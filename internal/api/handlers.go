package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/example/game-marketplace/internal/api/middleware"
	"github.com/example/game-marketplace/internal/command"
	"github.com/example/game-marketplace/internal/domain/ledger"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/query"
	"github.com/go-chi/chi/v5"
)

const idempotencyHeader = "Idempotency-Key"

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
	}
}

// Product Handlers

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateProduct
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.Actor = middleware.PrincipalFromContext(r.Context())

	p, err := h.cmdHandler.CreateProduct(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := h.queryHandler.ListProducts(r.Context(), q.Get("seller_id"), product.Type(q.Get("type")))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetSellerProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.queryHandler.ListSellerProducts(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.queryHandler.GetProduct(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateProduct
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.Actor = middleware.PrincipalFromContext(r.Context())
	cmd.ProductID = chi.URLParam(r, "id")

	p, err := h.cmdHandler.UpdateProduct(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) RestockProduct(w http.ResponseWriter, r *http.Request) {
	var cmd command.RestockProduct
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.Actor = middleware.PrincipalFromContext(r.Context())
	cmd.ProductID = chi.URLParam(r, "id")

	p, err := h.cmdHandler.RestockProduct(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Cart Handlers

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.queryHandler.GetCart(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var cmd command.AddToCart
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.Actor = middleware.PrincipalFromContext(r.Context())

	c, err := h.cmdHandler.AddToCart(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.cmdHandler.RemoveFromCart(r.Context(), command.RemoveFromCart{
		Actor:     middleware.PrincipalFromContext(r.Context()),
		ProductID: chi.URLParam(r, "productID"),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateCartItem
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.Actor = middleware.PrincipalFromContext(r.Context())
	cmd.ProductID = chi.URLParam(r, "productID")

	c, err := h.cmdHandler.UpdateCartItem(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.cmdHandler.ClearCart(r.Context(), command.ClearCart{Actor: middleware.PrincipalFromContext(r.Context())})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Checkout turns the caller's cart into an order. A retried request with the
// same Idempotency-Key returns the first order.
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var cmd command.Checkout
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.Actor = middleware.PrincipalFromContext(r.Context())
	cmd.IdempotencyKey = r.Header.Get(idempotencyHeader)

	res, err := h.cmdHandler.Checkout(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, checkoutStatus(res), res)
}

// Order Handlers

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateOrder
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.Actor = middleware.PrincipalFromContext(r.Context())
	cmd.IdempotencyKey = r.Header.Get(idempotencyHeader)

	res, err := h.cmdHandler.CreateOrder(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, checkoutStatus(res), res)
}

func checkoutStatus(res *command.CheckoutResult) int {
	if res.Replayed {
		return http.StatusOK
	}
	return http.StatusCreated
}

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queryHandler.ListOrders(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.queryHandler.GetOrder(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateOrderStatus
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.Actor = middleware.PrincipalFromContext(r.Context())
	cmd.OrderID = chi.URLParam(r, "id")

	o, err := h.cmdHandler.UpdateOrderStatus(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// Refund Handlers

func (h *Handlers) RequestRefund(w http.ResponseWriter, r *http.Request) {
	var cmd command.RequestRefund
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.Actor = middleware.PrincipalFromContext(r.Context())

	req, err := h.cmdHandler.RequestRefund(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, req)
}

func (h *Handlers) GetRefunds(w http.ResponseWriter, r *http.Request) {
	refunds, err := h.queryHandler.ListRefunds(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, refunds)
}

func (h *Handlers) GetRefund(w http.ResponseWriter, r *http.Request) {
	req, err := h.queryHandler.GetRefund(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *Handlers) RespondToRefund(w http.ResponseWriter, r *http.Request) {
	var cmd command.RespondToRefund
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.Actor = middleware.PrincipalFromContext(r.Context())
	cmd.RequestID = chi.URLParam(r, "id")

	req, err := h.cmdHandler.RespondToRefund(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *Handlers) DisputeRefund(w http.ResponseWriter, r *http.Request) {
	var cmd command.DisputeRefund
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.Actor = middleware.PrincipalFromContext(r.Context())
	cmd.RequestID = chi.URLParam(r, "id")

	req, err := h.cmdHandler.DisputeRefund(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *Handlers) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	var cmd command.ResolveDispute
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.Actor = middleware.PrincipalFromContext(r.Context())
	cmd.RequestID = chi.URLParam(r, "id")

	req, err := h.cmdHandler.ResolveDispute(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// Seller Handlers

// GetLedger serves one seller-month; ?period=YYYY-MM, defaulting to the
// current month.
func (h *Handlers) GetLedger(w http.ResponseWriter, r *http.Request) {
	period := ledger.PeriodOf(time.Now())
	if v := r.URL.Query().Get("period"); v != "" {
		p, err := ledger.ParsePeriod(v)
		if err != nil {
			respondError(w, r, err)
			return
		}
		period = p
	}

	view, err := h.queryHandler.GetLedger(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "sellerID"), period)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) GetSellerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queryHandler.SellerStats(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "sellerID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// Rating Handlers

// GetProductRatings serves ?page=N&limit=M, both optional.
func (h *Handlers) GetProductRatings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	view, err := h.queryHandler.ProductRatings(r.Context(), chi.URLParam(r, "id"), page, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) RateProduct(w http.ResponseWriter, r *http.Request) {
	var cmd command.RateProduct
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.Actor = middleware.PrincipalFromContext(r.Context())
	cmd.ProductID = chi.URLParam(r, "id")

	rt, err := h.cmdHandler.RateProduct(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rt)
}

func (h *Handlers) GetMyRatings(w http.ResponseWriter, r *http.Request) {
	ratings, err := h.queryHandler.MyRatings(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ratings)
}

func (h *Handlers) UpdateRating(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateRating
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.Actor = middleware.PrincipalFromContext(r.Context())
	cmd.RatingID = chi.URLParam(r, "ratingID")

	rt, err := h.cmdHandler.UpdateRating(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rt)
}

func (h *Handlers) DeleteRating(w http.ResponseWriter, r *http.Request) {
	err := h.cmdHandler.DeleteRating(r.Context(), command.DeleteRating{
		Actor:    middleware.PrincipalFromContext(r.Context()),
		RatingID: chi.URLParam(r, "ratingID"),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Wishlist Handlers

func (h *Handlers) GetWishlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.queryHandler.GetWishlist(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handlers) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	var cmd command.AddToWishlist
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.Actor = middleware.PrincipalFromContext(r.Context())

	e, err := h.cmdHandler.AddToWishlist(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, e)
}

func (h *Handlers) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	err := h.cmdHandler.RemoveFromWishlist(r.Context(), command.RemoveFromWishlist{
		Actor:     middleware.PrincipalFromContext(r.Context()),
		ProductID: chi.URLParam(r, "productID"),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ToggleWishlistNotify(w http.ResponseWriter, r *http.Request) {
	e, err := h.cmdHandler.ToggleWishlistNotify(r.Context(), command.ToggleWishlistNotify{
		Actor:     middleware.PrincipalFromContext(r.Context()),
		ProductID: chi.URLParam(r, "productID"),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// Admin Handlers

func (h *Handlers) GetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.queryHandler.ListUsers(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	err := h.cmdHandler.DeleteUser(r.Context(), command.DeleteUser{
		Actor:  middleware.PrincipalFromContext(r.Context()),
		UserID: chi.URLParam(r, "id"),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
