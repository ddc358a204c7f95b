package api

import (
	"net/http"
	"time"

	"github.com/example/game-marketplace/internal/api/middleware"
	"github.com/example/game-marketplace/internal/auth"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Handlers       *Handlers
	AuthHandlers   *AuthHandlers
	JWTService     *auth.JWTService
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handlers
	authn := middleware.AuthMiddleware(cfg.JWTService)
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(timeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", cfg.AuthHandlers.Register)
			r.Post("/login", cfg.AuthHandlers.Login)
			r.Post("/refresh", cfg.AuthHandlers.Refresh)
			r.Post("/logout", cfg.AuthHandlers.Logout)
			r.With(authn).Get("/me", cfg.AuthHandlers.Me)
		})

		// Catalogue reads are public; hidden listings need their owner's token.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuthMiddleware(cfg.JWTService))
			r.Get("/products", h.GetProducts)
			r.Get("/products/{id}", h.GetProduct)
			r.Get("/products/{id}/ratings", h.GetProductRatings)
		})

		r.Group(func(r chi.Router) {
			r.Use(authn)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(user.RoleSeller, user.RoleAdmin))
				r.Post("/products", h.CreateProduct)
				r.Put("/products/{id}", h.UpdateProduct)
				r.Post("/products/{id}/restock", h.RestockProduct)
				r.Get("/seller/products", h.GetSellerProducts)
				r.Patch("/orders/{id}/status", h.UpdateOrderStatus)
				r.Get("/sellers/{sellerID}/ledger", h.GetLedger)
				r.Get("/sellers/{sellerID}/stats", h.GetSellerStats)
			})

			r.Route("/cart", func(r chi.Router) {
				r.Use(middleware.RequireRole(user.RoleBuyer))
				r.Get("/", h.GetCart)
				r.Delete("/", h.ClearCart)
				r.Post("/items", h.AddToCart)
				r.Put("/items/{productID}", h.UpdateCartItem)
				r.Delete("/items/{productID}", h.RemoveFromCart)
				r.Post("/checkout", h.Checkout)
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Use(middleware.RequireRole(user.RoleBuyer))
				r.Get("/", h.GetWishlist)
				r.Post("/items", h.AddToWishlist)
				r.Delete("/items/{productID}", h.RemoveFromWishlist)
				r.Patch("/items/{productID}/notify", h.ToggleWishlistNotify)
			})

			r.With(middleware.RequireRole(user.RoleBuyer)).Post("/products/{id}/ratings", h.RateProduct)
			r.With(middleware.RequireRole(user.RoleBuyer)).Get("/ratings/mine", h.GetMyRatings)
			r.With(middleware.RequireRole(user.RoleBuyer)).Patch("/ratings/{ratingID}", h.UpdateRating)
			r.With(middleware.RequireRole(user.RoleBuyer, user.RoleAdmin)).Delete("/ratings/{ratingID}", h.DeleteRating)

			r.Route("/admin/users", func(r chi.Router) {
				r.Use(middleware.RequireRole(user.RoleAdmin))
				r.Get("/", h.GetUsers)
				r.Delete("/{id}", h.DeleteUser)
			})

			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.GetOrders)
			r.Get("/orders/{id}", h.GetOrder)

			r.Post("/refunds", h.RequestRefund)
			r.Get("/refunds", h.GetRefunds)
			r.Get("/refunds/{id}", h.GetRefund)
			r.Post("/refunds/{id}/respond", h.RespondToRefund)
			r.Post("/refunds/{id}/dispute", h.DisputeRefund)
			r.With(middleware.RequireRole(user.RoleAdmin)).Post("/refunds/{id}/resolve", h.ResolveDispute)
		})
	})

	return r
}
