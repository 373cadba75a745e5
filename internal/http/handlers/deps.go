package handlers

import (
	"github.com/jmoiron/sqlx"

	"bulkmart/internal/backend"
	"bulkmart/internal/config"
	"bulkmart/internal/repos"
	"bulkmart/internal/services"
)

type Deps struct {
	Sessions *services.SessionService
	Secret   []byte

	CatalogHandler  *CatalogHandler
	CartHandler     *CartHandler
	CheckoutHandler *CheckoutHandler
	OrderHandler    *OrderHandler
	SessionHandler  *SessionHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, api *backend.Client) *Deps {
	cartRepo := repos.NewCartRepo(db)
	sessionRepo := repos.NewSessionRepo(db)
	orderRepo := repos.NewOrderRepo(db)

	catalogSvc := services.NewCatalogService(api, cfg.ReferenceTTL)
	cartStore := services.NewCartStore(api, catalogSvc, cartRepo)
	sessionSvc := services.NewSessionService(sessionRepo, cartStore)
	checkoutSvc := services.NewCheckoutService(api, catalogSvc, cartStore, orderRepo)
	orderSvc := services.NewOrderService(api, orderRepo)

	return &Deps{
		Sessions:        sessionSvc,
		Secret:          []byte(cfg.JWTSecret),
		CatalogHandler:  &CatalogHandler{Catalog: catalogSvc},
		CartHandler:     &CartHandler{Carts: cartStore, Checkout: checkoutSvc},
		CheckoutHandler: &CheckoutHandler{Checkout: checkoutSvc, API: api},
		OrderHandler:    &OrderHandler{Orders: orderSvc},
		SessionHandler:  &SessionHandler{Sessions: sessionSvc},
	}
}
