// Package backendtest runs an in-memory stand-in for the wholesale API.
package backendtest

import (
	"encoding/base64"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"bulkmart/internal/backend"
	"bulkmart/internal/domain"
)

type failure struct {
	method, prefix string
	status         int
	message        string
}

// OrderLine is the part of a submitted line the fake keeps.
type OrderLine struct {
	ProductID               string        `json:"product_id"`
	ProductName             string        `json:"product_name"`
	Quantity                int           `json:"quantity"`
	FreeQuantity            int           `json:"free_quantity"`
	TotalQuantityForBackend int           `json:"total_quantity_for_backend"`
	CreditPeriod            string        `json:"credit_period"`
	DiscountType            string        `json:"discount_type"`
	UnitFinal               domain.Number `json:"unit_final"`
	LineTotal               domain.Number `json:"line_total"`
}

type orderPayload struct {
	SubmissionID string                  `json:"submission_id"`
	CustomerID   string                  `json:"customer_id"`
	StaffID      string                  `json:"staff_id"`
	Mode         domain.ConfirmationMode `json:"mode"`
	Address      domain.Address          `json:"address"`
	Note         string                  `json:"note"`
	Lines        []OrderLine             `json:"lines"`
	Totals       struct {
		Payable domain.Number `json:"payable"`
	} `json:"totals"`
}

type Server struct {
	*httptest.Server

	mu                sync.Mutex
	Products          []domain.Product
	Categories        []domain.Category
	CategoryDiscounts []domain.CategoryDiscount
	FlashOffers       []domain.FlashOffer
	CreditPeriods     []domain.CreditPeriod
	Accounts          map[string]domain.Account
	StaffMembers      map[string]domain.Staff

	carts     map[string][]backend.CartItem
	orders    map[string]domain.Order
	submitted []orderPayload
	failures  []failure
	raw       map[string]string
	calls     map[string]int
	lastAuth  string
	seq       int
}

// New starts a seeded fake and closes it when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		carts:  map[string][]backend.CartItem{},
		orders: map[string]domain.Order{},
		calls:  map[string]int{},
		raw:    map[string]string{},
	}
	s.seed()
	s.Server = httptest.NewServer(adaptor.FiberApp(s.app()))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) seed() {
	s.Categories = []domain.Category{{ID: "grains", Name: "Grains"}, {ID: "staples", Name: "Staples"}, {ID: "oils", Name: "Oils"}, {ID: "home", Name: "Home care"}}
	s.Products = []domain.Product{
		{ID: "p-rice", Name: "Rice 25kg", SalePrice: domain.NewNumber(100), GSTRate: domain.NewNumber(18), CategoryID: "grains", Stock: domain.CountOf(40)},
		{ID: "p-oil", Name: "Oil 15l", SalePrice: domain.NewNumber(118), GSTRate: domain.NewNumber(18), InclusiveGST: domain.FlagOf(true), CategoryID: "oils", Stock: domain.CountOf(25)},
		{ID: "p-soap", Name: "Soap box", SalePrice: domain.NewNumber(50), GSTRate: domain.NewNumber(0), CategoryID: "home", Stock: domain.CountOf(100)},
		{ID: "p-dal", Name: "Dal 30kg", SalePrice: domain.NewNumber(200), GSTRate: domain.NewNumber(0), CategoryID: "staples", Stock: domain.CountOf(12)},
	}
	s.CategoryDiscounts = []domain.CategoryDiscount{{CategoryID: "staples", Percent: domain.NewNumber(10)}}
	s.FlashOffers = []domain.FlashOffer{{ProductID: "p-soap", BuyQuantity: domain.CountOf(2), GetQuantity: domain.CountOf(1)}}
	s.CreditPeriods = []domain.CreditPeriod{
		{ID: "0", Days: domain.CountOf(0), Percentage: domain.NewNumber(0)},
		{ID: "15", Days: domain.CountOf(15), Percentage: domain.NewNumber(1.5)},
		{ID: "30", Days: domain.CountOf(30), Percentage: domain.NewNumber(3)},
	}
	s.Accounts = map[string]domain.Account{
		"acct-1": {ID: "acct-1", Name: "Sharma Traders", RetailerDiscount: domain.NewNumber(5)},
		"acct-2": {ID: "acct-2", Name: "Gupta Stores"},
	}
	s.StaffMembers = map[string]domain.Staff{"s-1": {ID: "s-1", Name: "Ravi", Phone: "9876543210"}}
}

// FailNext makes the next request matching method and path prefix fail.
func (s *Server) FailNext(method, pathPrefix string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{method, pathPrefix, status, message})
}

// ServeRaw answers GET path with body verbatim, for payloads the typed
// seed cannot express.
func (s *Server) ServeRaw(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[path] = body
}

// Calls counts requests seen for "METHOD /path".
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

func (s *Server) LastAuthorization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

func (s *Server) Cart(customer string) []backend.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.CartItem(nil), s.carts[customer]...)
}

func (s *Server) SetCart(customer string, items ...backend.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[customer] = nil
	for _, it := range items {
		if it.ID == "" {
			s.seq++
			it.ID = fmt.Sprintf("line-%d", s.seq)
		}
		s.carts[customer] = append(s.carts[customer], it)
	}
}

// SubmittedLines returns the lines of every order POST, in order.
func (s *Server) SubmittedLines() [][]OrderLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]OrderLine, 0, len(s.submitted))
	for _, p := range s.submitted {
		out = append(out, p.Lines)
	}
	return out
}

func (s *Server) Order(id string) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

func (s *Server) app() *fiber.App {
	app := fiber.New(fiber.Config{Immutable: true, DisableStartupMessage: true})

	app.Use(func(c *fiber.Ctx) error {
		s.mu.Lock()
		s.calls[c.Method()+" "+c.Path()]++
		s.lastAuth = c.Get(fiber.HeaderAuthorization)
		for i, f := range s.failures {
			if f.method == c.Method() && strings.HasPrefix(c.Path(), f.prefix) {
				s.failures = append(s.failures[:i], s.failures[i+1:]...)
				s.mu.Unlock()
				return c.Status(f.status).JSON(fiber.Map{"message": f.message})
			}
		}
		body, ok := s.raw[c.Path()]
		s.mu.Unlock()
		if ok && c.Method() == fiber.MethodGet {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.SendString(body)
		}
		return c.Next()
	})

	app.Get("/products", s.list(func() any { return s.Products }))
	app.Get("/categories", s.list(func() any { return s.Categories }))
	app.Get("/category-discounts", s.list(func() any { return s.CategoryDiscounts }))
	app.Get("/flash-offers", s.list(func() any { return s.FlashOffers }))
	app.Get("/credit-periods", s.list(func() any { return s.CreditPeriods }))

	app.Get("/accounts/:id", func(c *fiber.Ctx) error {
		s.mu.Lock()
		a, ok := s.Accounts[c.Params("id")]
		s.mu.Unlock()
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "account not found"})
		}
		return c.JSON(a)
	})
	app.Get("/staff/:id", func(c *fiber.Ctx) error {
		s.mu.Lock()
		st, ok := s.StaffMembers[c.Params("id")]
		s.mu.Unlock()
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "staff not found"})
		}
		return c.JSON(st)
	})

	app.Get("/carts/:customer", func(c *fiber.Ctx) error {
		items := s.Cart(c.Params("customer"))
		if items == nil {
			items = []backend.CartItem{}
		}
		return c.JSON(items)
	})
	app.Post("/carts/:customer/items", func(c *fiber.Ctx) error {
		var it backend.CartItem
		if err := c.BodyParser(&it); err != nil || it.ProductID == "" || it.Quantity < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid cart item"})
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		cust := c.Params("customer")
		s.seq++
		it.ID = fmt.Sprintf("line-%d", s.seq)
		s.carts[cust] = append(s.carts[cust], it)
		return c.Status(fiber.StatusCreated).JSON(it)
	})
	app.Put("/carts/:customer/items/:line", func(c *fiber.Ctx) error {
		var it backend.CartItem
		if err := c.BodyParser(&it); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid cart item"})
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		cust, id := c.Params("customer"), c.Params("line")
		for i, cur := range s.carts[cust] {
			if cur.ID == id {
				it.ID = id
				s.carts[cust][i] = it
				return c.JSON(it)
			}
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "cart line not found"})
	})
	app.Delete("/carts/:customer/items/:line", func(c *fiber.Ctx) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		cust, id := c.Params("customer"), c.Params("line")
		items := s.carts[cust]
		for i, cur := range items {
			if cur.ID == id {
				s.carts[cust] = append(items[:i:i], items[i+1:]...)
				return c.SendStatus(fiber.StatusNoContent)
			}
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "cart line not found"})
	})
	app.Delete("/carts/:customer", func(c *fiber.Ctx) error {
		s.mu.Lock()
		delete(s.carts, c.Params("customer"))
		s.mu.Unlock()
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Post("/orders", func(c *fiber.Ctx) error {
		var p orderPayload
		if err := c.BodyParser(&p); err != nil || len(p.Lines) == 0 {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"message": "order has no lines"})
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.seq++
		o := orderFrom(fmt.Sprintf("ord-%d", s.seq), p)
		s.orders[o.ID] = o
		s.submitted = append(s.submitted, p)
		return c.Status(fiber.StatusCreated).JSON(o)
	})
	app.Put("/orders/:id", func(c *fiber.Ctx) error {
		var p orderPayload
		if err := c.BodyParser(&p); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid order"})
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		cur, ok := s.orders[c.Params("id")]
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "order not found"})
		}
		if cur.Status == "CANCELLED" {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "order already cancelled"})
		}
		o := orderFrom(cur.ID, p)
		o.CreatedAt = cur.CreatedAt
		if o.CustomerID == "" {
			o.CustomerID = cur.CustomerID
		}
		s.orders[o.ID] = o
		return c.JSON(o)
	})
	app.Get("/orders/:id", func(c *fiber.Ctx) error {
		o, ok := s.Order(c.Params("id"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "order not found"})
		}
		return c.JSON(o)
	})
	app.Get("/orders", func(c *fiber.Ctx) error {
		cust := c.Query("customer_id")
		s.mu.Lock()
		defer s.mu.Unlock()
		out := []domain.Order{}
		for i := 1; i <= s.seq; i++ {
			if o, ok := s.orders[fmt.Sprintf("ord-%d", i)]; ok && o.CustomerID == cust {
				out = append(out, o)
			}
		}
		return c.JSON(out)
	})
	app.Post("/orders/:id/cancel", func(c *fiber.Ctx) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		o, ok := s.orders[c.Params("id")]
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "order not found"})
		}
		if o.Status == "CANCELLED" {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "order already cancelled"})
		}
		o.Status = "CANCELLED"
		s.orders[o.ID] = o
		return c.JSON(o)
	})
	app.Get("/orders/:id/invoice", func(c *fiber.Ctx) error {
		o, ok := s.Order(c.Params("id"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "order not found"})
		}
		pdf := "%PDF-1.4\n% invoice " + o.ID + "\n%%EOF\n"
		return c.JSON(fiber.Map{"pdf_base64": base64.StdEncoding.EncodeToString([]byte(pdf))})
	})

	return app
}

func (s *Server) list(get func() any) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s.mu.Lock()
		v := get()
		s.mu.Unlock()
		return c.JSON(v)
	}
}

func orderFrom(id string, p orderPayload) domain.Order {
	o := domain.Order{
		ID:         id,
		CustomerID: p.CustomerID,
		Status:     "PLACED",
		Mode:       p.Mode,
		CreatedAt:  "2026-01-02T10:00:00Z",
		Address:    p.Address,
		Total:      p.Totals.Payable,
		Note:       p.Note,
	}
	for _, l := range p.Lines {
		o.Items = append(o.Items, domain.OrderItem{
			ProductID:    l.ProductID,
			Name:         l.ProductName,
			Quantity:     l.Quantity,
			FreeQuantity: l.FreeQuantity,
			CreditPeriod: l.CreditPeriod,
			UnitAmount:   l.UnitFinal,
			LineTotal:    l.LineTotal,
		})
	}
	return o
}
