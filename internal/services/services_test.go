package services_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"bulkmart/internal/backend"
	"bulkmart/internal/backend/backendtest"
	"bulkmart/internal/domain"
	applog "bulkmart/internal/log"
	"bulkmart/internal/repos"
	"bulkmart/internal/services"
)

type env struct {
	srv      *backendtest.Server
	db       *sqlx.DB
	api      *backend.Client
	catalog  *services.CatalogService
	carts    *services.CartStore
	sessions *services.SessionService
	checkout *services.CheckoutService
	orders   *services.OrderService
	ctx      context.Context
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	srv := backendtest.New(t)
	return buildEnv(srv, db)
}

// buildEnv wires a fresh set of services over an existing fake and DB,
// the way a restarted process would see them.
func buildEnv(srv *backendtest.Server, db *sqlx.DB) *env {
	api := backend.NewClient(srv.URL, "", 2*time.Second)
	catalog := services.NewCatalogService(api, time.Minute)
	submissions := repos.NewOrderRepo(db)
	carts := services.NewCartStore(api, catalog, repos.NewCartRepo(db))
	return &env{
		srv:      srv,
		db:       db,
		api:      api,
		catalog:  catalog,
		carts:    carts,
		sessions: services.NewSessionService(repos.NewSessionRepo(db), carts),
		checkout: services.NewCheckoutService(api, catalog, carts, submissions),
		orders:   services.NewOrderService(api, submissions),
		ctx:      context.Background(),
	}
}

type logEntry struct {
	Action string         `json:"action"`
	Fields map[string]any `json:"fields"`
}

type lockedBuf struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	buf := &lockedBuf{}
	applog.SetOutput(buf)
	defer applog.SetOutput(os.Stdout)

	fn()

	var out []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.b.String()), "\n") {
		var e logEntry
		if json.Unmarshal([]byte(line), &e) == nil {
			out = append(out, e)
		}
	}
	return out
}

func hasAction(entries []logEntry, action string) bool {
	for _, e := range entries {
		if e.Action == action {
			return true
		}
	}
	return false
}

var homeAddress = domain.Address{
	Name: "Asha Sharma", Phone: "9876543210", Line1: "12 Market Road",
	City: "Indore", State: "MP", Pincode: "452001",
}
