package repos_test

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulkmart/internal/domain"
	"bulkmart/internal/repos"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCartSnapshot_SaveLoadClear(t *testing.T) {
	r := repos.NewCartRepo(memdb(t))

	lines := []domain.CartLine{
		{LineID: "line-1", ProductID: "p-rice", Product: domain.Product{ID: "p-rice", Name: "Rice", SalePrice: domain.NewNumber(100)}, Quantity: 2, CreditPeriod: "15", CreditPercentage: domain.NewNumber(1.5)},
		{ProductID: "p-dal", Product: domain.Product{ID: "p-dal", Name: "Dal"}, Quantity: 1, CreditPeriod: "0"},
	}
	require.NoError(t, r.Save("sid-1", "acct-1", lines))

	acct, got, err := r.Load("sid-1")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", acct)
	require.Len(t, got, 2)
	assert.Equal(t, "p-rice", got[0].ProductID)
	assert.Equal(t, "line-1", got[0].LineID)
	assert.Equal(t, "1.5", got[0].CreditPercentage.Decimal().String())
	assert.Equal(t, "100", got[0].Product.SalePrice.Decimal().String())
	assert.False(t, got[1].CreditPercentage.IsSet())
	assert.Equal(t, domain.Missing, got[1].Product.SalePrice.State())

	// saving fewer lines replaces the old set
	require.NoError(t, r.Save("sid-1", "acct-1", lines[1:]))
	_, got, err = r.Load("sid-1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	// two lines of one product are kept apart
	dup := []domain.CartLine{lines[0], lines[0]}
	dup[1].LineID, dup[1].CreditPeriod = "line-2", "30"
	require.NoError(t, r.Save("sid-1", "acct-1", dup))
	_, got, err = r.Load("sid-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "line-2", got[1].LineID)
	assert.Equal(t, "30", got[1].CreditPeriod)

	// an empty cart is not persisted
	require.NoError(t, r.Save("sid-1", "acct-1", nil))
	acct, got, err = r.Load("sid-1")
	require.NoError(t, err)
	assert.Empty(t, acct)
	assert.Empty(t, got)
}

func TestSessionBind(t *testing.T) {
	r := repos.NewSessionRepo(memdb(t))

	prev, err := r.Bind("sid-1", "acct-1")
	require.NoError(t, err)
	assert.Empty(t, prev)

	prev, err = r.Bind("sid-1", "acct-2")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", prev)

	acct, err := r.Account("sid-1")
	require.NoError(t, err)
	assert.Equal(t, "acct-2", acct)

	require.NoError(t, r.Unbind("sid-1"))
	acct, err = r.Account("sid-1")
	require.NoError(t, err)
	assert.Empty(t, acct)

	acct, err = r.Account("never-seen")
	require.NoError(t, err)
	assert.Empty(t, acct)
}

func TestSubmissions(t *testing.T) {
	r := repos.NewOrderRepo(memdb(t))

	p, err := r.Pending("sid-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, r.Begin("sub-1", "sid-1", "acct-1", "236.00"))
	p, err = r.Pending("sid-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "sub-1", p.ID)

	require.NoError(t, r.MarkFailed("sub-1", "stock exhausted"))
	require.NoError(t, r.Begin("sub-2", "sid-1", "acct-1", "236.00"))
	require.NoError(t, r.MarkPlaced("sub-2", "ord-7"))

	p, err = r.Pending("sid-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Nil(t, p)

	list, err := r.ListByAccount("acct-1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "sub-2", list[0].ID)
	assert.Equal(t, repos.SubmissionPlaced, list[0].Status)
	assert.Equal(t, "ord-7", list[0].OrderID)
	assert.Equal(t, repos.SubmissionFailed, list[1].Status)
	assert.Equal(t, "stock exhausted", list[1].Message)
}

func TestSubmissions_ExpireStalePending(t *testing.T) {
	db := memdb(t)
	r := repos.NewOrderRepo(db)

	require.NoError(t, r.Begin("sub-old", "sid-1", "acct-1", "236.00"))
	_, err := db.Exec(`UPDATE order_submissions SET created_at=datetime('now','-1 hour') WHERE id='sub-old'`)
	require.NoError(t, err)
	require.NoError(t, r.Begin("sub-other", "sid-2", "acct-1", "100.00"))

	cutoff := time.Now().Add(-time.Minute)
	p, err := r.Pending("sid-1", cutoff)
	require.NoError(t, err)
	assert.Nil(t, p, "a PENDING row past the cutoff no longer blocks the session")

	n, err := r.ExpirePending("sid-1", cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	old, err := r.Get("sub-old")
	require.NoError(t, err)
	assert.Equal(t, repos.SubmissionFailed, old.Status)
	assert.Equal(t, "expired", old.Message)

	n, err = r.ExpirePending("sid-2", cutoff)
	require.NoError(t, err)
	assert.Zero(t, n)
	p, err = r.Pending("sid-2", cutoff)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "sub-other", p.ID)
}
