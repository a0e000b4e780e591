package novaorm

import (
	"context"
	"math"
	"net"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novaorm/internal/engine"
	"github.com/tuannm99/novaorm/schema"
	"github.com/tuannm99/novaorm/server/novasqlwire"
)

type user struct {
	ID       uint64
	Name     string
	Email    string
	Password string
}

var (
	users        = schema.NewTable[user]("users")
	userID       = schema.Field(users, "id", func(u *user) *uint64 { return &u.ID }, schema.PrimaryKey())
	userName     = schema.Field(users, "name", func(u *user) *string { return &u.Name })
	userEmail    = schema.Field(users, "email", func(u *user) *string { return &u.Email })
	userPassword = schema.Field(users, "password", func(u *user) *string { return &u.Password })
)

type account struct {
	ID      uint64
	Owner   string
	Balance int64
	Rate    float64
	Active  bool
	Avatar  []byte
}

var (
	accounts      = schema.NewTable[account]("accounts")
	accountID     = schema.Field(accounts, "id", func(a *account) *uint64 { return &a.ID }, schema.PrimaryKey())
	accountOwner  = schema.Field(accounts, "owner", func(a *account) *string { return &a.Owner })
	accountBal    = schema.Field(accounts, "balance", func(a *account) *int64 { return &a.Balance })
	accountRate   = schema.Field(accounts, "rate", func(a *account) *float64 { return &a.Rate })
	accountActive = schema.Field(accounts, "active", func(a *account) *bool { return &a.Active })
	accountAvatar = schema.Field(accounts, "avatar", func(a *account) *[]byte { return &a.Avatar })
)

var johnDoe = user{ID: 1, Name: "John Doe", Email: "john.doe@example.com", Password: "password"}

func memURL() string { return "mem://" + uuid.NewString() }

func openDB(t *testing.T, rawURL string, mutate ...func(*Options)) *DB {
	t.Helper()
	opts := DefaultOptions()
	opts.Registry = schema.NewRegistry()
	for _, m := range mutate {
		m(&opts)
	}
	db, err := Connect(context.Background(), rawURL, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRegisterTable_DuplicateKeepsOriginal(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, memURL())

	require.NoError(t, db.RegisterTable(ctx, users))
	err := db.RegisterTable(ctx, users)
	require.ErrorIs(t, err, ErrDuplicateTable)

	e, ok := db.Registry().LookupTable("users")
	require.True(t, ok)
	require.Len(t, e.Columns, 4)

	res, err := db.Exec(ctx, "SHOW TABLES;")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
}

func TestInsertThenSelectAll_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, memURL())
	require.NoError(t, db.RegisterTable(ctx, accounts))

	in := []account{
		{ID: 1, Owner: "O'Brien, (admin)", Balance: -42, Rate: 3.25, Active: true, Avatar: []byte{0, 1, 0xfe}},
		{ID: math.MaxUint64, Owner: "", Balance: math.MinInt64, Rate: 1e300, Active: false, Avatar: []byte{}},
	}
	for _, a := range in {
		out, err := Insert(db, a).Execute(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(1), out.RowsAffected)
	}

	explicit := schema.Selected[account]().
		Add(accountID).Add(accountOwner).Add(accountBal).
		Add(accountRate).Add(accountActive).Add(accountAvatar)

	for _, p := range []*schema.Projection[account]{schema.Selected[account](), explicit} {
		recs, err := Query[account](db).Select(p).Execute(ctx)
		require.NoError(t, err)
		require.Len(t, recs, 2)

		require.Equal(t, in[0], recs[0].Value)
		require.Equal(t, in[1], recs[1].Value)
		require.NotNil(t, recs[1].Value.Avatar)

		for _, r := range recs {
			require.True(t, r.Fetched(accountAvatar))
		}
	}
}

func TestQuery_NameOnlyLeavesOtherFieldsDefault(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, memURL())
	require.NoError(t, db.RegisterTable(ctx, users))

	_, err := Insert(db, johnDoe).Execute(ctx)
	require.NoError(t, err)

	recs, err := Query[user](db).Select(schema.Selected[user]().Add(userName)).Execute(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, user{Name: "John Doe"}, recs[0].Value)

	name, ok := userName.Get(recs[0])
	require.True(t, ok)
	require.Equal(t, "John Doe", name)

	email, ok := userEmail.Get(recs[0])
	require.False(t, ok)
	require.Empty(t, email)
	_, ok = userPassword.Get(recs[0])
	require.False(t, ok)
}

func TestQuery_NoResidualDataBetweenRows(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, memURL())
	require.NoError(t, db.RegisterTable(ctx, users))

	for i, name := range []string{"a", "b", "c"} {
		u := user{ID: uint64(i + 1), Name: name, Email: name + "@x", Password: "secret"}
		_, err := Insert(db, u).Execute(ctx)
		require.NoError(t, err)
	}

	// full fetch first, then a narrow fetch; nothing from the first may leak
	_, err := Query[user](db).Execute(ctx)
	require.NoError(t, err)

	recs, err := Query[user](db).Select(schema.Selected[user]().Add(userID)).Execute(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for i, r := range recs {
		require.Equal(t, user{ID: uint64(i + 1)}, r.Value)
	}
}

func TestQuery_WhereAndProjectionOrder(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, memURL())
	require.NoError(t, db.RegisterTable(ctx, users))
	_, err := Insert(db, johnDoe).Execute(ctx)
	require.NoError(t, err)
	_, err = Insert(db, user{ID: 2, Name: "Jane", Email: "jane@example.com"}).Execute(ctx)
	require.NoError(t, err)

	q := Query[user](db).
		Select(schema.Selected[user]().Add(userEmail).Add(userID)).
		Where(schema.Eq(userID, uint64(2)))
	sql, err := q.SQL()
	require.NoError(t, err)
	require.Equal(t, "SELECT email, id FROM users WHERE id = 2;", sql)

	recs, err := q.Execute(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, user{ID: 2, Email: "jane@example.com"}, recs[0].Value)

	recs, err = Query[user](db).Where(schema.Eq(userName, "John Doe")).Execute(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, johnDoe, recs[0].Value)

	recs, err = Query[user](db).Where(schema.Eq(userID, uint64(99))).Execute(ctx)
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestQuery_SelectCopiesProjection(t *testing.T) {
	db := openDB(t, memURL())
	require.NoError(t, db.RegisterTable(context.Background(), users))

	p := schema.Selected[user]().Add(userName)
	q := Query[user](db).Select(p)
	p.Add(userEmail)

	sql, err := q.SQL()
	require.NoError(t, err)
	require.Equal(t, "SELECT name FROM users;", sql)
}

func TestInsert_SQL(t *testing.T) {
	db := openDB(t, memURL())
	require.NoError(t, db.RegisterTable(context.Background(), users))

	sql, err := Insert(db, user{ID: 7, Name: "it's", Email: "e", Password: "p"}).SQL()
	require.NoError(t, err)
	require.Equal(t, "INSERT INTO users (id, name, email, password) VALUES (7, 'it''s', 'e', 'p');", sql)
}

func TestInsert_DuplicatePrimaryKeyKeepsConnectionHealthy(t *testing.T) {
	ctx := context.Background()

	u, err := url.Parse(memURL())
	require.NoError(t, err)
	base, err := NewConnector(u, 0, nil)
	require.NoError(t, err)

	var dials atomic.Int64
	db := openDB(t, u.String(), func(o *Options) {
		o.MaxOpen = 1
		o.Connector = ConnectorFunc(func(ctx context.Context) (Conn, error) {
			dials.Add(1)
			return base.Connect(ctx)
		})
	})
	require.NoError(t, db.RegisterTable(ctx, users))

	_, err = Insert(db, johnDoe).Execute(ctx)
	require.NoError(t, err)

	_, err = Insert(db, johnDoe).Execute(ctx)
	require.ErrorIs(t, err, ErrConstraintViolation)
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, CodeConstraintViolation, storeErr.Code)

	st := db.Stats()
	require.Equal(t, 1, st.Open)
	require.Equal(t, 1, st.Idle)

	recs, err := Query[user](db).Execute(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	// one probe dial in Connect plus the single pooled connection
	require.Equal(t, int64(2), dials.Load())
}

func TestPool_ZeroCapacity(t *testing.T) {
	ctx := context.Background()

	t.Run("with acquire timeout", func(t *testing.T) {
		db := openDB(t, memURL()+"?max_open=0&acquire_timeout=30ms")
		require.NoError(t, db.Registry().Register(users))

		_, err := Insert(db, johnDoe).Execute(ctx)
		require.ErrorIs(t, err, ErrPoolExhausted)
	})

	t.Run("without timeout blocks until the context ends", func(t *testing.T) {
		db := openDB(t, memURL()+"?max_open=0")
		require.NoError(t, db.Registry().Register(users))

		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		_, err := Insert(db, johnDoe).Execute(cctx)
		require.ErrorIs(t, err, ErrConnection)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.NotErrorIs(t, err, ErrPoolExhausted)
	})
}

func TestExecute_ConcurrentCallersShareBoundedPool(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, memURL(), func(o *Options) { o.MaxOpen = 2 })
	require.NoError(t, db.RegisterTable(ctx, users))

	var wg conc.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			u := user{ID: uint64(i + 1), Name: "user", Email: "e", Password: "p"}
			_, err := Insert(db, u).Execute(ctx)
			assert.NoError(t, err)

			_, err = Query[user](db).Select(schema.Selected[user]().Add(userName)).Execute(ctx)
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	recs, err := Query[user](db).Execute(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 20)

	st := db.Stats()
	require.LessOrEqual(t, st.Open, 2)
	require.Zero(t, st.InUse)
}

func TestQuery_ColumnFromOtherDeclaration(t *testing.T) {
	db := openDB(t, memURL())
	require.NoError(t, db.RegisterTable(context.Background(), users))

	shadow := schema.NewTable[user]("users")
	shadowName := schema.Field(shadow, "name", func(u *user) *string { return &u.Name })

	_, err := Query[user](db).Select(schema.Selected[user]().Add(shadowName)).Execute(context.Background())
	require.ErrorIs(t, err, ErrColumnMismatch)

	_, err = Query[user](db).Where(schema.Eq(shadowName, "x")).Execute(context.Background())
	require.ErrorIs(t, err, ErrColumnMismatch)
}

func TestHandles_TableNotRegistered(t *testing.T) {
	db := openDB(t, memURL())

	_, err := Insert(db, johnDoe).Execute(context.Background())
	require.ErrorIs(t, err, ErrTableNotRegistered)
	_, err = Query[user](db).Execute(context.Background())
	require.ErrorIs(t, err, ErrTableNotRegistered)
}

func TestExec_StatementError(t *testing.T) {
	db := openDB(t, memURL())
	_, err := db.Exec(context.Background(), "SELECT * FROM nope;")
	require.ErrorIs(t, err, ErrStatement)
	require.NotErrorIs(t, err, ErrConstraintViolation)
	require.Equal(t, 1, db.Stats().Idle)
}

func TestConnect_Errors(t *testing.T) {
	ctx := context.Background()
	_, err := Connect(ctx, "postgres://localhost/db", DefaultOptions())
	require.ErrorIs(t, err, ErrConnection)

	_, err = Connect(ctx, memURL()+"?max_open=lots", DefaultOptions())
	require.ErrorIs(t, err, ErrConnection)

	_, err = Connect(ctx, "novasql://", DefaultOptions())
	require.ErrorIs(t, err, ErrConnection)
}

func TestClose(t *testing.T) {
	db := openDB(t, memURL())
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err := db.Exec(context.Background(), "SHOW TABLES;")
	require.ErrorIs(t, err, ErrClosed)
}

func TestConnect_OverTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := novasqlwire.NewServer(engine.NewDatabase("tcp-orm"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx, ln) }()

	db := openDB(t, "novasql://"+ln.Addr().String()+"?dial_timeout=2s")
	require.NoError(t, db.RegisterTable(ctx, users))

	_, err = Insert(db, johnDoe).Execute(ctx)
	require.NoError(t, err)

	recs, err := Query[user](db).Execute(ctx)
	require.NoError(t, err)
	require.Equal(t, []user{johnDoe}, []user{recs[0].Value})
}
