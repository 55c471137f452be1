package school_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/limits"
	"github.com/dmitrymomot/leveledu/svc/school"
)

var fixedNow = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *school.Service
	mem    *school.MemoryStore
	tenant bson.ObjectID
	class  *school.Class
}

func newFixture(t *testing.T, opts ...school.Option) *fixture {
	t.Helper()
	mem := school.NewMemoryStore()
	opts = append([]school.Option{school.WithClock(func() time.Time { return fixedNow })}, opts...)
	f := &fixture{svc: school.NewService(mem.Store(), opts...), mem: mem, tenant: bson.NewObjectID()}
	var err error
	f.class, err = f.svc.CreateClass(context.Background(), f.tenant, school.ClassInput{Name: "5A", Code: "5A-2026"})
	require.NoError(t, err)
	return f
}

func (f *fixture) student(t *testing.T, name string) *school.Student {
	t.Helper()
	st, err := f.svc.CreateStudent(context.Background(), f.tenant, school.CreateStudentInput{Name: name, ClassID: f.class.ID.Hex()})
	require.NoError(t, err)
	return st
}

// credit gives a student coins through an attitude claim.
func (f *fixture) credit(t *testing.T, st *school.Student, coins int64) {
	t.Helper()
	ctx := context.Background()
	a, err := f.svc.CreateAttitude(ctx, f.tenant, school.AttitudeInput{
		Title: fmt.Sprintf("bonus %d", coins), Type: school.AttitudePositive, Coins: coins, ClassID: f.class.ID.Hex(),
	})
	require.NoError(t, err)
	_, err = f.svc.RewardAttitude(ctx, f.tenant, school.RewardInput{AttitudeID: a.ID.Hex(), StudentIDs: []string{st.ID.Hex()}})
	require.NoError(t, err)
	_, err = f.svc.ClaimAttitude(ctx, f.tenant, st.ID, a.ID)
	require.NoError(t, err)
}

func TestStudents(t *testing.T) {
	t.Parallel()

	t.Run("create enrolls and renders badge", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		st := f.student(t, "Ana")

		assert.True(t, strings.HasPrefix(st.QRCode, "data:image/png;base64,"))
		assert.Equal(t, f.class.ID, st.ClassID)
		class, err := f.svc.Class(ctx, f.tenant, f.class.ID)
		require.NoError(t, err)
		assert.Equal(t, []bson.ObjectID{st.ID}, class.Students)

		png, err := f.svc.Badge(ctx, f.tenant, st.ID, 128)
		require.NoError(t, err)
		assert.NotEmpty(t, png)
	})

	t.Run("unknown class", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.CreateStudent(context.Background(), f.tenant, school.CreateStudentInput{Name: "Ana", ClassID: bson.NewObjectID().Hex()})
		assert.ErrorIs(t, err, school.ErrClassNotFound)
	})

	t.Run("update moves between rosters", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		st := f.student(t, "Ana")
		other, err := f.svc.CreateClass(ctx, f.tenant, school.ClassInput{Name: "5B", Code: "5B"})
		require.NoError(t, err)

		to := other.ID.Hex()
		updated, err := f.svc.UpdateStudent(ctx, f.tenant, st.ID, school.UpdateStudentInput{Name: "Ana Maria", ClassID: &to})
		require.NoError(t, err)
		assert.Equal(t, "Ana Maria", updated.Name)
		assert.Equal(t, other.ID, updated.ClassID)

		from, err := f.svc.Class(ctx, f.tenant, f.class.ID)
		require.NoError(t, err)
		assert.Empty(t, from.Students)
		dest, err := f.svc.Class(ctx, f.tenant, other.ID)
		require.NoError(t, err)
		assert.Equal(t, []bson.ObjectID{st.ID}, dest.Students)

		none := ""
		updated, err = f.svc.UpdateStudent(ctx, f.tenant, st.ID, school.UpdateStudentInput{ClassID: &none})
		require.NoError(t, err)
		assert.True(t, updated.ClassID.IsZero())
	})

	t.Run("other tenant cannot see student", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		st := f.student(t, "Ana")
		_, err := f.svc.Student(context.Background(), bson.NewObjectID(), st.ID)
		assert.ErrorIs(t, err, school.ErrStudentNotFound)
		err = f.svc.DeleteStudent(context.Background(), bson.NewObjectID(), st.ID)
		assert.ErrorIs(t, err, school.ErrStudentNotFound)
	})

	t.Run("delete clears roster", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		st := f.student(t, "Ana")
		require.NoError(t, f.svc.DeleteStudent(ctx, f.tenant, st.ID))
		class, err := f.svc.Class(ctx, f.tenant, f.class.ID)
		require.NoError(t, err)
		assert.Empty(t, class.Students)
	})
}

func TestClasses(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateClass(ctx, f.tenant, school.ClassInput{Name: "Dup", Code: "5A-2026"})
	assert.ErrorIs(t, err, school.ErrDuplicateClassCode)

	_, err = f.svc.CreateClass(ctx, bson.NewObjectID(), school.ClassInput{Name: "Same code elsewhere", Code: "5A-2026"})
	assert.NoError(t, err)

	st := f.student(t, "Ana")
	require.NoError(t, f.svc.DeleteClass(ctx, f.tenant, f.class.ID))
	got, err := f.svc.Student(ctx, f.tenant, st.ID)
	require.NoError(t, err)
	assert.True(t, got.ClassID.IsZero())

	ok, err := f.svc.ExistAll(ctx, f.tenant, []bson.ObjectID{f.class.ID})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMissions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	st := f.student(t, "Ana")

	m, err := f.svc.CreateMission(ctx, f.tenant, school.MissionInput{Title: "Read a book", Coins: 30, ClassID: f.class.ID.Hex()})
	require.NoError(t, err)

	available, err := f.svc.AvailableMissions(ctx, f.tenant, st.ID)
	require.NoError(t, err)
	assert.Len(t, available, 1)

	_, err = f.svc.CompleteMission(ctx, f.tenant, st.ID, m.ID)
	assert.ErrorIs(t, err, school.ErrMissionNotAllowed)

	_, err = f.svc.AllowMission(ctx, f.tenant, m.ID, school.AllowInput{UserIDs: []string{bson.NewObjectID().Hex()}})
	assert.ErrorIs(t, err, school.ErrStudentNotFound)

	_, err = f.svc.AllowMission(ctx, f.tenant, m.ID, school.AllowInput{UserIDs: []string{st.ID.Hex()}})
	require.NoError(t, err)
	_, err = f.svc.AllowMission(ctx, f.tenant, m.ID, school.AllowInput{UserIDs: []string{st.ID.Hex()}})
	assert.ErrorIs(t, err, school.ErrAlreadyAllowed)

	done, err := f.svc.CompleteMission(ctx, f.tenant, st.ID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), done.Student.Coins)
	assert.Equal(t, int64(school.MissionXP), done.Student.XP)
	assert.Equal(t, int64(1), done.NewLevel)

	_, err = f.svc.CompleteMission(ctx, f.tenant, st.ID, m.ID)
	assert.ErrorIs(t, err, school.ErrMissionCompleted)

	available, err = f.svc.AvailableMissions(ctx, f.tenant, st.ID)
	require.NoError(t, err)
	assert.Empty(t, available)

	stored, err := f.svc.Mission(ctx, f.tenant, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []bson.ObjectID{st.ID}, stored.CompletedBy)
}

func TestAttitudes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ana, bia := f.student(t, "Ana"), f.student(t, "Bia")

	a, err := f.svc.CreateAttitude(ctx, f.tenant, school.AttitudeInput{
		Title: "Helped a classmate", Type: school.AttitudePositive, Coins: 10, XP: 20, ClassID: f.class.ID.Hex(),
	})
	require.NoError(t, err)

	_, err = f.svc.ClaimAttitude(ctx, f.tenant, ana.ID, a.ID)
	assert.ErrorIs(t, err, school.ErrAssignmentNotFound)

	res, err := f.svc.RewardAttitude(ctx, f.tenant, school.RewardInput{AttitudeID: a.ID.Hex(), StudentIDs: []string{ana.ID.Hex(), bia.ID.Hex()}})
	require.NoError(t, err)
	assert.Equal(t, &school.RewardResult{Assigned: 2}, res)

	res, err = f.svc.RewardAttitude(ctx, f.tenant, school.RewardInput{AttitudeID: a.ID.Hex(), StudentIDs: []string{ana.ID.Hex()}})
	require.NoError(t, err)
	assert.Equal(t, &school.RewardResult{Skipped: 1}, res)

	st, err := f.svc.ClaimAttitude(ctx, f.tenant, ana.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), st.Coins)
	assert.Equal(t, int64(20), st.XP)

	_, err = f.svc.ClaimAttitude(ctx, f.tenant, ana.ID, a.ID)
	assert.ErrorIs(t, err, school.ErrAlreadyClaimed)

	list, err := f.svc.StudentAttitudes(ctx, f.tenant, ana.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsClaimed)
	assert.Equal(t, "Helped a classmate", list[0].Title)

	require.NoError(t, f.svc.DeleteAttitude(ctx, f.tenant, a.ID))
	list, err = f.svc.StudentAttitudes(ctx, f.tenant, bia.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPurchase(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T, stock, maxPerUser int64) (*fixture, *school.Student, *school.Product) {
		t.Helper()
		f := newFixture(t)
		st := f.student(t, "Ana")
		p, err := f.svc.CreateProduct(context.Background(), f.tenant, school.ProductInput{
			Name: "Pencil", Description: "HB", Price: 50, Stock: stock, MaxPerUser: maxPerUser,
			Category: school.CategoryMaterial, ClassID: f.class.ID.Hex(),
		})
		require.NoError(t, err)
		return f, st, p
	}

	t.Run("insufficient coins leaves balances unchanged", func(t *testing.T) {
		t.Parallel()
		f, st, p := setup(t, 5, 1)
		ctx := context.Background()
		f.credit(t, st, 40)

		_, err := f.svc.Purchase(ctx, f.tenant, school.PurchaseInput{UserID: st.ID.Hex(), ProductID: p.ID.Hex()})
		assert.ErrorIs(t, err, school.ErrInsufficientCoins)

		got, err := f.svc.Student(ctx, f.tenant, st.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(40), got.Coins)
		prod, err := f.svc.Product(ctx, f.tenant, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), prod.Stock)
	})

	t.Run("debits coins and stock then enforces per-student limit", func(t *testing.T) {
		t.Parallel()
		f, st, p := setup(t, 5, 1)
		ctx := context.Background()
		f.credit(t, st, 120)

		purchase, err := f.svc.Purchase(ctx, f.tenant, school.PurchaseInput{UserID: st.ID.Hex(), ProductID: p.ID.Hex()})
		require.NoError(t, err)
		assert.Equal(t, int64(50), purchase.Price)

		got, err := f.svc.Student(ctx, f.tenant, st.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(70), got.Coins)
		prod, err := f.svc.Product(ctx, f.tenant, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(4), prod.Stock)

		_, err = f.svc.Purchase(ctx, f.tenant, school.PurchaseInput{UserID: st.ID.Hex(), ProductID: p.ID.Hex()})
		assert.ErrorIs(t, err, school.ErrPurchaseLimit)

		pending, err := f.svc.PendingPurchases(ctx, f.tenant)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "Ana", pending[0].StudentName)
		assert.Equal(t, "Pencil", pending[0].ProductName)

		delivered, err := f.svc.DeliverPurchase(ctx, f.tenant, purchase.ID)
		require.NoError(t, err)
		assert.True(t, delivered.IsDelivered)
		_, err = f.svc.DeliverPurchase(ctx, f.tenant, purchase.ID)
		assert.ErrorIs(t, err, school.ErrAlreadyDelivered)
	})

	t.Run("out of stock checked before student", func(t *testing.T) {
		t.Parallel()
		f, _, p := setup(t, 0, 1)
		_, err := f.svc.Purchase(context.Background(), f.tenant, school.PurchaseInput{UserID: bson.NewObjectID().Hex(), ProductID: p.ID.Hex()})
		assert.ErrorIs(t, err, school.ErrOutOfStock)
	})

	t.Run("unknown product", func(t *testing.T) {
		t.Parallel()
		f, st, _ := setup(t, 1, 1)
		_, err := f.svc.Purchase(context.Background(), f.tenant, school.PurchaseInput{UserID: st.ID.Hex(), ProductID: bson.NewObjectID().Hex()})
		assert.ErrorIs(t, err, school.ErrProductNotFound)
	})

	t.Run("student without class has no store", func(t *testing.T) {
		t.Parallel()
		f, _, _ := setup(t, 1, 1)
		st, err := f.svc.CreateStudent(context.Background(), f.tenant, school.CreateStudentInput{Name: "Solo"})
		require.NoError(t, err)
		_, err = f.svc.StudentProducts(context.Background(), f.tenant, st.ID)
		assert.ErrorIs(t, err, school.ErrStudentWithoutClass)
	})
}

func TestMemoryStore_TransactionRollsBack(t *testing.T) {
	t.Parallel()
	mem := school.NewMemoryStore()
	store := mem.Store()
	ctx := context.Background()
	tenantID := bson.NewObjectID()
	st := &school.Student{TenantID: tenantID, Name: "Ana", Coins: 100}
	require.NoError(t, store.Students.Insert(ctx, st))

	boom := errors.New("boom")
	err := store.Tx.Transaction(ctx, func(ctx context.Context) error {
		require.NoError(t, store.Students.Debit(ctx, tenantID, st.ID, 60))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Students.Get(ctx, tenantID, st.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Coins)
}

func TestHomeAndRanking(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	for i, name := range []string{"Ana", "Bia", "Caio", "Duda"} {
		st := f.student(t, name)
		f.credit(t, st, int64(10*(i+1)))
	}
	_, err := f.svc.CreateMission(ctx, f.tenant, school.MissionInput{Title: "M", ClassID: f.class.ID.Hex()})
	require.NoError(t, err)

	home, err := f.svc.Home(ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, int64(4), home.TotalUsers)
	assert.Equal(t, int64(1), home.TotalMissions)
	assert.Zero(t, home.TotalProducts)
	require.Len(t, home.TopStudents, 3)
	assert.Equal(t, "Duda", home.TopStudents[0].Name)
	assert.Equal(t, int64(40), home.TopStudents[0].Coins)

	ranking, err := f.svc.Ranking(ctx, f.tenant, school.RankXP)
	require.NoError(t, err)
	assert.Len(t, ranking, 4)
}

func TestQuota(t *testing.T) {
	t.Parallel()
	store := school.NewMemoryStore().Store()
	counters := school.NewService(store).Counters()
	enforcer := limits.NewEnforcer(limits.MustDefaultCatalog(), counters, func(context.Context, bson.ObjectID) (string, error) {
		return "trial", nil
	})
	svc := school.NewService(store, school.WithQuota(enforcer))

	ctx := context.Background()
	tenantID := bson.NewObjectID()
	for i := range 2 {
		_, err := svc.CreateClass(ctx, tenantID, school.ClassInput{Name: "C", Code: fmt.Sprintf("C%d", i)})
		require.NoError(t, err)
	}
	_, err := svc.CreateClass(ctx, tenantID, school.ClassInput{Name: "C", Code: "C3"})
	var limitErr *limits.LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, int64(2), limitErr.Current)
	assert.Equal(t, int64(2), limitErr.Limit)
	assert.ErrorIs(t, err, limits.ErrLimitExceeded)

	classes, err := svc.Classes(ctx, tenantID)
	require.NoError(t, err)
	assert.Len(t, classes, 2)
}
