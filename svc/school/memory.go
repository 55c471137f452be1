package school

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MemoryStore keeps every school collection in process, for tests and
// local runs. Transactions roll back on error but are not isolated from
// writes made outside them.
type MemoryStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	students    map[bson.ObjectID]Student
	classes     map[bson.ObjectID]Class
	missions    map[bson.ObjectID]Mission
	attitudes   map[bson.ObjectID]Attitude
	assignments map[bson.ObjectID]Assignment
	products    map[bson.ObjectID]Product
	purchases   map[bson.ObjectID]Purchase
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		students:    make(map[bson.ObjectID]Student),
		classes:     make(map[bson.ObjectID]Class),
		missions:    make(map[bson.ObjectID]Mission),
		attitudes:   make(map[bson.ObjectID]Attitude),
		assignments: make(map[bson.ObjectID]Assignment),
		products:    make(map[bson.ObjectID]Product),
		purchases:   make(map[bson.ObjectID]Purchase),
	}
}

// Store returns the repositories backed by m.
func (m *MemoryStore) Store() Store {
	return Store{
		Students:    memStudents{m},
		Classes:     memClasses{m},
		Missions:    memMissions{m},
		Attitudes:   memAttitudes{m},
		Assignments: memAssignments{m},
		Products:    memProducts{m},
		Purchases:   memPurchases{m},
		Tx:          m,
	}
}

type memorySnapshot struct {
	students    map[bson.ObjectID]Student
	classes     map[bson.ObjectID]Class
	missions    map[bson.ObjectID]Mission
	attitudes   map[bson.ObjectID]Attitude
	assignments map[bson.ObjectID]Assignment
	products    map[bson.ObjectID]Product
	purchases   map[bson.ObjectID]Purchase
}

// Transaction restores every collection when fn fails. Stored slices are
// never mutated in place, so a shallow copy is a full snapshot.
func (m *MemoryStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snap := memorySnapshot{
		students:    maps.Clone(m.students),
		classes:     maps.Clone(m.classes),
		missions:    maps.Clone(m.missions),
		attitudes:   maps.Clone(m.attitudes),
		assignments: maps.Clone(m.assignments),
		products:    maps.Clone(m.products),
		purchases:   maps.Clone(m.purchases),
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.students, m.classes, m.missions = snap.students, snap.classes, snap.missions
		m.attitudes, m.assignments = snap.attitudes, snap.assignments
		m.products, m.purchases = snap.products, snap.purchases
		m.mu.Unlock()
		return err
	}
	return nil
}

type keyed interface {
	key() (id, tenantID bson.ObjectID)
}

func getIn[T keyed](table map[bson.ObjectID]T, tenantID, id bson.ObjectID, notFound error) (T, error) {
	v, ok := table[id]
	if _, owner := v.key(); !ok || owner != tenantID {
		var zero T
		return zero, notFound
	}
	return v, nil
}

func listIn[T keyed](table map[bson.ObjectID]T, match func(T) bool, order func(a, b T) int) []T {
	out := []T{}
	for _, v := range table {
		if match(v) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, order)
	return out
}

func countIn[T keyed](table map[bson.ObjectID]T, match func(T) bool) int64 {
	var n int64
	for _, v := range table {
		if match(v) {
			n++
		}
	}
	return n
}

func deleteIn[T keyed](table map[bson.ObjectID]T, tenantID, id bson.ObjectID, notFound error) error {
	if _, err := getIn(table, tenantID, id, notFound); err != nil {
		return err
	}
	delete(table, id)
	return nil
}

func ofTenant[T keyed](tenantID bson.ObjectID) func(T) bool {
	return func(v T) bool {
		_, owner := v.key()
		return owner == tenantID
	}
}

func newestFirst[T any](created func(T) time.Time) func(a, b T) int {
	return func(a, b T) int { return created(b).Compare(created(a)) }
}

func withAdded(ids []bson.ObjectID, add ...bson.ObjectID) []bson.ObjectID {
	out := slices.Clone(ids)
	for _, id := range add {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

type memStudents struct{ m *MemoryStore }

func (r memStudents) Insert(_ context.Context, s *Student) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if s.ID.IsZero() {
		s.ID = bson.NewObjectID()
	}
	cp := *s
	cp.CompletedMissions = slices.Clone(s.CompletedMissions)
	r.m.students[s.ID] = cp
	return nil
}

func (r memStudents) Get(_ context.Context, tenantID, id bson.ObjectID) (*Student, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, err := getIn(r.m.students, tenantID, id, ErrStudentNotFound)
	if err != nil {
		return nil, err
	}
	s.CompletedMissions = slices.Clone(s.CompletedMissions)
	return &s, nil
}

func (r memStudents) List(_ context.Context, tenantID, classID bson.ObjectID) ([]Student, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return listIn(r.m.students, func(s Student) bool {
		return s.TenantID == tenantID && (classID.IsZero() || s.ClassID == classID)
	}, func(a, b Student) int { return cmp.Compare(a.Name, b.Name) }), nil
}

func (r memStudents) Update(_ context.Context, s *Student) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cur, err := getIn(r.m.students, s.TenantID, s.ID, ErrStudentNotFound)
	if err != nil {
		return err
	}
	cur.Name = s.Name
	cur.ClassID = s.ClassID
	r.m.students[s.ID] = cur
	return nil
}

func (r memStudents) Delete(_ context.Context, tenantID, id bson.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return deleteIn(r.m.students, tenantID, id, ErrStudentNotFound)
}

func (r memStudents) Count(_ context.Context, tenantID bson.ObjectID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return countIn(r.m.students, ofTenant[Student](tenantID)), nil
}

func (r memStudents) CountIDs(_ context.Context, tenantID bson.ObjectID, ids []bson.ObjectID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return countIn(r.m.students, func(s Student) bool {
		return s.TenantID == tenantID && slices.Contains(ids, s.ID)
	}), nil
}

func (r memStudents) Ranking(_ context.Context, tenantID bson.ObjectID, by Rank, limit int64) ([]Student, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	score := func(s Student) int64 { return s.Coins }
	if by == RankXP {
		score = func(s Student) int64 { return s.XP }
	}
	out := listIn(r.m.students, ofTenant[Student](tenantID), func(a, b Student) int {
		if c := cmp.Compare(score(b), score(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].CompletedMissions = nil
		out[i].QRCode = ""
	}
	return out, nil
}

func (r memStudents) Reward(_ context.Context, tenantID, id bson.ObjectID, coins, xp int64, missionID bson.ObjectID) (*Student, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, err := getIn(r.m.students, tenantID, id, ErrStudentNotFound)
	if err != nil {
		return nil, err
	}
	if !missionID.IsZero() {
		if s.hasCompleted(missionID) {
			return nil, ErrMissionCompleted
		}
		s.CompletedMissions = withAdded(s.CompletedMissions, missionID)
	}
	s.Coins += coins
	s.XP += xp
	r.m.students[id] = s
	s.CompletedMissions = slices.Clone(s.CompletedMissions)
	return &s, nil
}

func (r memStudents) Debit(_ context.Context, tenantID, id bson.ObjectID, amount int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, err := getIn(r.m.students, tenantID, id, ErrStudentNotFound)
	if err != nil {
		return err
	}
	if s.Coins < amount {
		return ErrInsufficientCoins
	}
	s.Coins -= amount
	r.m.students[id] = s
	return nil
}

func (r memStudents) ClearClass(_ context.Context, tenantID, classID bson.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, s := range r.m.students {
		if s.TenantID == tenantID && s.ClassID == classID {
			s.ClassID = bson.NilObjectID
			r.m.students[id] = s
		}
	}
	return nil
}

type memClasses struct{ m *MemoryStore }

func (r memClasses) codeTaken(c *Class) bool {
	for _, other := range r.m.classes {
		if other.TenantID == c.TenantID && other.Code == c.Code && other.ID != c.ID {
			return true
		}
	}
	return false
}

func (r memClasses) Insert(_ context.Context, c *Class) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = bson.NewObjectID()
	}
	if r.codeTaken(c) {
		return ErrDuplicateClassCode
	}
	cp := *c
	cp.Students = slices.Clone(c.Students)
	if cp.Students == nil {
		cp.Students = []bson.ObjectID{}
	}
	r.m.classes[c.ID] = cp
	return nil
}

func (r memClasses) Get(_ context.Context, tenantID, id bson.ObjectID) (*Class, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, err := getIn(r.m.classes, tenantID, id, ErrClassNotFound)
	if err != nil {
		return nil, err
	}
	c.Students = slices.Clone(c.Students)
	return &c, nil
}

func (r memClasses) List(_ context.Context, tenantID bson.ObjectID) ([]Class, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return listIn(r.m.classes, ofTenant[Class](tenantID), func(a, b Class) int { return cmp.Compare(a.Name, b.Name) }), nil
}

func (r memClasses) Update(_ context.Context, c *Class) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cur, err := getIn(r.m.classes, c.TenantID, c.ID, ErrClassNotFound)
	if err != nil {
		return err
	}
	if r.codeTaken(c) {
		return ErrDuplicateClassCode
	}
	cur.Name, cur.Code = c.Name, c.Code
	r.m.classes[c.ID] = cur
	return nil
}

func (r memClasses) Delete(_ context.Context, tenantID, id bson.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return deleteIn(r.m.classes, tenantID, id, ErrClassNotFound)
}

func (r memClasses) Count(_ context.Context, tenantID bson.ObjectID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return countIn(r.m.classes, ofTenant[Class](tenantID)), nil
}

func (r memClasses) CountIDs(_ context.Context, tenantID bson.ObjectID, ids []bson.ObjectID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return countIn(r.m.classes, func(c Class) bool {
		return c.TenantID == tenantID && slices.Contains(ids, c.ID)
	}), nil
}

func (r memClasses) AddStudent(_ context.Context, tenantID, classID, studentID bson.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, err := getIn(r.m.classes, tenantID, classID, ErrClassNotFound)
	if err != nil {
		return err
	}
	c.Students = withAdded(c.Students, studentID)
	r.m.classes[classID] = c
	return nil
}

func (r memClasses) RemoveStudent(_ context.Context, tenantID, classID, studentID bson.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, err := getIn(r.m.classes, tenantID, classID, ErrClassNotFound)
	if err != nil {
		return err
	}
	c.Students = slices.DeleteFunc(slices.Clone(c.Students), func(id bson.ObjectID) bool { return id == studentID })
	r.m.classes[classID] = c
	return nil
}

type memMissions struct{ m *MemoryStore }

func cloneMission(m Mission) Mission {
	m.AllowedUsers = slices.Clone(m.AllowedUsers)
	m.CompletedBy = slices.Clone(m.CompletedBy)
	if m.AllowedUsers == nil {
		m.AllowedUsers = []bson.ObjectID{}
	}
	if m.CompletedBy == nil {
		m.CompletedBy = []bson.ObjectID{}
	}
	return m
}

func (r memMissions) Insert(_ context.Context, mi *Mission) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if mi.ID.IsZero() {
		mi.ID = bson.NewObjectID()
	}
	r.m.missions[mi.ID] = cloneMission(*mi)
	return nil
}

func (r memMissions) Get(_ context.Context, tenantID, id bson.ObjectID) (*Mission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	mi, err := getIn(r.m.missions, tenantID, id, ErrMissionNotFound)
	if err != nil {
		return nil, err
	}
	mi = cloneMission(mi)
	return &mi, nil
}

func (r memMissions) List(_ context.Context, tenantID, classID bson.ObjectID) ([]Mission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := listIn(r.m.missions, func(mi Mission) bool {
		return mi.TenantID == tenantID && (classID.IsZero() || mi.ClassID == classID)
	}, newestFirst(func(mi Mission) time.Time { return mi.CreatedAt }))
	for i := range out {
		out[i] = cloneMission(out[i])
	}
	return out, nil
}

func (r memMissions) Update(_ context.Context, mi *Mission) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cur, err := getIn(r.m.missions, mi.TenantID, mi.ID, ErrMissionNotFound)
	if err != nil {
		return err
	}
	cur.Title, cur.Description, cur.Coins, cur.ClassID = mi.Title, mi.Description, mi.Coins, mi.ClassID
	r.m.missions[mi.ID] = cur
	return nil
}

func (r memMissions) Delete(_ context.Context, tenantID, id bson.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return deleteIn(r.m.missions, tenantID, id, ErrMissionNotFound)
}

func (r memMissions) Count(_ context.Context, tenantID bson.ObjectID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return countIn(r.m.missions, ofTenant[Mission](tenantID)), nil
}

func (r memMissions) Allow(_ context.Context, tenantID, id bson.ObjectID, userIDs []bson.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	mi, err := getIn(r.m.missions, tenantID, id, ErrMissionNotFound)
	if err != nil {
		return err
	}
	mi.AllowedUsers = withAdded(mi.AllowedUsers, userIDs...)
	r.m.missions[id] = mi
	return nil
}

func (r memMissions) MarkCompleted(_ context.Context, tenantID, id, userID bson.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	mi, err := getIn(r.m.missions, tenantID, id, ErrMissionNotFound)
	if err != nil {
		return err
	}
	mi.CompletedBy = withAdded(mi.CompletedBy, userID)
	r.m.missions[id] = mi
	return nil
}

type memAttitudes struct{ m *MemoryStore }

func (r memAttitudes) Insert(_ context.Context, a *Attitude) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = bson.NewObjectID()
	}
	r.m.attitudes[a.ID] = *a
	return nil
}

func (r memAttitudes) Get(_ context.Context, tenantID, id bson.ObjectID) (*Attitude, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, err := getIn(r.m.attitudes, tenantID, id, ErrAttitudeNotFound)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r memAttitudes) List(_ context.Context, tenantID bson.ObjectID) ([]Attitude, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return listIn(r.m.attitudes, ofTenant[Attitude](tenantID), newestFirst(func(a Attitude) time.Time { return a.CreatedAt })), nil
}

func (r memAttitudes) Update(_ context.Context, a *Attitude) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cur, err := getIn(r.m.attitudes, a.TenantID, a.ID, ErrAttitudeNotFound)
	if err != nil {
		return err
	}
	a.CreatedAt = cur.CreatedAt
	r.m.attitudes[a.ID] = *a
	return nil
}

func (r memAttitudes) Delete(_ context.Context, tenantID, id bson.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return deleteIn(r.m.attitudes, tenantID, id, ErrAttitudeNotFound)
}

func (r memAttitudes) Count(_ context.Context, tenantID bson.ObjectID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return countIn(r.m.attitudes, ofTenant[Attitude](tenantID)), nil
}

type memAssignments struct{ m *MemoryStore }

func (r memAssignments) Insert(_ context.Context, a *Assignment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = bson.NewObjectID()
	}
	r.m.assignments[a.ID] = *a
	return nil
}

func (r memAssignments) Find(_ context.Context, tenantID, attitudeID, userID bson.ObjectID) (*Assignment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	found := listIn(r.m.assignments, func(a Assignment) bool {
		return a.TenantID == tenantID && a.AttitudeID == attitudeID && a.UserID == userID
	}, func(a, b Assignment) int {
		if a.IsClaimed != b.IsClaimed {
			if a.IsClaimed {
				return 1
			}
			return -1
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(found) == 0 {
		return nil, ErrAssignmentNotFound
	}
	return &found[0], nil
}

func (r memAssignments) ListByUser(_ context.Context, tenantID, userID bson.ObjectID) ([]Assignment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return listIn(r.m.assignments, func(a Assignment) bool {
		return a.TenantID == tenantID && a.UserID == userID
	}, newestFirst(func(a Assignment) time.Time { return a.CreatedAt })), nil
}

func (r memAssignments) Claim(_ context.Context, tenantID, id bson.ObjectID, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, err := getIn(r.m.assignments, tenantID, id, ErrAssignmentNotFound)
	if err != nil {
		return err
	}
	if a.IsClaimed {
		return ErrAlreadyClaimed
	}
	a.IsClaimed = true
	a.ClaimedAt = &at
	r.m.assignments[id] = a
	return nil
}

func (r memAssignments) DeleteByAttitude(_ context.Context, tenantID, attitudeID bson.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	maps.DeleteFunc(r.m.assignments, func(_ bson.ObjectID, a Assignment) bool {
		return a.TenantID == tenantID && a.AttitudeID == attitudeID
	})
	return nil
}

type memProducts struct{ m *MemoryStore }

func (r memProducts) Insert(_ context.Context, p *Product) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = bson.NewObjectID()
	}
	r.m.products[p.ID] = *p
	return nil
}

func (r memProducts) Get(_ context.Context, tenantID, id bson.ObjectID) (*Product, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, err := getIn(r.m.products, tenantID, id, ErrProductNotFound)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r memProducts) List(_ context.Context, tenantID, classID bson.ObjectID) ([]Product, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return listIn(r.m.products, func(p Product) bool {
		return p.TenantID == tenantID && (classID.IsZero() || p.ClassID == classID)
	}, func(a, b Product) int { return cmp.Compare(a.Name, b.Name) }), nil
}

func (r memProducts) Update(_ context.Context, p *Product) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cur, err := getIn(r.m.products, p.TenantID, p.ID, ErrProductNotFound)
	if err != nil {
		return err
	}
	p.CreatedAt = cur.CreatedAt
	r.m.products[p.ID] = *p
	return nil
}

func (r memProducts) Delete(_ context.Context, tenantID, id bson.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return deleteIn(r.m.products, tenantID, id, ErrProductNotFound)
}

func (r memProducts) Count(_ context.Context, tenantID bson.ObjectID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return countIn(r.m.products, ofTenant[Product](tenantID)), nil
}

func (r memProducts) CountInStock(_ context.Context, tenantID bson.ObjectID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return countIn(r.m.products, func(p Product) bool { return p.TenantID == tenantID && p.Stock > 0 }), nil
}

func (r memProducts) DecrementStock(_ context.Context, tenantID, id bson.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, err := getIn(r.m.products, tenantID, id, ErrProductNotFound)
	if err != nil {
		return err
	}
	if p.Stock <= 0 {
		return ErrOutOfStock
	}
	p.Stock--
	r.m.products[id] = p
	return nil
}

type memPurchases struct{ m *MemoryStore }

func (r memPurchases) Insert(_ context.Context, p *Purchase) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = bson.NewObjectID()
	}
	r.m.purchases[p.ID] = *p
	return nil
}

func (r memPurchases) ListPending(_ context.Context, tenantID bson.ObjectID) ([]Purchase, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return listIn(r.m.purchases, func(p Purchase) bool {
		return p.TenantID == tenantID && !p.IsDelivered
	}, func(a, b Purchase) int { return a.CreatedAt.Compare(b.CreatedAt) }), nil
}

func (r memPurchases) CountPending(_ context.Context, tenantID bson.ObjectID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return countIn(r.m.purchases, func(p Purchase) bool { return p.TenantID == tenantID && !p.IsDelivered }), nil
}

func (r memPurchases) CountFor(_ context.Context, tenantID, userID, productID bson.ObjectID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return countIn(r.m.purchases, func(p Purchase) bool {
		return p.TenantID == tenantID && p.UserID == userID && p.ProductID == productID
	}), nil
}

func (r memPurchases) Deliver(_ context.Context, tenantID, id bson.ObjectID, at time.Time) (*Purchase, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, err := getIn(r.m.purchases, tenantID, id, ErrPurchaseNotFound)
	if err != nil {
		return nil, err
	}
	if p.IsDelivered {
		return nil, ErrAlreadyDelivered
	}
	p.IsDelivered = true
	p.DeliveredAt = &at
	r.m.purchases[id] = p
	return &p, nil
}
