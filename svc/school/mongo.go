package school

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongodb "github.com/dmitrymomot/leveledu/pkg/mongo"
)

// NewMongoStore returns a Store backed by db. Purchases need a replica set
// for their transaction.
func NewMongoStore(client *mongo.Client, db *mongo.Database) Store {
	return Store{
		Students:    &mongoStudents{c: newCollection[Student](db, StudentsCollection, ErrStudentNotFound)},
		Classes:     &mongoClasses{c: newCollection[Class](db, ClassesCollection, ErrClassNotFound)},
		Missions:    &mongoMissions{c: newCollection[Mission](db, MissionsCollection, ErrMissionNotFound)},
		Attitudes:   &mongoAttitudes{c: newCollection[Attitude](db, AttitudesCollection, ErrAttitudeNotFound)},
		Assignments: &mongoAssignments{c: newCollection[Assignment](db, AssignmentsCollection, ErrAssignmentNotFound)},
		Products:    &mongoProducts{c: newCollection[Product](db, ProductsCollection, ErrProductNotFound)},
		Purchases:   &mongoPurchases{c: newCollection[Purchase](db, PurchasesCollection, ErrPurchaseNotFound)},
		Tx:          mongoTx{client: client},
	}
}

// Indexes returns the indexes the school collections rely on.
func Indexes() []mongodb.IndexSet {
	byTenant := mongo.IndexModel{Keys: bson.D{{Key: "tenantId", Value: 1}}}
	return []mongodb.IndexSet{
		{Collection: StudentsCollection, Models: []mongo.IndexModel{
			{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "coins", Value: -1}}},
			{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "xp", Value: -1}}},
			{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "classId", Value: 1}}},
		}},
		{Collection: ClassesCollection, Models: []mongo.IndexModel{
			{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{Collection: MissionsCollection, Models: []mongo.IndexModel{
			{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "classId", Value: 1}}},
		}},
		{Collection: AttitudesCollection, Models: []mongo.IndexModel{byTenant}},
		{Collection: AssignmentsCollection, Models: []mongo.IndexModel{
			{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "userId", Value: 1}, {Key: "attitudeId", Value: 1}}},
		}},
		{Collection: ProductsCollection, Models: []mongo.IndexModel{
			{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "classId", Value: 1}}},
		}},
		{Collection: PurchasesCollection, Models: []mongo.IndexModel{
			{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "isDelivered", Value: 1}}},
			{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "userId", Value: 1}, {Key: "productId", Value: 1}}},
		}},
	}
}

type mongoTx struct{ client *mongo.Client }

func (t mongoTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return mongodb.Transaction(ctx, t.client, fn)
}

// collection wraps the tenant-scoped CRUD shared by every repository.
type collection[T any] struct {
	coll     *mongo.Collection
	notFound error
}

func newCollection[T any](db *mongo.Database, name string, notFound error) collection[T] {
	return collection[T]{coll: db.Collection(name), notFound: notFound}
}

func byID(tenantID, id bson.ObjectID) bson.M {
	return bson.M{"_id": id, "tenantId": tenantID}
}

func (c collection[T]) insert(ctx context.Context, doc any) error {
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert into %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c collection[T]) findOne(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOneOptions]) (*T, error) {
	var out T
	if err := c.coll.FindOne(ctx, filter, opts...).Decode(&out); err != nil {
		if mongodb.IsNotFound(err) {
			return nil, c.notFound
		}
		return nil, fmt.Errorf("find in %s: %w", c.coll.Name(), err)
	}
	return &out, nil
}

func (c collection[T]) find(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOptions]) ([]T, error) {
	cur, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.coll.Name(), err)
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.coll.Name(), err)
	}
	return out, nil
}

// update applies update to the document matching filter and reports
// whether one matched.
func (c collection[T]) update(ctx context.Context, filter, update bson.M) (bool, error) {
	res, err := c.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", c.coll.Name(), err)
	}
	return res.MatchedCount > 0, nil
}

// updateByID is update for one record that must exist.
func (c collection[T]) updateByID(ctx context.Context, tenantID, id bson.ObjectID, update bson.M) error {
	ok, err := c.update(ctx, byID(tenantID, id), update)
	if err != nil {
		return err
	}
	if !ok {
		return c.notFound
	}
	return nil
}

// conditional runs a guarded update. When the guard fails it tells a
// missing record from a refused one.
func (c collection[T]) conditional(ctx context.Context, tenantID, id bson.ObjectID, guard, update bson.M, refused error) error {
	filter := byID(tenantID, id)
	for k, v := range guard {
		filter[k] = v
	}
	ok, err := c.update(ctx, filter, update)
	if err != nil || ok {
		return err
	}
	n, err := c.coll.CountDocuments(ctx, byID(tenantID, id))
	if err != nil {
		return fmt.Errorf("count %s: %w", c.coll.Name(), err)
	}
	if n == 0 {
		return c.notFound
	}
	return refused
}

func (c collection[T]) delete(ctx context.Context, tenantID, id bson.ObjectID) error {
	res, err := c.coll.DeleteOne(ctx, byID(tenantID, id))
	if err != nil {
		return fmt.Errorf("delete from %s: %w", c.coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return c.notFound
	}
	return nil
}

func (c collection[T]) count(ctx context.Context, filter bson.M) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.coll.Name(), err)
	}
	return n, nil
}

type mongoStudents struct{ c collection[Student] }

func (r *mongoStudents) Insert(ctx context.Context, s *Student) error {
	if s.ID.IsZero() {
		s.ID = bson.NewObjectID()
	}
	return r.c.insert(ctx, s)
}

func (r *mongoStudents) Get(ctx context.Context, tenantID, id bson.ObjectID) (*Student, error) {
	return r.c.findOne(ctx, byID(tenantID, id))
}

func (r *mongoStudents) List(ctx context.Context, tenantID, classID bson.ObjectID) ([]Student, error) {
	filter := bson.M{"tenantId": tenantID}
	if !classID.IsZero() {
		filter["classId"] = classID
	}
	return r.c.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (r *mongoStudents) Update(ctx context.Context, s *Student) error {
	set := bson.M{"name": s.Name}
	update := bson.M{"$set": set}
	if s.ClassID.IsZero() {
		update["$unset"] = bson.M{"classId": ""}
	} else {
		set["classId"] = s.ClassID
	}
	return r.c.updateByID(ctx, s.TenantID, s.ID, update)
}

func (r *mongoStudents) Delete(ctx context.Context, tenantID, id bson.ObjectID) error {
	return r.c.delete(ctx, tenantID, id)
}

func (r *mongoStudents) Count(ctx context.Context, tenantID bson.ObjectID) (int64, error) {
	return r.c.count(ctx, bson.M{"tenantId": tenantID})
}

func (r *mongoStudents) CountIDs(ctx context.Context, tenantID bson.ObjectID, ids []bson.ObjectID) (int64, error) {
	return r.c.count(ctx, bson.M{"tenantId": tenantID, "_id": bson.M{"$in": ids}})
}

func (r *mongoStudents) Ranking(ctx context.Context, tenantID bson.ObjectID, by Rank, limit int64) ([]Student, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: string(by), Value: -1}, {Key: "name", Value: 1}}).
		SetProjection(bson.M{"name": 1, "coins": 1, "xp": 1, "classId": 1, "tenantId": 1})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return r.c.find(ctx, bson.M{"tenantId": tenantID}, opts)
}

func (r *mongoStudents) Reward(ctx context.Context, tenantID, id bson.ObjectID, coins, xp int64, missionID bson.ObjectID) (*Student, error) {
	guard := bson.M{}
	update := bson.M{"$inc": bson.M{"coins": coins, "xp": xp}}
	if !missionID.IsZero() {
		guard["completedMissions"] = bson.M{"$ne": missionID}
		update["$push"] = bson.M{"completedMissions": missionID}
	}
	if err := r.c.conditional(ctx, tenantID, id, guard, update, ErrMissionCompleted); err != nil {
		return nil, err
	}
	return r.Get(ctx, tenantID, id)
}

func (r *mongoStudents) Debit(ctx context.Context, tenantID, id bson.ObjectID, amount int64) error {
	return r.c.conditional(ctx, tenantID, id,
		bson.M{"coins": bson.M{"$gte": amount}},
		bson.M{"$inc": bson.M{"coins": -amount}},
		ErrInsufficientCoins)
}

func (r *mongoStudents) ClearClass(ctx context.Context, tenantID, classID bson.ObjectID) error {
	_, err := r.c.coll.UpdateMany(ctx,
		bson.M{"tenantId": tenantID, "classId": classID},
		bson.M{"$unset": bson.M{"classId": ""}})
	if err != nil {
		return fmt.Errorf("clear class: %w", err)
	}
	return nil
}

type mongoClasses struct{ c collection[Class] }

func (r *mongoClasses) Insert(ctx context.Context, cl *Class) error {
	if cl.ID.IsZero() {
		cl.ID = bson.NewObjectID()
	}
	if cl.Students == nil {
		cl.Students = []bson.ObjectID{}
	}
	if _, err := r.c.coll.InsertOne(ctx, cl); err != nil {
		if mongodb.IsDuplicateKey(err) {
			return ErrDuplicateClassCode
		}
		return fmt.Errorf("insert class: %w", err)
	}
	return nil
}

func (r *mongoClasses) Get(ctx context.Context, tenantID, id bson.ObjectID) (*Class, error) {
	return r.c.findOne(ctx, byID(tenantID, id))
}

func (r *mongoClasses) List(ctx context.Context, tenantID bson.ObjectID) ([]Class, error) {
	return r.c.find(ctx, bson.M{"tenantId": tenantID}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (r *mongoClasses) Update(ctx context.Context, cl *Class) error {
	err := r.c.updateByID(ctx, cl.TenantID, cl.ID, bson.M{"$set": bson.M{"name": cl.Name, "code": cl.Code}})
	if mongodb.IsDuplicateKey(err) {
		return ErrDuplicateClassCode
	}
	return err
}

func (r *mongoClasses) Delete(ctx context.Context, tenantID, id bson.ObjectID) error {
	return r.c.delete(ctx, tenantID, id)
}

func (r *mongoClasses) Count(ctx context.Context, tenantID bson.ObjectID) (int64, error) {
	return r.c.count(ctx, bson.M{"tenantId": tenantID})
}

func (r *mongoClasses) CountIDs(ctx context.Context, tenantID bson.ObjectID, ids []bson.ObjectID) (int64, error) {
	return r.c.count(ctx, bson.M{"tenantId": tenantID, "_id": bson.M{"$in": ids}})
}

func (r *mongoClasses) AddStudent(ctx context.Context, tenantID, classID, studentID bson.ObjectID) error {
	return r.c.updateByID(ctx, tenantID, classID, bson.M{"$addToSet": bson.M{"students": studentID}})
}

func (r *mongoClasses) RemoveStudent(ctx context.Context, tenantID, classID, studentID bson.ObjectID) error {
	return r.c.updateByID(ctx, tenantID, classID, bson.M{"$pull": bson.M{"students": studentID}})
}

type mongoMissions struct{ c collection[Mission] }

func (r *mongoMissions) Insert(ctx context.Context, m *Mission) error {
	if m.ID.IsZero() {
		m.ID = bson.NewObjectID()
	}
	if m.AllowedUsers == nil {
		m.AllowedUsers = []bson.ObjectID{}
	}
	if m.CompletedBy == nil {
		m.CompletedBy = []bson.ObjectID{}
	}
	return r.c.insert(ctx, m)
}

func (r *mongoMissions) Get(ctx context.Context, tenantID, id bson.ObjectID) (*Mission, error) {
	return r.c.findOne(ctx, byID(tenantID, id))
}

func (r *mongoMissions) List(ctx context.Context, tenantID, classID bson.ObjectID) ([]Mission, error) {
	filter := bson.M{"tenantId": tenantID}
	if !classID.IsZero() {
		filter["classId"] = classID
	}
	return r.c.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *mongoMissions) Update(ctx context.Context, m *Mission) error {
	return r.c.updateByID(ctx, m.TenantID, m.ID, bson.M{"$set": bson.M{
		"title":       m.Title,
		"description": m.Description,
		"coins":       m.Coins,
		"classId":     m.ClassID,
	}})
}

func (r *mongoMissions) Delete(ctx context.Context, tenantID, id bson.ObjectID) error {
	return r.c.delete(ctx, tenantID, id)
}

func (r *mongoMissions) Count(ctx context.Context, tenantID bson.ObjectID) (int64, error) {
	return r.c.count(ctx, bson.M{"tenantId": tenantID})
}

func (r *mongoMissions) Allow(ctx context.Context, tenantID, id bson.ObjectID, userIDs []bson.ObjectID) error {
	return r.c.updateByID(ctx, tenantID, id, bson.M{"$addToSet": bson.M{"allowedUsers": bson.M{"$each": userIDs}}})
}

func (r *mongoMissions) MarkCompleted(ctx context.Context, tenantID, id, userID bson.ObjectID) error {
	return r.c.updateByID(ctx, tenantID, id, bson.M{"$addToSet": bson.M{"completedBy": userID}})
}

type mongoAttitudes struct{ c collection[Attitude] }

func (r *mongoAttitudes) Insert(ctx context.Context, a *Attitude) error {
	if a.ID.IsZero() {
		a.ID = bson.NewObjectID()
	}
	return r.c.insert(ctx, a)
}

func (r *mongoAttitudes) Get(ctx context.Context, tenantID, id bson.ObjectID) (*Attitude, error) {
	return r.c.findOne(ctx, byID(tenantID, id))
}

func (r *mongoAttitudes) List(ctx context.Context, tenantID bson.ObjectID) ([]Attitude, error) {
	return r.c.find(ctx, bson.M{"tenantId": tenantID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *mongoAttitudes) Update(ctx context.Context, a *Attitude) error {
	return r.c.updateByID(ctx, a.TenantID, a.ID, bson.M{"$set": bson.M{
		"title":       a.Title,
		"description": a.Description,
		"type":        a.Type,
		"coins":       a.Coins,
		"xp":          a.XP,
		"classId":     a.ClassID,
	}})
}

func (r *mongoAttitudes) Delete(ctx context.Context, tenantID, id bson.ObjectID) error {
	return r.c.delete(ctx, tenantID, id)
}

func (r *mongoAttitudes) Count(ctx context.Context, tenantID bson.ObjectID) (int64, error) {
	return r.c.count(ctx, bson.M{"tenantId": tenantID})
}

type mongoAssignments struct{ c collection[Assignment] }

func (r *mongoAssignments) Insert(ctx context.Context, a *Assignment) error {
	if a.ID.IsZero() {
		a.ID = bson.NewObjectID()
	}
	return r.c.insert(ctx, a)
}

func (r *mongoAssignments) Find(ctx context.Context, tenantID, attitudeID, userID bson.ObjectID) (*Assignment, error) {
	return r.c.findOne(ctx,
		bson.M{"tenantId": tenantID, "attitudeId": attitudeID, "userId": userID},
		options.FindOne().SetSort(bson.D{{Key: "isClaimed", Value: 1}, {Key: "createdAt", Value: -1}}))
}

func (r *mongoAssignments) ListByUser(ctx context.Context, tenantID, userID bson.ObjectID) ([]Assignment, error) {
	return r.c.find(ctx, bson.M{"tenantId": tenantID, "userId": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *mongoAssignments) Claim(ctx context.Context, tenantID, id bson.ObjectID, at time.Time) error {
	return r.c.conditional(ctx, tenantID, id,
		bson.M{"isClaimed": false},
		bson.M{"$set": bson.M{"isClaimed": true, "claimedAt": at}},
		ErrAlreadyClaimed)
}

func (r *mongoAssignments) DeleteByAttitude(ctx context.Context, tenantID, attitudeID bson.ObjectID) error {
	if _, err := r.c.coll.DeleteMany(ctx, bson.M{"tenantId": tenantID, "attitudeId": attitudeID}); err != nil {
		return fmt.Errorf("delete assignments: %w", err)
	}
	return nil
}

type mongoProducts struct{ c collection[Product] }

func (r *mongoProducts) Insert(ctx context.Context, p *Product) error {
	if p.ID.IsZero() {
		p.ID = bson.NewObjectID()
	}
	return r.c.insert(ctx, p)
}

func (r *mongoProducts) Get(ctx context.Context, tenantID, id bson.ObjectID) (*Product, error) {
	return r.c.findOne(ctx, byID(tenantID, id))
}

func (r *mongoProducts) List(ctx context.Context, tenantID, classID bson.ObjectID) ([]Product, error) {
	filter := bson.M{"tenantId": tenantID}
	if !classID.IsZero() {
		filter["classId"] = classID
	}
	return r.c.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (r *mongoProducts) Update(ctx context.Context, p *Product) error {
	return r.c.updateByID(ctx, p.TenantID, p.ID, bson.M{"$set": bson.M{
		"name":        p.Name,
		"description": p.Description,
		"price":       p.Price,
		"stock":       p.Stock,
		"maxPerUser":  p.MaxPerUser,
		"category":    p.Category,
		"classId":     p.ClassID,
	}})
}

func (r *mongoProducts) Delete(ctx context.Context, tenantID, id bson.ObjectID) error {
	return r.c.delete(ctx, tenantID, id)
}

func (r *mongoProducts) Count(ctx context.Context, tenantID bson.ObjectID) (int64, error) {
	return r.c.count(ctx, bson.M{"tenantId": tenantID})
}

func (r *mongoProducts) CountInStock(ctx context.Context, tenantID bson.ObjectID) (int64, error) {
	return r.c.count(ctx, bson.M{"tenantId": tenantID, "stock": bson.M{"$gt": 0}})
}

func (r *mongoProducts) DecrementStock(ctx context.Context, tenantID, id bson.ObjectID) error {
	return r.c.conditional(ctx, tenantID, id,
		bson.M{"stock": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"stock": -1}},
		ErrOutOfStock)
}

type mongoPurchases struct{ c collection[Purchase] }

func (r *mongoPurchases) Insert(ctx context.Context, p *Purchase) error {
	if p.ID.IsZero() {
		p.ID = bson.NewObjectID()
	}
	return r.c.insert(ctx, p)
}

func (r *mongoPurchases) ListPending(ctx context.Context, tenantID bson.ObjectID) ([]Purchase, error) {
	return r.c.find(ctx, bson.M{"tenantId": tenantID, "isDelivered": false},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (r *mongoPurchases) CountPending(ctx context.Context, tenantID bson.ObjectID) (int64, error) {
	return r.c.count(ctx, bson.M{"tenantId": tenantID, "isDelivered": false})
}

func (r *mongoPurchases) CountFor(ctx context.Context, tenantID, userID, productID bson.ObjectID) (int64, error) {
	return r.c.count(ctx, bson.M{"tenantId": tenantID, "userId": userID, "productId": productID})
}

func (r *mongoPurchases) Deliver(ctx context.Context, tenantID, id bson.ObjectID, at time.Time) (*Purchase, error) {
	err := r.c.conditional(ctx, tenantID, id,
		bson.M{"isDelivered": false},
		bson.M{"$set": bson.M{"isDelivered": true, "deliveredAt": at}},
		ErrAlreadyDelivered)
	if err != nil {
		return nil, err
	}
	return r.c.findOne(ctx, byID(tenantID, id))
}
