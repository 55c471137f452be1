package admin

import (
	"net/http"
	"strconv"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/handler"
	"github.com/dmitrymomot/leveledu/modules/rest"
	"github.com/dmitrymomot/leveledu/svc/school"
)

type classFilter struct {
	ClassID string `query:"classId" json:"-" validate:"omitempty,objectid"`
}

func (f classFilter) id() bson.ObjectID {
	id, _ := bson.ObjectIDFromHex(f.ClassID)
	return id
}

// target resolves the tenant and the {id} path parameter.
func target(ctx handler.Context) (tenantID, id bson.ObjectID, err error) {
	if tenantID, err = rest.TenantID(ctx); err != nil {
		return
	}
	id, err = rest.ID(ctx, "id")
	return
}

func (a *api) listStudents(ctx handler.Context, req classFilter) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	students, err := a.school.Students(ctx, tenantID, req.id())
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(students)
}

func (a *api) createStudent(ctx handler.Context, req school.CreateStudentInput) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	st, err := a.school.CreateStudent(ctx, tenantID, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.Created(st)
}

func (a *api) getStudent(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, id, err := target(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	st, err := a.school.Student(ctx, tenantID, id)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(st)
}

func (a *api) updateStudent(ctx handler.Context, req school.UpdateStudentInput) handler.Response {
	tenantID, id, err := target(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	st, err := a.school.UpdateStudent(ctx, tenantID, id, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(st)
}

func (a *api) deleteStudent(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, id, err := target(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	if err := a.school.DeleteStudent(ctx, tenantID, id); err != nil {
		return a.kit.Fail(err)
	}
	return rest.Message("Student deleted")
}

const (
	defaultBadgeSize = 256
	maxBadgeSize     = 1024
)

// studentBadge writes the student's QR badge as a PNG for printing.
func (a *api) studentBadge(w http.ResponseWriter, r *http.Request) {
	ctx := handler.NewContext(w, r)
	tenantID, id, err := target(ctx)
	if err != nil {
		a.kit.Write(w, r, err)
		return
	}
	size := defaultBadgeSize
	if n, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && n > 0 && n <= maxBadgeSize {
		size = n
	}
	png, err := a.school.Badge(ctx, tenantID, id, size)
	if err != nil {
		a.kit.Write(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(png)
}
