package app

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/handler"
	"github.com/dmitrymomot/leveledu/modules/rest"
	"github.com/dmitrymomot/leveledu/pkg/qrcode"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
	"github.com/dmitrymomot/leveledu/svc/school"
)

// student resolves the tenant and the {userId} path parameter.
func student(ctx handler.Context) (tenantID, userID bson.ObjectID, err error) {
	if tenantID, err = rest.TenantID(ctx); err != nil {
		return
	}
	userID, err = rest.ID(ctx, "userId")
	return
}

// loginRequest identifies the student either by id or by the raw payload
// of its QR badge.
type loginRequest struct {
	UserID string `json:"userId,omitempty" validate:"required_without=Badge,omitempty,objectid"`
	Badge  string `json:"badge,omitempty" validate:"omitempty,max=100"`
}

func (a *api) login(ctx handler.Context, req loginRequest) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	userID, err := bson.ObjectIDFromHex(req.UserID)
	if req.Badge != "" {
		var badgeTenant bson.ObjectID
		userID, badgeTenant, err = qrcode.ParseBadge(req.Badge)
		if err == nil && badgeTenant != tenantID {
			return a.kit.Fail(tenant.ErrAccessDenied)
		}
	}
	if err != nil {
		return a.kit.Fail(rest.ErrInvalidID)
	}
	st, err := a.school.Login(ctx, tenantID, userID)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(map[string]any{"user": st})
}

func (a *api) revalidate(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, userID, err := student(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	st, err := a.school.Student(ctx, tenantID, userID)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(map[string]any{"user": st})
}

func (a *api) badge(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, userID, err := student(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	st, err := a.school.Student(ctx, tenantID, userID)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(map[string]string{"qrCode": st.QRCode})
}

func (a *api) availableMissions(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, userID, err := student(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	missions, err := a.school.AvailableMissions(ctx, tenantID, userID)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(missions)
}

func (a *api) completeMission(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, userID, err := student(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	missionID, err := rest.ID(ctx, "missionId")
	if err != nil {
		return a.kit.Fail(err)
	}
	done, err := a.school.CompleteMission(ctx, tenantID, userID, missionID)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(done)
}

func (a *api) attitudes(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, userID, err := student(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	list, err := a.school.StudentAttitudes(ctx, tenantID, userID)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(list)
}

func (a *api) claimAttitude(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, userID, err := student(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	attitudeID, err := rest.ID(ctx, "attitudeId")
	if err != nil {
		return a.kit.Fail(err)
	}
	st, err := a.school.ClaimAttitude(ctx, tenantID, userID, attitudeID)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(map[string]any{"user": st})
}

func (a *api) products(ctx handler.Context, _ rest.Empty) handler.Response {
	tenantID, userID, err := student(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	list, err := a.school.StudentProducts(ctx, tenantID, userID)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(list)
}

func (a *api) purchase(ctx handler.Context, req school.PurchaseInput) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	p, err := a.school.Purchase(ctx, tenantID, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.Created(p)
}

type rankingRequest struct {
	By school.Rank `path:"by" json:"-" validate:"oneof=coins xp"`
}

func (a *api) ranking(ctx handler.Context, req rankingRequest) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	entries, err := a.school.Ranking(ctx, tenantID, req.By)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(entries)
}
