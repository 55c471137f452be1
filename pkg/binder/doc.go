// Package binder populates request structs for handler.Wrap.
//
// Three binders are provided and can be combined on one struct:
//
//	type updateStudentRequest struct {
//		ID      string `path:"id" json:"-"`
//		Name    string `json:"name"`
//		ClassID string `json:"classId"`
//	}
//
//	handler.WithBinders[handler.Context, updateStudentRequest](
//		binder.JSON(),
//		binder.Path(chi.URLParam),
//	)
//
// Path and Query only touch fields carrying their tag. JSON reports
// ErrBinderNotApplicable for requests without a body so GET and DELETE
// routes can share request types with write routes.
package binder
