package school

import "errors"

var (
	ErrStudentNotFound    = errors.New("school: student not found")
	ErrClassNotFound      = errors.New("school: class not found")
	ErrMissionNotFound    = errors.New("school: mission not found")
	ErrAttitudeNotFound   = errors.New("school: attitude not found")
	ErrAssignmentNotFound = errors.New("school: attitude not assigned to student")
	ErrProductNotFound    = errors.New("school: product not found")
	ErrPurchaseNotFound   = errors.New("school: purchase not found")

	ErrDuplicateClassCode  = errors.New("school: class code already in use")
	ErrAlreadyAllowed      = errors.New("school: student already allowed for mission")
	ErrMissionNotAllowed   = errors.New("school: student not allowed to complete mission")
	ErrMissionCompleted    = errors.New("school: mission already completed by student")
	ErrAlreadyClaimed      = errors.New("school: reward already claimed")
	ErrStudentWithoutClass = errors.New("school: student has no class")
	ErrOutOfStock          = errors.New("school: product out of stock")
	ErrInsufficientCoins   = errors.New("school: insufficient coins")
	ErrPurchaseLimit       = errors.New("school: purchase limit for product reached")
	ErrAlreadyDelivered    = errors.New("school: purchase already delivered")
	ErrInvalidID           = errors.New("school: invalid id")
)
