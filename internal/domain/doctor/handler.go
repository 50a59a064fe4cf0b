package doctor

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – every signed-in role sees the doctor board
	readGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RolePharmacist, auth.RoleReceptionist, auth.RolePatient))
	readGroup.GET("/doctors", h.ListDoctors)
	readGroup.GET("/doctors/:id", h.GetDoctor)

	// Write endpoints – doctor, admin
	writeGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	writeGroup.PATCH("/doctors/:id/status", h.UpdateStatus)
}

type updateStatusRequest struct {
	Status         string     `json:"status" validate:"required"`
	LeaveReason    *string    `json:"leaveReason"`
	ExpectedReturn *time.Time `json:"expectedReturn"`
}

func (h *Handler) ListDoctors(c echo.Context) error {
	filter := ListFilter{
		Specialty: c.QueryParam("specialty"),
		Status:    c.QueryParam("status"),
	}
	doctors, err := h.svc.ListDoctors(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	if doctors == nil {
		doctors = []*Doctor{}
	}
	return c.JSON(http.StatusOK, doctors)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateStatusRequest
	if err := validator.BindAndValidate(c, &req); err != nil {
		return err
	}
	d, err := h.svc.ChangeStatus(c.Request().Context(), id, StatusChange{
		Status:         req.Status,
		LeaveReason:    req.LeaveReason,
		ExpectedReturn: req.ExpectedReturn,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrDoctorNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
	case errors.Is(err, ErrInvalidStatus):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
