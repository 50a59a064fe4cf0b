package queue

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/medicore/internal/domain/doctor"
	"github.com/medicore/medicore/internal/domain/identity"
	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/pkg/pagination"
	"github.com/medicore/medicore/pkg/validator"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – every signed-in role
	readGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RolePharmacist, auth.RoleReceptionist, auth.RolePatient))
	readGroup.GET("/appointments", h.ListAppointments)
	readGroup.GET("/appointments/slots", h.GetAvailableSlots)
	readGroup.GET("/appointments/:id", h.GetAppointment)
	readGroup.GET("/doctors/:id/queue", h.DoctorQueue)
	readGroup.GET("/doctors/:id/stats", h.DoctorStats)

	// Booking – front desk, patients, doctors, admin
	bookGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleReceptionist, auth.RolePatient))
	bookGroup.POST("/appointments", h.CreateAppointment)

	// Lifecycle – doctors and front desk, admin
	writeGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleReceptionist))
	writeGroup.PATCH("/appointments/:id/status", h.UpdateStatus)
}

type createAppointmentRequest struct {
	PatientID      string     `json:"patientId" validate:"required,uuid"`
	DoctorID       string     `json:"doctorId" validate:"required,uuid"`
	ScheduledTime  *time.Time `json:"scheduledTime"`
	TriageSeverity *int       `json:"triageSeverity" validate:"omitempty,min=1,max=5"`
	PrimarySymptom *string    `json:"primarySymptom" validate:"omitempty,max=255"`
	Reason         *string    `json:"reason" validate:"omitempty,max=1000"`
	IsWalkIn       bool       `json:"isWalkIn"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var req createAppointmentRequest
	if err := validator.BindAndValidate(c, &req); err != nil {
		return err
	}
	in := NewAppointment{
		PatientID:      uuid.MustParse(req.PatientID),
		DoctorID:       uuid.MustParse(req.DoctorID),
		TriageSeverity: req.TriageSeverity,
		PrimarySymptom: req.PrimarySymptom,
		Reason:         req.Reason,
		IsWalkIn:       req.IsWalkIn,
	}
	if req.ScheduledTime != nil {
		in.ScheduledTime = *req.ScheduledTime
	}

	appt, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	var filter ListFilter
	if v := c.QueryParam("doctorId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctorId")
		}
		filter.DoctorID = &id
	}
	filter.Status = c.QueryParam("status")
	if v := c.QueryParam("date"); v != "" {
		d, err := time.ParseInLocation(dateLayout, v, h.svc.loc)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		filter.Date = &d
	}

	appts, total, err := h.svc.ListAppointments(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, pg))
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
	appt, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) GetAvailableSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctorId is required")
	}
	date, err := time.ParseInLocation(dateLayout, c.QueryParam("date"), h.svc.loc)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	slots, err := h.svc.GetAvailableSlots(c.Request().Context(), doctorID, date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slots)
}

func (h *Handler) DoctorQueue(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appts, err := h.svc.DoctorQueue(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) DoctorStats(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	stats, err := h.svc.DoctorStats(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, doctor.ErrDoctorNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
	case errors.Is(err, identity.ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrQueueBusy):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidSeverity),
		errors.Is(err, ErrScheduledInPast),
		errors.Is(err, ErrPatientRequired),
		errors.Is(err, ErrDoctorIDRequired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
