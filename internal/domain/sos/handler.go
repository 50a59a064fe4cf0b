package sos

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/medicore/internal/domain/identity"
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
	// Any signed-in role may raise or view alerts
	readGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RolePharmacist, auth.RoleReceptionist, auth.RolePatient))
	readGroup.POST("/sos", h.CreateAlert)
	readGroup.GET("/sos", h.ListAlerts)
	readGroup.GET("/sos/:id", h.GetAlert)

	ackGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleReceptionist))
	ackGroup.PATCH("/sos/:id/acknowledge", h.Acknowledge)

	resolveGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	resolveGroup.PATCH("/sos/:id/resolve", h.Resolve)
}

type createAlertRequest struct {
	PatientID      string   `json:"patientId" validate:"required,uuid"`
	Severity       int      `json:"severity" validate:"required,min=1,max=5"`
	PrimarySymptom *string  `json:"primarySymptom" validate:"omitempty,max=255"`
	Symptoms       []string `json:"symptoms"`
	IsAlone        bool     `json:"isAlone"`
	CanWalk        bool     `json:"canWalk"`
	Latitude       *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude      *float64 `json:"longitude" validate:"omitempty,longitude"`
}

type resolveRequest struct {
	Notes *string `json:"notes"`
}

func (h *Handler) CreateAlert(c echo.Context) error {
	var req createAlertRequest
	if err := validator.BindAndValidate(c, &req); err != nil {
		return err
	}
	alert, err := h.svc.Create(c.Request().Context(), NewAlert{
		PatientID:      uuid.MustParse(req.PatientID),
		Severity:       req.Severity,
		PrimarySymptom: req.PrimarySymptom,
		Symptoms:       req.Symptoms,
		IsAlone:        req.IsAlone,
		CanWalk:        req.CanWalk,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, alert)
}

func (h *Handler) ListAlerts(c echo.Context) error {
	alerts, err := h.svc.ListAlerts(c.Request().Context(), c.QueryParam("status"))
	if err != nil {
		return httpError(err)
	}
	if alerts == nil {
		alerts = []*Alert{}
	}
	return c.JSON(http.StatusOK, alerts)
}

func (h *Handler) GetAlert(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	alert, err := h.svc.GetAlert(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, alert)
}

func (h *Handler) Acknowledge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	staffID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "caller has no user id")
	}
	alert, err := h.svc.Acknowledge(c.Request().Context(), id, staffID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, alert)
}

func (h *Handler) Resolve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	alert, err := h.svc.Resolve(c.Request().Context(), id, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, alert)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrAlertNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "sos alert not found")
	case errors.Is(err, identity.ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, identity.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidSeverity),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrPatientRequired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
