package record

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carenote/carenote/internal/domain/assessment"
	"github.com/carenote/carenote/internal/domain/taxonomy"
	"github.com/carenote/carenote/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/records", h.CreateRecord)
	api.GET("/records", h.ListRecords)
	api.GET("/records/:id", h.GetRecord)
	api.DELETE("/records/:id", h.DeleteRecord)
	api.PUT("/records/:id/assessment", h.AttachAssessment)
	api.GET("/records/:id/diagnosis-candidates", h.Candidates)
	api.PUT("/records/:id/diagnoses", h.AcceptDiagnoses)
	api.POST("/records/:id/care-plan", h.GeneratePlan)
	api.PUT("/records/:id/care-plan/:itemID", h.OverrideItem)
	api.POST("/records/:id/transition", h.Transition)
	api.POST("/records/:id/versions", h.NewVersion)
}

func (h *Handler) CreateRecord(c echo.Context) error {
	var req struct {
		PatientRef string `json:"patient_ref"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.CreateRecord(c.Request().Context(), req.PatientRef)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ListRecords(c echo.Context) error {
	p := pagination.FromContext(c)
	if patientRef := c.QueryParam("patient_ref"); patientRef != "" {
		recs, total, err := h.svc.ListByPatient(c.Request().Context(), patientRef, p.Limit, p.Offset)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(recs, total, p.Limit, p.Offset))
	}
	recs, total, err := h.svc.ListRecords(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(recs, total, p.Limit, p.Offset))
}

func (h *Handler) GetRecord(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.GetRecord(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) DeleteRecord(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteRecord(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AttachAssessment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var raw assessment.RawAssessment
	if err := c.Bind(&raw); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, fieldErrs, err := h.svc.AttachAssessment(c.Request().Context(), id, raw)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"record":       rec,
		"field_errors": fieldErrs,
	})
}

func (h *Handler) Candidates(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	candidates, err := h.svc.Candidates(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, candidates)
}

func (h *Handler) AcceptDiagnoses(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req struct {
		TaxonomyIDs []string `json:"taxonomy_ids"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.AcceptDiagnoses(c.Request().Context(), id, req.TaxonomyIDs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) GeneratePlan(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	augment := c.QueryParam("augment") == "true"
	rec, warnings, err := h.svc.GeneratePlan(c.Request().Context(), id, augment)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"record":   rec,
		"warnings": warnings,
	})
}

func (h *Handler) OverrideItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	var req struct {
		Goal          string   `json:"goal"`
		Interventions []string `json:"interventions"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.OverrideItem(c.Request().Context(), id, itemID, req.Goal, req.Interventions)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Transition(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req struct {
		To    ReviewStatus `json:"to"`
		Actor string       `json:"actor"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Transition(c.Request().Context(), id, req.To, req.Actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) NewVersion(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	next, err := h.svc.NewVersion(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, next)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}
	return id, nil
}

// httpError maps domain failures to HTTP statuses so the presentation
// layer can render them deterministically.
func httpError(err error) error {
	var (
		invalid *InvalidTransitionError
		guard   *GuardError
		locked  *LockedError
	)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrItemNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, taxonomy.ErrNotFound):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrNoAssessment):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &invalid), errors.As(err, &guard), errors.As(err, &locked):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
