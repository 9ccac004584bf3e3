package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"tuition/internal/services"
)

func (s *Server) handleDashboard(c echo.Context) error {
	d, err := s.ledger.Dashboard(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (s *Server) handleDefaulters(c echo.Context) error {
	summary, err := s.ledger.SystemSummary(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleLastReport(c echo.Context) error {
	if s.reports == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no report sink configured")
	}
	report, ok, err := s.reports.LastReport(c.Request().Context())
	if err != nil {
		return err
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no report generated yet")
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleTogglePayment(c echo.Context) error {
	var in services.ToggleInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	in.StudentID = sanitizeInput(in.StudentID)
	rec, err := s.ledger.TogglePayment(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleStudentLedger(c echo.Context) error {
	l, err := s.ledger.Student(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

func (s *Server) handleStudentGrid(c echo.Context) error {
	year, err := parseYear(c, s.ledger.Now())
	if err != nil {
		return err
	}
	cells, err := s.ledger.Grid(c.Request().Context(), c.Param("id"), year)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"year": year, "months": cells})
}

func (s *Server) handleBatchFinance(c echo.Context) error {
	year, err := parseYear(c, s.ledger.Now())
	if err != nil {
		return err
	}
	summary, err := s.ledger.BatchFinance(c.Request().Context(), c.Param("id"), year)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}
