package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"tuition/internal/core"
	"tuition/internal/services"
)

func (s *Server) handleListBatches(c echo.Context) error {
	batches, err := s.roster.Batches(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, batches)
}

func (s *Server) handleGetBatch(c echo.Context) error {
	b, err := s.roster.Batch(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (s *Server) handleCreateBatch(c echo.Context) error {
	var b core.Batch
	if err := c.Bind(&b); err != nil {
		return err
	}
	b.ID = ""
	b.Name = sanitizeInput(b.Name)
	b.ClassName = sanitizeInput(b.ClassName)
	created, err := s.roster.CreateBatch(c.Request().Context(), b)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateBatch(c echo.Context) error {
	var b core.Batch
	if err := c.Bind(&b); err != nil {
		return err
	}
	b.ID = c.Param("id")
	b.Name = sanitizeInput(b.Name)
	b.ClassName = sanitizeInput(b.ClassName)
	updated, err := s.roster.UpdateBatch(c.Request().Context(), b)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleToggleBatch(c echo.Context) error {
	b, err := s.roster.ToggleBatch(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (s *Server) handleBatchStudents(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := s.roster.Batch(ctx, c.Param("id")); err != nil {
		return err
	}
	students, err := s.roster.Students(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, students)
}

func (s *Server) handleBatchFines(c echo.Context) error {
	month, err := parseMonthPeriod(c, s.ledger.Now())
	if err != nil {
		return err
	}
	students, summary, err := s.roster.Fines(c.Request().Context(), c.Param("id"), month)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"month":    month.String(),
		"students": students,
		"summary":  summary,
	})
}

func (s *Server) handleToggleFine(c echo.Context) error {
	f, err := s.roster.ToggleFine(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

func (s *Server) handleBatchNotes(c echo.Context) error {
	notes, err := s.roster.Notes(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, notes)
}

func (s *Server) handleAddNote(c echo.Context) error {
	var n core.BatchNote
	if err := c.Bind(&n); err != nil {
		return err
	}
	n.ID = ""
	n.BatchID = c.Param("id")
	n.Content = sanitizeInput(n.Content)
	created, err := s.roster.AddNote(c.Request().Context(), n)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleToggleNote(c echo.Context) error {
	n, err := s.roster.ToggleNote(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (s *Server) handleBatchAttendance(c echo.Context) error {
	date, err := parseDate(c, s.ledger.Now())
	if err != nil {
		return err
	}
	records, err := s.roster.Attendance(c.Request().Context(), c.Param("id"), date)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date, "records": records})
}

func (s *Server) handleMarkAttendance(c echo.Context) error {
	var in services.AttendanceInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	rec, err := s.roster.MarkAttendance(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleListStudents(c echo.Context) error {
	students, err := s.roster.Students(c.Request().Context(), c.QueryParam("batchId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, students)
}

func (s *Server) handleGetStudent(c echo.Context) error {
	st, err := s.roster.Student(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) handleCreateStudent(c echo.Context) error {
	var st core.Student
	if err := c.Bind(&st); err != nil {
		return err
	}
	st.ID = ""
	sanitizeStudent(&st)
	created, err := s.roster.CreateStudent(c.Request().Context(), st)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateStudent(c echo.Context) error {
	var st core.Student
	if err := c.Bind(&st); err != nil {
		return err
	}
	st.ID = c.Param("id")
	sanitizeStudent(&st)
	updated, err := s.roster.UpdateStudent(c.Request().Context(), st)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleStudentStatus(c echo.Context) error {
	var body struct {
		Status core.StudentStatus `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return err
	}
	st, err := s.roster.SetStudentStatus(c.Request().Context(), c.Param("id"), body.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) handleAttendanceRate(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := s.roster.Student(ctx, c.Param("id")); err != nil {
		return err
	}
	r, err := s.roster.AttendanceRate(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"studentId": c.Param("id"), "rate": r})
}

func (s *Server) handleGetSettings(c echo.Context) error {
	settings, err := s.roster.Settings(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, settings)
}

func (s *Server) handleSaveSettings(c echo.Context) error {
	var settings core.Settings
	if err := c.Bind(&settings); err != nil {
		return err
	}
	settings.InstituteName = sanitizeInput(settings.InstituteName)
	saved, err := s.roster.SaveSettings(c.Request().Context(), settings)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, saved)
}

func sanitizeStudent(st *core.Student) {
	st.Name = sanitizeInput(st.Name)
	st.Roll = sanitizeInput(st.Roll)
	st.Mobile = sanitizeInput(st.Mobile)
}
