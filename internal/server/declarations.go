package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	adjustmentdomain "github.com/smallbiznis/turnos/internal/adjustment/domain"
	declarationdomain "github.com/smallbiznis/turnos/internal/declaration/domain"
	notificationdomain "github.com/smallbiznis/turnos/internal/notification/domain"
	perioddomain "github.com/smallbiznis/turnos/internal/period/domain"
)

type lineRequest struct {
	WorkDate  string `json:"work_date" validate:"required"`
	ShiftType string `json:"shift_type" validate:"required,shift_type"`
}

type createDeclarationRequest struct {
	ProfessionalID string        `json:"professional_id" validate:"required"`
	AreaID         string        `json:"area_id" validate:"required"`
	PeriodCode     string        `json:"period_code" validate:"required"`
	ServiceID      string        `json:"service_id" validate:"required"`
	Lines          []lineRequest `json:"lines" validate:"dive"`
}

type updateLinesRequest struct {
	ExpectedVersion int64         `json:"expected_version"`
	Lines           []lineRequest `json:"lines" validate:"dive"`
}

type versionedRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
}

type reviewDeclarationRequest struct {
	ExpectedVersion int64  `json:"expected_version"`
	Observations    string `json:"observations"`
}

type rejectDeclarationRequest struct {
	ExpectedVersion int64  `json:"expected_version"`
	Reason          string `json:"reason" validate:"required"`
}

type adjustLineRequest struct {
	ExpectedVersion int64  `json:"expected_version"`
	ShiftType       string `json:"shift_type" validate:"required,shift_type"`
	Observation     string `json:"observation"`
}

func toLineInputs(lines []lineRequest) ([]declarationdomain.LineInput, error) {
	out := make([]declarationdomain.LineInput, 0, len(lines))
	for _, line := range lines {
		workDate, err := parseDate("work_date", line.WorkDate)
		if err != nil {
			return nil, err
		}
		out = append(out, declarationdomain.LineInput{
			WorkDate:  workDate,
			ShiftType: strings.ToUpper(strings.TrimSpace(line.ShiftType)),
		})
	}
	return out, nil
}

// bindOptionalJSON accepts an empty body for endpoints whose fields are all
// optional.
func (s *Server) bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return s.bindJSON(c, req)
}

func (s *Server) CreateDeclaration(c *gin.Context) {
	var req createDeclarationRequest
	if !s.bindJSON(c, &req) {
		return
	}
	lines, err := toLineInputs(req.Lines)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	decl, err := s.declarationSvc.Create(c.Request.Context(), declarationdomain.CreateDeclarationRequest{
		ProfessionalID: req.ProfessionalID,
		Period:         perioddomain.Key{AreaID: req.AreaID, Code: req.PeriodCode},
		ServiceID:      req.ServiceID,
		Lines:          lines,
		Actor:          actorFrom(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": decl})
}

func (s *Server) ListDeclarations(c *gin.Context) {
	var query declarationdomain.ListDeclarationRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.declarationSvc.List(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Declarations, "page_info": resp.PageInfo})
}

func (s *Server) GetDeclaration(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	decl, err := s.declarationSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": decl})
}

func (s *Server) UpdateDeclarationLines(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req updateLinesRequest
	if !s.bindJSON(c, &req) {
		return
	}
	lines, err := toLineInputs(req.Lines)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	decl, err := s.declarationSvc.Update(c.Request.Context(), declarationdomain.UpdateDeclarationRequest{
		ID:              id,
		ExpectedVersion: req.ExpectedVersion,
		Lines:           lines,
		Actor:           actorFrom(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": decl})
}

func (s *Server) SubmitDeclaration(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req versionedRequest
	if !s.bindOptionalJSON(c, &req) {
		return
	}

	decl, err := s.declarationSvc.Submit(c.Request.Context(), declarationdomain.SubmitRequest{
		ID:              id,
		ExpectedVersion: req.ExpectedVersion,
		Actor:           actorFrom(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": decl})
}

func (s *Server) ReviewDeclaration(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req reviewDeclarationRequest
	if !s.bindOptionalJSON(c, &req) {
		return
	}

	decl, err := s.declarationSvc.MarkReviewed(c.Request.Context(), declarationdomain.ReviewRequest{
		ID:              id,
		ExpectedVersion: req.ExpectedVersion,
		Observations:    req.Observations,
		Actor:           actorFrom(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.notify(c.Request.Context(), declarationEvent(notificationdomain.EventDeclarationReviewed, decl, req.Observations))
	c.JSON(http.StatusOK, gin.H{"data": decl})
}

func (s *Server) RejectDeclaration(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req rejectDeclarationRequest
	if !s.bindJSON(c, &req) {
		return
	}

	decl, err := s.declarationSvc.Reject(c.Request.Context(), declarationdomain.RejectRequest{
		ID:              id,
		ExpectedVersion: req.ExpectedVersion,
		Reason:          req.Reason,
		Actor:           actorFrom(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.notify(c.Request.Context(), declarationEvent(notificationdomain.EventDeclarationRejected, decl, req.Reason))
	c.JSON(http.StatusOK, gin.H{"data": decl})
}

func (s *Server) AdjustDeclarationLine(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	lineID, err := idParam(c, "line_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req adjustLineRequest
	if !s.bindJSON(c, &req) {
		return
	}

	decl, err := s.adjustmentSvc.AdjustLine(c.Request.Context(), adjustmentdomain.AdjustLineRequest{
		DeclarationID:   id,
		LineID:          lineID,
		ShiftType:       strings.ToUpper(strings.TrimSpace(req.ShiftType)),
		Observation:     req.Observation,
		ExpectedVersion: req.ExpectedVersion,
		Actor:           actorFrom(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": decl})
}
