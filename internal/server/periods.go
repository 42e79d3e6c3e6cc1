package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	perioddomain "github.com/smallbiznis/turnos/internal/period/domain"
)

type createPeriodRequest struct {
	AreaID    string `json:"area_id" validate:"required"`
	Code      string `json:"period_code" validate:"required"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

type transitionPeriodRequest struct {
	TargetState string `json:"target_state" validate:"required"`
}

func periodKey(c *gin.Context) perioddomain.Key {
	return perioddomain.Key{AreaID: c.Param("area"), Code: c.Param("code")}.Normalize()
}

func (s *Server) CreatePeriod(c *gin.Context) {
	var req createPeriodRequest
	if !s.bindJSON(c, &req) {
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	period, err := s.periodSvc.Create(c.Request.Context(), perioddomain.CreatePeriodRequest{
		AreaID:    strings.TrimSpace(req.AreaID),
		Code:      strings.TrimSpace(req.Code),
		StartDate: start,
		EndDate:   end,
		Actor:     actorFrom(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": period})
}

func (s *Server) ListPeriods(c *gin.Context) {
	var query perioddomain.ListPeriodRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	periods, err := s.periodSvc.List(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": periods})
}

func (s *Server) ListOpenPeriods(c *gin.Context) {
	periods, err := s.periodSvc.ListOpen(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": periods})
}

// ListCurrentPeriods returns the periods whose date range covers today, or
// the ?date= query value when given.
func (s *Server) ListCurrentPeriods(c *gin.Context) {
	at := s.clock.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := parseDate("date", raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		at = parsed
	}

	periods, err := s.periodSvc.ListVigentes(c.Request.Context(), at)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": periods})
}

func (s *Server) GetPeriod(c *gin.Context) {
	period, err := s.periodSvc.Get(c.Request.Context(), periodKey(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": period})
}

func (s *Server) TransitionPeriod(c *gin.Context) {
	var req transitionPeriodRequest
	if !s.bindJSON(c, &req) {
		return
	}
	target, err := perioddomain.ParseState(req.TargetState)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	period, err := s.periodSvc.Transition(c.Request.Context(), perioddomain.TransitionRequest{
		Key:    periodKey(c),
		Target: target,
		Actor:  actorFrom(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": period})
}

func (s *Server) DeletePeriod(c *gin.Context) {
	if err := s.periodSvc.Delete(c.Request.Context(), periodKey(c), actorFrom(c)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
