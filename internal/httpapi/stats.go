package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"emargement/internal/apperr"
)

func (s *server) globalStats(c *gin.Context) {
	sum, err := s.stats.Global(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *server) studentsStats(c *gin.Context) {
	all, err := s.stats.Students(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, all)
}

func (s *server) studentStats(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	sum, err := s.stats.Student(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *server) sheetStats(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	sum, err := s.stats.Sheet(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// classify answers what status an arrival would get, so clients can show
// it before saving.
func (s *server) classify(c *gin.Context) {
	start, err := ParseFlexTime(c.Query("start"))
	if err != nil {
		fail(c, err)
		return
	}
	arrival, err := ParseFlexTime(c.Query("arrival"))
	if err != nil {
		fail(c, err)
		return
	}
	if start.IsZero() || arrival.IsZero() {
		fail(c, apperr.Invalid("start and arrival are required"))
		return
	}
	cl := s.sheets.Classifier()
	day := s.today()
	st := cl.Classify(start.On(day, s.loc), arrival.On(day, s.loc))
	c.JSON(http.StatusOK, gin.H{
		"statut":        st,
		"label":         st.Label(),
		"grace_minutes": int(cl.Grace.Minutes()),
	})
}
