package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"emargement/internal/roster"
)

type createStudentRequest struct {
	LastName  string `json:"nom" binding:"required,notblank,max=100"`
	FirstName string `json:"prenom" binding:"required,notblank,max=100"`
}

type updateStudentRequest struct {
	LastName  *string `json:"nom" binding:"omitempty,max=100"`
	FirstName *string `json:"prenom" binding:"omitempty,max=100"`
}

func (s *server) listStudents(c *gin.Context) {
	students, err := s.students.List(c.Request.Context(), c.Query("q"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}

func (s *server) createStudent(c *gin.Context) {
	var req createStudentRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	st, err := s.students.Create(c.Request.Context(), req.LastName, req.FirstName)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (s *server) getStudent(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	st, err := s.students.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *server) updateStudent(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	var req updateStudentRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	st, err := s.students.Update(c.Request.Context(), id, roster.Patch{LastName: req.LastName, FirstName: req.FirstName})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *server) deleteStudent(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.students.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
