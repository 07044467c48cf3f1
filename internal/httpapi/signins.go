package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"emargement/internal/attendance"
	"emargement/internal/signin"
)

// signInRequest keeps the column names the legacy client posts.
type signInRequest struct {
	Date        *FlexTime `json:"date_du_jour"`
	Trainer     *string   `json:"formateur" binding:"omitempty,max=150"`
	FullName    *string   `json:"nom_prenom" binding:"omitempty,max=200"`
	ArrivalTime *string   `json:"heure_arriveer"`
	Signature   *string   `json:"signature"`
}

func (s *server) signInFields(req signInRequest) (signin.Patch, error) {
	p := signin.Patch{
		Trainer:   req.Trainer,
		FullName:  req.FullName,
		Signature: req.Signature,
	}
	if req.Date != nil && !req.Date.IsZero() {
		d := req.Date.On(s.today(), s.loc)
		p.Date = &d
	}
	switch {
	case req.ArrivalTime == nil:
	case strings.TrimSpace(*req.ArrivalTime) == "":
		// an explicit empty string clears the arrival; null or absent keeps it
		p.ClearArrival = true
	default:
		ft, err := ParseFlexTime(*req.ArrivalTime)
		if err != nil {
			return signin.Patch{}, err
		}
		c := attendance.ClockOf(ft.On(s.today(), s.loc).In(s.loc))
		p.ArrivalTime = &c
	}
	return p, nil
}

func (s *server) listSignIns(c *gin.Context) {
	recs, err := s.signins.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (s *server) createSignIn(c *gin.Context) {
	var req signInRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	p, err := s.signInFields(req)
	if err != nil {
		fail(c, err)
		return
	}
	in := signin.Input{Date: p.Date, ArrivalTime: p.ArrivalTime}
	if in.Date == nil {
		today := s.today()
		in.Date = &today
	}
	if p.Trainer != nil {
		in.Trainer = *p.Trainer
	}
	if p.FullName != nil {
		in.FullName = *p.FullName
	}
	if p.Signature != nil {
		in.Signature = *p.Signature
	}
	rec, err := s.signins.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *server) getSignIn(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	rec, err := s.signins.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *server) updateSignIn(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	var req signInRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	p, err := s.signInFields(req)
	if err != nil {
		fail(c, err)
		return
	}
	rec, err := s.signins.Update(c.Request.Context(), id, p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *server) deleteSignIn(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.signins.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
