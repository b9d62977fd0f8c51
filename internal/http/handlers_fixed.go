package http

import (
	"errors"
	"net/http"
)

type launchRequest struct {
	IDs      []int64 `json:"ids"`
	PeriodID int64   `json:"period_id"`
}

// handleSaveFixedMovement serves both create (POST) and update (PUT /{id}).
func (s *Server) handleSaveFixedMovement(w http.ResponseWriter, r *http.Request) {
	var id int64
	if r.PathValue("id") != "" {
		var err error
		if id, err = pathID(r, "id"); err != nil {
			writeBadRequest(w, r, "save fixed movement", err)
			return
		}
	}
	var body fixedMovementDTO
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, r, "save fixed movement", err)
		return
	}
	f, err := body.toCore()
	if err != nil {
		writeBadRequest(w, r, "save fixed movement", err)
		return
	}
	f.ID = id

	if err := s.svc.Fixed.SaveFixedMovement(r.Context(), &f); err != nil {
		writeError(w, r, "save fixed movement", err)
		return
	}
	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, newFixedMovementDTO(f))
}

func (s *Server) handleGetFixedMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, "find fixed movement", err)
		return
	}
	f, err := s.svc.Fixed.FindFixedMovement(r.Context(), id)
	if err != nil {
		writeError(w, r, "find fixed movement", err)
		return
	}
	writeJSON(w, http.StatusOK, newFixedMovementDTO(f))
}

func (s *Server) handleListFixedMovements(w http.ResponseWriter, r *http.Request) {
	q := ParsePageQuery(r.URL.Query())
	page, err := s.svc.Fixed.ListFixedMovements(r.Context(), q)
	if err != nil {
		writeError(w, r, "list fixed movements", err)
		return
	}
	writeJSON(w, http.StatusOK, newPageDTO(page, q, newFixedMovementDTO))
}

func (s *Server) handleDeleteFixedMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, "delete fixed movement", err)
		return
	}
	if err := s.svc.Fixed.DeleteFixedMovement(r.Context(), id); err != nil {
		writeError(w, r, "delete fixed movement", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListLaunches(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, "list launches", err)
		return
	}
	q := ParsePageQuery(r.URL.Query())
	page, err := s.svc.Fixed.ListLaunches(r.Context(), id, q)
	if err != nil {
		writeError(w, r, "list launches", err)
		return
	}
	writeJSON(w, http.StatusOK, newPageDTO(page, q, newLaunchDTO))
}

func (s *Server) handleLaunchFixedMovements(w http.ResponseWriter, r *http.Request) {
	var body launchRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, r, "launch fixed movements", err)
		return
	}
	if len(body.IDs) == 0 {
		writeBadRequest(w, r, "launch fixed movements", errors.New("ids must not be empty"))
		return
	}
	if body.PeriodID <= 0 {
		writeBadRequest(w, r, "launch fixed movements", errors.New("period_id is required"))
		return
	}
	launches, err := s.svc.Fixed.LaunchFixedMovements(r.Context(), body.IDs, body.PeriodID)
	if err != nil {
		writeError(w, r, "launch fixed movements", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapSlice(launches, newLaunchDTO))
}

