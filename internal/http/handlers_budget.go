package http

import (
	"errors"
	"net/http"

	"webbudget/internal/core"
)

func (s *Server) handleCreateCostCenter(w http.ResponseWriter, r *http.Request) {
	var body costCenterDTO
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, r, "create cost center", err)
		return
	}
	cc, err := body.toCore()
	if err != nil {
		writeBadRequest(w, r, "create cost center", err)
		return
	}
	cc.ID = 0
	if err := s.svc.Budget.SaveCostCenter(r.Context(), &cc); err != nil {
		writeError(w, r, "create cost center", err)
		return
	}
	writeJSON(w, http.StatusCreated, newCostCenterDTO(cc))
}

func (s *Server) handleUpdateCostCenter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, "update cost center", err)
		return
	}
	var body costCenterDTO
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, r, "update cost center", err)
		return
	}
	cc, err := body.toCore()
	if err != nil {
		writeBadRequest(w, r, "update cost center", err)
		return
	}
	cc.ID = id
	if err := s.svc.Budget.UpdateCostCenter(r.Context(), &cc); err != nil {
		writeError(w, r, "update cost center", err)
		return
	}
	writeJSON(w, http.StatusOK, newCostCenterDTO(cc))
}

func (s *Server) handleGetCostCenter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, "find cost center", err)
		return
	}
	cc, err := s.svc.Budget.FindCostCenter(r.Context(), id)
	if err != nil {
		writeError(w, r, "find cost center", err)
		return
	}
	writeJSON(w, http.StatusOK, newCostCenterDTO(cc))
}

func (s *Server) handleListCostCenters(w http.ResponseWriter, r *http.Request) {
	q := ParsePageQuery(r.URL.Query())
	page, err := s.svc.Budget.ListCostCenters(r.Context(), q)
	if err != nil {
		writeError(w, r, "list cost centers", err)
		return
	}
	writeJSON(w, http.StatusOK, newPageDTO(page, q, newCostCenterDTO))
}

func (s *Server) handleDeleteCostCenter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, "delete cost center", err)
		return
	}
	if err := s.svc.Budget.DeleteCostCenter(r.Context(), id); err != nil {
		writeError(w, r, "delete cost center", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePeriodOverview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, "period overview", err)
		return
	}
	periodID, ok := s.periodParam(w, r, "period overview")
	if !ok {
		return
	}
	o, err := s.svc.Budget.PeriodOverview(r.Context(), id, periodID)
	if err != nil {
		writeError(w, r, "period overview", err)
		return
	}
	writeJSON(w, http.StatusOK, newOverviewDTO(o))
}

func (s *Server) handleCreateMovementClass(w http.ResponseWriter, r *http.Request) {
	var body movementClassDTO
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, r, "create movement class", err)
		return
	}
	c, err := body.toCore()
	if err != nil {
		writeBadRequest(w, r, "create movement class", err)
		return
	}
	c.ID = 0
	if err := s.svc.Budget.SaveMovementClass(r.Context(), &c); err != nil {
		writeError(w, r, "create movement class", err)
		return
	}
	writeJSON(w, http.StatusCreated, newMovementClassDTO(c))
}

func (s *Server) handleUpdateMovementClass(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, "update movement class", err)
		return
	}
	var body movementClassDTO
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, r, "update movement class", err)
		return
	}
	c, err := body.toCore()
	if err != nil {
		writeBadRequest(w, r, "update movement class", err)
		return
	}
	c.ID = id
	if err := s.svc.Budget.UpdateMovementClass(r.Context(), &c); err != nil {
		writeError(w, r, "update movement class", err)
		return
	}
	writeJSON(w, http.StatusOK, newMovementClassDTO(c))
}

func (s *Server) handleListMovementClasses(w http.ResponseWriter, r *http.Request) {
	q := ParsePageQuery(r.URL.Query())
	page, err := s.svc.Budget.ListMovementClasses(r.Context(), q)
	if err != nil {
		writeError(w, r, "list movement classes", err)
		return
	}
	writeJSON(w, http.StatusOK, newPageDTO(page, q, newMovementClassDTO))
}

func (s *Server) handleDeleteMovementClass(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, "delete movement class", err)
		return
	}
	if err := s.svc.Budget.DeleteMovementClass(r.Context(), id); err != nil {
		writeError(w, r, "delete movement class", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMovementClassUsage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, "movement class usage", err)
		return
	}
	periodID, ok := s.periodParam(w, r, "movement class usage")
	if !ok {
		return
	}
	c, err := s.svc.Budget.MovementClassUsage(r.Context(), id, periodID)
	if err != nil {
		writeError(w, r, "movement class usage", err)
		return
	}
	writeJSON(w, http.StatusOK, newClassUsageDTO(c))
}

// periodParam reads ?period_id=, falling back to the active period. It
// writes the error response itself and reports false on failure.
func (s *Server) periodParam(w http.ResponseWriter, r *http.Request, operation string) (int64, bool) {
	periodID, err := queryID(r.URL.Query(), "period_id")
	if err != nil {
		writeBadRequest(w, r, operation, err)
		return 0, false
	}
	if periodID != 0 {
		return periodID, true
	}
	active, err := s.svc.Periods.ActivePeriod(r.Context())
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeBadRequest(w, r, operation, errors.New("period_id is required when no period is open"))
			return 0, false
		}
		writeError(w, r, operation, err)
		return 0, false
	}
	return active.ID, true
}
