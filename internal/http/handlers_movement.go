package http

import (
	"net/http"
	"strings"

	"webbudget/internal/core"
)

func (s *Server) handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	var body movementRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, r, "create movement", err)
		return
	}
	m, err := body.toCore()
	if err != nil {
		writeBadRequest(w, r, "create movement", err)
		return
	}
	if err := s.svc.Movements.CreateMovement(r.Context(), &m); err != nil {
		writeError(w, r, "create movement", err)
		return
	}
	writeJSON(w, http.StatusCreated, newMovementDTO(m))
}

func (s *Server) handleListMovements(w http.ResponseWriter, r *http.Request) {
	q := ParsePageQuery(r.URL.Query())
	periodID, err := queryID(r.URL.Query(), "period_id")
	if err != nil {
		writeBadRequest(w, r, "list movements", err)
		return
	}

	var page core.Page[core.Movement]
	if periodID != 0 {
		list, lerr := s.svc.Movements.ListMovementsByPeriod(r.Context(), periodID)
		err = lerr
		page = core.Slice(list, q)
	} else {
		page, err = s.svc.Movements.ListMovements(r.Context(), q)
	}
	if err != nil {
		writeError(w, r, "list movements", err)
		return
	}
	writeJSON(w, http.StatusOK, newPageDTO(page, q, newMovementDTO))
}

func (s *Server) handleGetMovement(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Movements.FindMovementByCode(r.Context(), movementCode(r))
	if err != nil {
		writeError(w, r, "find movement", err)
		return
	}
	writeJSON(w, http.StatusOK, newMovementDTO(m))
}

// handleUpdateMovement replaces the apportionment set: stored apportionments
// missing from the body are deleted.
func (s *Server) handleUpdateMovement(w http.ResponseWriter, r *http.Request) {
	var body movementRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, r, "update movement", err)
		return
	}
	m, err := body.toCore()
	if err != nil {
		writeBadRequest(w, r, "update movement", err)
		return
	}
	stored, err := s.svc.Movements.FindMovementByCode(r.Context(), movementCode(r))
	if err != nil {
		writeError(w, r, "update movement", err)
		return
	}
	m.ID = stored.ID
	m.DeletedApportionments = removedApportionments(stored.Apportionments, m.Apportionments)

	if err := s.svc.Movements.UpdateMovement(r.Context(), &m); err != nil {
		writeError(w, r, "update movement", err)
		return
	}
	writeJSON(w, http.StatusOK, newMovementDTO(m))
}

func (s *Server) handleDeleteMovement(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Movements.DeleteMovementByCode(r.Context(), movementCode(r)); err != nil {
		writeError(w, r, "delete movement", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePayMovement(w http.ResponseWriter, r *http.Request) {
	var body paymentDTO
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, r, "pay movement", err)
		return
	}
	p, err := body.toCore()
	if err != nil {
		writeBadRequest(w, r, "pay movement", err)
		return
	}
	m, err := s.svc.Movements.FindMovementByCode(r.Context(), movementCode(r))
	if err != nil {
		writeError(w, r, "pay movement", err)
		return
	}
	if err := s.svc.Movements.PayMovement(r.Context(), &m, &p); err != nil {
		writeError(w, r, "pay movement", err)
		return
	}
	paid, err := s.svc.Movements.FindMovementByCode(r.Context(), m.Code)
	if err != nil {
		writeError(w, r, "pay movement", err)
		return
	}
	writeJSON(w, http.StatusOK, newMovementDTO(paid))
}

func (s *Server) handleCancelMovement(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Movements.FindMovementByCode(r.Context(), movementCode(r))
	if err != nil {
		writeError(w, r, "cancel movement", err)
		return
	}
	canceled, err := s.svc.Movements.CancelMovement(r.Context(), m.ID)
	if err != nil {
		writeError(w, r, "cancel movement", err)
		return
	}
	writeJSON(w, http.StatusOK, newMovementDTO(canceled))
}

func (s *Server) handleDeleteCardInvoice(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Movements.FindMovementByCode(r.Context(), movementCode(r))
	if err != nil {
		writeError(w, r, "delete card invoice movement", err)
		return
	}
	if err := s.svc.Movements.DeleteCardInvoiceMovement(r.Context(), m.ID); err != nil {
		writeError(w, r, "delete card invoice movement", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func movementCode(r *http.Request) string {
	return strings.TrimSpace(r.PathValue("code"))
}

// removedApportionments returns the stored apportionments whose IDs are not
// kept in next.
func removedApportionments(stored, next []core.Apportionment) []core.Apportionment {
	kept := make(map[int64]bool, len(next))
	for _, a := range next {
		if a.ID != 0 {
			kept[a.ID] = true
		}
	}
	var removed []core.Apportionment
	for _, a := range stored {
		if !kept[a.ID] {
			removed = append(removed, a)
		}
	}
	return removed
}
