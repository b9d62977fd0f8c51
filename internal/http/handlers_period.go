package http

import "net/http"

func (s *Server) handleOpenPeriod(w http.ResponseWriter, r *http.Request) {
	var body periodDTO
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, r, "open period", err)
		return
	}
	p, err := body.toCore()
	if err != nil {
		writeBadRequest(w, r, "open period", err)
		return
	}
	if err := s.svc.Periods.OpenPeriod(r.Context(), &p); err != nil {
		writeError(w, r, "open period", err)
		return
	}
	writeJSON(w, http.StatusCreated, newPeriodDTO(p))
}

func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	q := ParsePageQuery(r.URL.Query())
	page, err := s.svc.Periods.ListPeriods(r.Context(), q)
	if err != nil {
		writeError(w, r, "list periods", err)
		return
	}
	writeJSON(w, http.StatusOK, newPageDTO(page, q, newPeriodDTO))
}

func (s *Server) handleActivePeriod(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Periods.ActivePeriod(r.Context())
	if err != nil {
		writeError(w, r, "active period", err)
		return
	}
	writeJSON(w, http.StatusOK, newPeriodDTO(p))
}

func (s *Server) handleClosePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, "close period", err)
		return
	}
	p, err := s.svc.Periods.ClosePeriod(r.Context(), id)
	if err != nil {
		writeError(w, r, "close period", err)
		return
	}
	writeJSON(w, http.StatusOK, newPeriodDTO(p))
}
