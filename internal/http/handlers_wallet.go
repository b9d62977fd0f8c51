package http

import (
	"errors"
	"net/http"
)

type adjustRequest struct {
	Balance string `json:"balance"`
}

// handleSaveWallet creates a wallet (POST) or renames one (PUT /{id}).
// The balance in the body only seeds new wallets.
func (s *Server) handleSaveWallet(w http.ResponseWriter, r *http.Request) {
	var id int64
	if r.PathValue("id") != "" {
		var err error
		if id, err = pathID(r, "id"); err != nil {
			writeBadRequest(w, r, "save wallet", err)
			return
		}
	}
	var body walletDTO
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, r, "save wallet", err)
		return
	}
	balance, err := parseMoney("balance", body.Balance)
	if err != nil {
		writeBadRequest(w, r, "save wallet", err)
		return
	}
	wallet := walletFromBody(id, body.Name, balance)
	if err := s.svc.Wallets.SaveWallet(r.Context(), &wallet); err != nil {
		writeError(w, r, "save wallet", err)
		return
	}
	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, newWalletDTO(wallet))
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, "find wallet", err)
		return
	}
	wallet, err := s.svc.Wallets.FindWallet(r.Context(), id)
	if err != nil {
		writeError(w, r, "find wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, newWalletDTO(wallet))
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	q := ParsePageQuery(r.URL.Query())
	page, err := s.svc.Wallets.ListWallets(r.Context(), q)
	if err != nil {
		writeError(w, r, "list wallets", err)
		return
	}
	writeJSON(w, http.StatusOK, newPageDTO(page, q, newWalletDTO))
}

func (s *Server) handleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, "adjust balance", err)
		return
	}
	var body adjustRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, r, "adjust balance", err)
		return
	}
	if body.Balance == "" {
		writeBadRequest(w, r, "adjust balance", errors.New("balance is required"))
		return
	}
	target, err := parseMoney("balance", body.Balance)
	if err != nil {
		writeBadRequest(w, r, "adjust balance", err)
		return
	}
	entry, err := s.svc.Wallets.AdjustBalance(r.Context(), id, target)
	if err != nil {
		writeError(w, r, "adjust balance", err)
		return
	}
	writeJSON(w, http.StatusOK, newWalletBalanceDTO(entry))
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, "wallet ledger", err)
		return
	}
	rows, err := s.svc.Wallets.Ledger(r.Context(), id)
	if err != nil {
		writeError(w, r, "wallet ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(rows, newWalletBalanceDTO))
}

func (s *Server) handleSaveCard(w http.ResponseWriter, r *http.Request) {
	var body cardDTO
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, r, "save card", err)
		return
	}
	card := body.toCore()
	if err := s.svc.Wallets.SaveCard(r.Context(), &card); err != nil {
		writeError(w, r, "save card", err)
		return
	}
	status := http.StatusOK
	if body.ID == 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, newCardDTO(card))
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	q := ParsePageQuery(r.URL.Query())
	page, err := s.svc.Wallets.ListCards(r.Context(), q)
	if err != nil {
		writeError(w, r, "list cards", err)
		return
	}
	writeJSON(w, http.StatusOK, newPageDTO(page, q, newCardDTO))
}
