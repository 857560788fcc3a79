package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"pocket/internal/core"
	"pocket/internal/log"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	res := s.ledger.List(r.Context(), userID(r.Context()))
	writeJSON(w, http.StatusOK, transactionsResponse{
		Transactions: records(res.Transactions),
		Source:       res.Source,
		Warning:      res.Warning,
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if status, err := s.decode(w, r, &req); err != nil {
		writeError(w, status, err.Error())
		return
	}

	res, err := s.ledger.Create(r.Context(), userID(r.Context()), req.input())
	if err != nil {
		respondError(w, r, err)
		return
	}
	rec := core.ToRecord(res.Transaction)
	writeJSON(w, http.StatusCreated, writeResponse{Transaction: &rec, Source: res.Source, Warning: res.Warning})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	res, err := s.ledger.Delete(r.Context(), userID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	if res.Warning != "" {
		writeJSON(w, http.StatusOK, writeResponse{Source: res.Source, Warning: res.Warning})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := summaryQuery{
		Month:   r.URL.Query().Get("month"),
		Account: r.URL.Query().Get("account"),
	}
	if q.Month == "" {
		q.Month = time.Now().Format(core.MonthLayout)
	}
	if err := s.validateStruct(q); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	res, err := s.ledger.Summary(r.Context(), userID(r.Context()), q.Month, q.Account)
	if err != nil {
		respondError(w, r, err)
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Summary served",
		log.FieldMonth, q.Month, log.FieldAccount, res.Account, log.FieldSource, res.Source)
	writeJSON(w, http.StatusOK, summaryResponse{Summary: res.Summary, Source: res.Source, Warning: res.Warning})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	s.writeAccounts(w, r, http.StatusOK)
}

func (s *Server) writeAccounts(w http.ResponseWriter, r *http.Request, status int) {
	res, err := s.ledger.Accounts(r.Context(), userID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, status, accountsResponse{Accounts: res.Accounts, Source: res.Source, Warning: res.Warning})
}

func (s *Server) handleAddAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if status, err := s.decode(w, r, &req); err != nil {
		writeError(w, status, err.Error())
		return
	}
	account, err := s.ledger.AddAccount(r.Context(), userID(r.Context()), req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *Server) handleRemoveAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.RemoveAccount(r.Context(), userID(r.Context()), mux.Vars(r)["name"]); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetPrimary(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.SetPrimaryAccount(r.Context(), userID(r.Context()), mux.Vars(r)["name"]); err != nil {
		respondError(w, r, err)
		return
	}
	s.writeAccounts(w, r, http.StatusOK)
}

func (s *Server) handleMoveAccount(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if status, err := s.decode(w, r, &req); err != nil {
		writeError(w, status, err.Error())
		return
	}
	err := s.ledger.MoveAccount(r.Context(), userID(r.Context()), mux.Vars(r)["name"], core.Direction(req.Direction))
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.writeAccounts(w, r, http.StatusOK)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules := s.ledger.Rules(r.Context())
	if rules == nil {
		rules = []core.CategoryRule{}
	}
	writeJSON(w, http.StatusOK, rulesResponse{Rules: rules})
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if status, err := s.decode(w, r, &req); err != nil {
		writeError(w, status, err.Error())
		return
	}
	rule, err := s.ledger.AddRule(r.Context(), req.Keyword, req.Category)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteRule(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
