package http

import (
	"net/http"

	"expensetracker/internal/log"
)

// handleListExpenses returns the filtered and sorted expense list.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	expenses := s.svc.List(r.Context(), parseFilter(q), parseSort(q))
	NewJSONResponse().Data(expenses).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	e, err := s.svc.Create(r.Context(), parser.ExpenseInput())
	if err != nil {
		s.logFailure(r, "Create expense failed", err, log.OpCreate)
		ErrorResponse(err).Write(w)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+e.ID).
		Data(e).
		Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		ErrorResponse(err).Write(w)
		return
	}
	NewJSONResponse().Data(e).Write(w)
}

// handleUpdateExpense answers 204 when the id is unknown: updates of missing
// expenses are no-ops.
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	e, found, err := s.svc.Update(r.Context(), r.PathValue("id"), parser.ExpenseInput())
	if err != nil {
		s.logFailure(r, "Update expense failed", err, log.OpUpdate)
		ErrorResponse(err).Write(w)
		return
	}
	if !found {
		NewJSONResponse().Status(http.StatusNoContent).Write(w)
		return
	}
	NewJSONResponse().Data(e).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.logFailure(r, "Delete expense failed", err, log.OpDelete)
		ErrorResponse(err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) logFailure(r *http.Request, msg string, err error, op string) {
	log.FromContext(r.Context()).WarnContext(r.Context(), msg,
		log.FieldOperation, op,
		log.FieldError, err.Error())
}
