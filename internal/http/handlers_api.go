package http

import (
	"net/http"
	"strings"

	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/services"
)

type transactionsResponse struct {
	Filter       services.Filter    `json:"filter"`
	Transactions []core.Transaction `json:"transactions"`
}

type categoriesResponse struct {
	Categories []core.Category `json:"categories"`
}

func (s *Server) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		ErrorFrom(err).Write(w)
		return
	}
	sess, u, err := s.auth.Login(r.Context(), p.Get("email"), p.Raw("password"), p.Bool("rememberMe"))
	if err != nil {
		s.apiError(w, r, log.OpLogin, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "User logged in", log.FieldUserID, u.ID, "api", true)
	NewResponse().JSON(sess).Write(w)
}

func (s *Server) handleAPILogout(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	if token == "" {
		UnauthorizedError().Write(w)
		return
	}
	if err := s.auth.Logout(r.Context(), token); err != nil {
		s.apiError(w, r, log.OpLogout, err)
		return
	}
	clearSessionCookie(w, r)
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleAPIListTransactions(w http.ResponseWriter, r *http.Request) {
	u := mustUser(r)
	filter, err := services.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		ErrorResponse(http.StatusUnprocessableEntity, err.Error()).Write(w)
		return
	}
	txs, err := s.tx.List(r.Context(), u.ID, filter)
	if err != nil {
		s.apiError(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(transactionsResponse{Filter: filter, Transactions: txs}).Write(w)
}

func (s *Server) handleAPIGetTransaction(w http.ResponseWriter, r *http.Request) {
	u := mustUser(r)
	tx, err := s.tx.Get(r.Context(), u.ID, r.PathValue("id"))
	if err != nil {
		s.apiError(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(tx).Write(w)
}

func (s *Server) handleAPICreateTransaction(w http.ResponseWriter, r *http.Request) {
	u := mustUser(r)
	tx, err := s.decodeTransaction(r)
	if err != nil {
		s.apiError(w, r, log.OpCreate, err)
		return
	}
	saved, err := s.tx.Create(r.Context(), u.ID, tx)
	if err != nil {
		s.apiError(w, r, log.OpCreate, err)
		return
	}
	NewResponse().Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+saved.ID).
		JSON(saved).
		Write(w)
}

func (s *Server) handleAPIUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	u := mustUser(r)
	tx, err := s.decodeTransaction(r)
	if err != nil {
		s.apiError(w, r, log.OpUpdate, err)
		return
	}
	tx.ID = r.PathValue("id")
	saved, err := s.tx.Update(r.Context(), u.ID, tx)
	if err != nil {
		s.apiError(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(saved).Write(w)
}

func (s *Server) handleAPIDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	u := mustUser(r)
	if err := s.tx.Delete(r.Context(), u.ID, r.PathValue("id")); err != nil {
		s.apiError(w, r, log.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleAPIAnalysis(w http.ResponseWriter, r *http.Request) {
	u := mustUser(r)
	p, err := ParsePeriodParams(r.URL.Query(), s.currentPeriod())
	if err != nil {
		s.apiError(w, r, log.OpAnalyze, err)
		return
	}
	report, err := s.tx.MonthlyAnalysis(r.Context(), u.ID, p)
	if err != nil {
		s.apiError(w, r, log.OpAnalyze, err)
		return
	}
	NewResponse().JSON(report).Write(w)
}

func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	u := mustUser(r)
	d, err := s.tx.Dashboard(r.Context(), u.ID, dashboardRecent)
	if err != nil {
		s.apiError(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(d).Write(w)
}

// handleAPICategories lists the catalog. It needs no session: the catalog is
// the same for every user.
func (s *Server) handleAPICategories(w http.ResponseWriter, r *http.Request) {
	var typ core.TransactionType
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		t, err := core.ParseTransactionType(raw)
		if err != nil {
			ErrorFrom(err).Write(w)
			return
		}
		typ = t
	}
	NewResponse().JSON(categoriesResponse{Categories: s.catalog.List(typ)}).Write(w)
}

func (s *Server) decodeTransaction(r *http.Request) (core.Transaction, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return core.Transaction{}, err
	}
	return readTransactionInput(p).Transaction(s.loc)
}

// apiError logs unexpected failures and writes the mapped error response.
func (s *Server) apiError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logRequestError(r, "API request failed", op, statusFor(err), err)
	ErrorFrom(err).Write(w)
}
