package http

import (
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/analysis"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/services"
)

// dashboardRecent is how many transactions the dashboard lists.
const dashboardRecent = 3

// pageData is passed to every page template.
type pageData struct {
	Title   string
	User    *core.User
	Nav     string
	Error   string
	Content any
}

func userPtr(u core.User) *core.User {
	if u.ID == "" {
		return nil
	}
	return &u
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"brl": core.FormatBRL,
		"date": func(t time.Time) string {
			return t.In(s.loc).Format("02/01/2006")
		},
		"categoryName":  s.catalog.Name,
		"categoryIcon":  s.catalog.Icon,
		"categoryColor": s.categoryColor,
		"typeLabel":     typeLabel,
		"isIncome":      func(t core.TransactionType) bool { return t == core.Income },
		"pct":           formatPercent,
	}
}

func (s *Server) categoryColor(id string) string {
	if c, ok := s.catalog.Lookup(id); ok {
		return c.Color
	}
	return analysis.NeutralColor()
}

// formatPercent renders 42.5 as "42,5%".
func formatPercent(f float64) string {
	return strings.Replace(strconv.FormatFloat(f, 'f', 1, 64), ".", ",", 1) + "%"
}

type authView struct {
	Email string
}

type dashboardView struct {
	services.Dashboard
	MonthName    string
	MonthIncome  string
	MonthExpense string
	MonthBalance string
	BalanceColor string
}

type filterTab struct {
	Value  services.Filter
	Label  string
	Active bool
}

type transactionsView struct {
	Transactions []core.Transaction
	Filter       services.Filter
	Tabs         []filterTab
}

type formView struct {
	Input      transactionInput
	Type       core.TransactionType
	Categories []core.Category
}

type analyticsView struct {
	services.Report
	PeriodName   string
	Prev         core.Period
	Next         core.Period
	NextDisabled bool
	// FullCircle is set when one category holds every expense; a single SVG
	// arc cannot draw a closed circle.
	FullCircle      bool
	FullCircleColor string
	Income          string
	Expense         string
	Balance         string
	Months          []monthOption
}

type monthOption struct {
	Value    int
	Name     string
	Selected bool
}

// monthOptions lists the months of p's year for the picker.
func monthOptions(p core.Period) []monthOption {
	names := core.MonthNames()
	opts := make([]monthOption, len(names))
	for i, name := range names {
		opts[i] = monthOption{Value: i + 1, Name: name, Selected: i+1 == p.Month}
	}
	return opts
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentUser(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentUser(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login", pageData{Title: "Entrar", Content: authView{}})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.render(w, r, http.StatusBadRequest, "login", pageData{Title: "Entrar", Error: "Formulário inválido.", Content: authView{}})
		return
	}
	email := p.Get("email")

	sess, u, err := s.auth.Login(r.Context(), email, p.Raw("password"), p.Bool("remember"))
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.structured.LogError(r.Context(), "Login failed", err, log.ComponentAuth, log.OpLogin, nil)
		}
		s.render(w, r, status, "login", pageData{Title: "Entrar", Error: userMessage(err), Content: authView{Email: email}})
		return
	}

	setSessionCookie(w, r, sess)
	log.FromContext(r.Context()).InfoContext(r.Context(), "User logged in",
		log.FieldUserID, u.ID,
		"remember_me", sess.RememberMe)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentUser(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "register", pageData{Title: "Criar conta", Content: authView{}})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.render(w, r, http.StatusBadRequest, "register", pageData{Title: "Criar conta", Error: "Formulário inválido.", Content: authView{}})
		return
	}
	email, password := p.Get("email"), p.Raw("password")
	fail := func(status int, msg string) {
		s.render(w, r, status, "register", pageData{Title: "Criar conta", Error: msg, Content: authView{Email: email}})
	}

	if confirm := p.Raw("confirm_password"); confirm != "" && confirm != password {
		fail(http.StatusUnprocessableEntity, "As senhas não coincidem.")
		return
	}

	if _, err := s.auth.Register(r.Context(), email, password); err != nil {
		if statusFor(err) >= http.StatusInternalServerError {
			s.structured.LogError(r.Context(), "Registration failed", err, log.ComponentAuth, log.OpRegister, nil)
		}
		fail(statusFor(err), userMessage(err))
		return
	}

	sess, _, err := s.auth.Login(r.Context(), email, password, false)
	if err != nil {
		s.structured.LogError(r.Context(), "Login after registration failed", err, log.ComponentAuth, log.OpLogin, nil)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	setSessionCookie(w, r, sess)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := s.auth.Logout(r.Context(), token); err != nil {
			log.FromContext(r.Context()).DebugContext(r.Context(), "Logout with invalid session", log.FieldError, err.Error())
		}
	}
	clearSessionCookie(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	u := mustUser(r)
	d, err := s.tx.Dashboard(r.Context(), u.ID, dashboardRecent)
	if err != nil {
		s.renderError(w, r, log.OpRead, err)
		return
	}

	monthBalance := d.Month.Balance()
	s.render(w, r, http.StatusOK, "dashboard", pageData{
		Title: "Início",
		User:  &u,
		Nav:   "dashboard",
		Content: dashboardView{
			Dashboard:    d,
			MonthName:    d.Period.Name(),
			MonthIncome:  core.FormatBRL(d.Month.Income),
			MonthExpense: core.FormatBRL(d.Month.Expense),
			MonthBalance: core.FormatBRL(monthBalance),
			BalanceColor: analysis.BalanceColor(d.Overall.Balance()),
		},
	})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	u := mustUser(r)
	filter, err := services.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		filter = services.FilterAll
	}

	txs, err := s.tx.List(r.Context(), u.ID, filter)
	if err != nil {
		s.renderError(w, r, log.OpList, err)
		return
	}

	tabs := []filterTab{
		{Value: services.FilterAll, Label: "Todas"},
		{Value: services.FilterIncome, Label: "Receitas"},
		{Value: services.FilterExpense, Label: "Despesas"},
	}
	for i := range tabs {
		tabs[i].Active = tabs[i].Value == filter
	}

	s.render(w, r, http.StatusOK, "transactions", pageData{
		Title:   "Transações",
		User:    &u,
		Nav:     "transactions",
		Content: transactionsView{Transactions: txs, Filter: filter, Tabs: tabs},
	})
}

func (s *Server) handleNewTransaction(w http.ResponseWriter, r *http.Request) {
	u := mustUser(r)
	typ, err := core.ParseTransactionType(r.URL.Query().Get("type"))
	if err != nil {
		typ = core.Expense
	}
	in := transactionInput{
		Type: typ.String(),
		Date: s.now().In(s.loc).Format(formDateLayout),
	}
	s.renderForm(w, r, u, http.StatusOK, in, "")
}

func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, u core.User, status int, in transactionInput, errMsg string) {
	typ, err := core.ParseTransactionType(in.Type)
	if err != nil {
		typ = core.Expense
		in.Type = typ.String()
	}
	title := "Nova despesa"
	if typ == core.Income {
		title = "Nova receita"
	}
	s.render(w, r, status, "transaction_form", pageData{
		Title:   title,
		User:    &u,
		Nav:     "new",
		Error:   errMsg,
		Content: formView{Input: in, Type: typ, Categories: s.catalog.List(typ)},
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	u := mustUser(r)
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.renderForm(w, r, u, http.StatusBadRequest, transactionInput{}, "Formulário inválido.")
		return
	}
	in := readTransactionInput(p)

	tx, err := in.Transaction(s.loc)
	if err == nil {
		_, err = s.tx.Create(r.Context(), u.ID, tx)
	}
	if err != nil {
		if statusFor(err) == http.StatusUnprocessableEntity {
			s.renderForm(w, r, u, http.StatusUnprocessableEntity, in, userMessage(err))
			return
		}
		s.renderError(w, r, log.OpCreate, err)
		return
	}

	http.Redirect(w, r, "/transactions?filter="+url.QueryEscape(tx.Type.String()), http.StatusSeeOther)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	u := mustUser(r)
	if err := s.tx.Delete(r.Context(), u.ID, r.PathValue("id")); err != nil {
		s.renderError(w, r, log.OpDelete, err)
		return
	}
	http.Redirect(w, r, "/transactions", http.StatusSeeOther)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	u := mustUser(r)
	now := s.now().In(s.loc)
	current := core.PeriodOf(now)

	p, err := ParsePeriodParams(r.URL.Query(), current)
	if err != nil || p.Validate() != nil || p.IsFuture(now) {
		p = current
	}

	report, err := s.tx.MonthlyAnalysis(r.Context(), u.ID, p)
	if err != nil {
		s.renderError(w, r, log.OpAnalyze, err)
		return
	}

	view := analyticsView{
		Report:       report,
		PeriodName:   p.Name() + " " + strconv.Itoa(p.Year),
		Prev:         p.Previous(),
		Next:         p.Next(),
		NextDisabled: p.Next().IsFuture(now),
		Income:       core.FormatBRL(report.TotalIncome),
		Expense:      core.FormatBRL(report.TotalExpense),
		Balance:      core.FormatBRL(report.Balance),
		Months:       monthOptions(p),
	}
	// A single listed category only fills the chart when nothing was dropped
	// from the breakdown.
	if len(report.CategoryBreakdown) == 1 && report.TotalExpense.GreaterThan(decimal.Zero) &&
		report.CategoryBreakdown[0].Amount.Equal(report.TotalExpense) {
		view.FullCircle = true
		view.FullCircleColor = report.CategoryBreakdown[0].Color
	}

	s.render(w, r, http.StatusOK, "analytics", pageData{
		Title:   "Análises",
		User:    &u,
		Nav:     "analytics",
		Content: view,
	})
}
