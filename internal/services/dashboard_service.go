package services

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/notocbot/backend/internal/middleware"
)

// DashboardService exposes the authenticated read API backing the web
// dashboard. Every handler resolves the caller from the JWT middleware
// context; there is no way to address another user's ledger.
type DashboardService struct {
	debts     *DebtService
	deadlines *DeadlineService
	stats     *StatsService
	validator *validator.Validate
}

func NewDashboardService(debts *DebtService, deadlines *DeadlineService, stats *StatsService) *DashboardService {
	return &DashboardService{
		debts:     debts,
		deadlines: deadlines,
		stats:     stats,
		validator: validator.New(),
	}
}

func requireUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return 0, false
	}
	return userID, true
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// GetSummary returns the headline totals
// @Summary Ledger summary for the authenticated user
// @Tags dashboard
// @Produce json
// @Success 200 {object} UserSummary "Summary"
// @Router /dashboard/summary [get]
func (s *DashboardService) GetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	summary, err := s.stats.GetUserSummary(r.Context(), userID)
	if err != nil {
		log.Printf("[Dashboard] summary failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	SendJSONResponse(w, http.StatusOK, summary)
}

// GetBalances returns non-zero balances per debtor
// @Summary Per-debtor balances, most owed first
// @Tags dashboard
// @Produce json
// @Router /dashboard/balances [get]
func (s *DashboardService) GetBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	balances, err := s.debts.GetAllBalances(r.Context(), userID)
	if err != nil {
		log.Printf("[Dashboard] balances failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	SendJSONResponse(w, http.StatusOK, balances)
}

// GetHistory returns recent transactions, optionally for one debtor
// @Summary Recent ledger history
// @Tags dashboard
// @Produce json
// @Param debtor_id query int false "Limit to one debtor"
// @Param limit query int false "Max entries (default 20)"
// @Router /dashboard/history [get]
func (s *DashboardService) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var debtorID *int64
	if raw := r.URL.Query().Get("debtor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			SendErrorResponse(w, "Invalid debtor_id", http.StatusBadRequest, nil)
			return
		}
		debtorID = &id
	}

	history, err := s.stats.GetHistoryForUser(r.Context(), userID, debtorID, queryInt(r, "limit", 20))
	if err != nil {
		log.Printf("[Dashboard] history failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	SendJSONResponse(w, http.StatusOK, history)
}

// GetDeadlines returns dated transactions soonest-due first
// @Summary Upcoming deadlines
// @Tags dashboard
// @Produce json
// @Param within_days query int false "Horizon in days (0 = all)"
// @Param limit query int false "Max entries (default 20)"
// @Router /dashboard/deadlines [get]
func (s *DashboardService) GetDeadlines(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	items, err := s.deadlines.ListUpcoming(r.Context(), userID, queryInt(r, "within_days", 0), queryInt(r, "limit", 20))
	if err != nil {
		log.Printf("[Dashboard] deadlines failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	SendJSONResponse(w, http.StatusOK, items)
}

// GetTrends returns monthly debt vs credit totals
// @Summary Monthly ledger trends
// @Tags dashboard
// @Produce json
// @Param months query int false "Months back (default 6)"
// @Router /dashboard/trends [get]
func (s *DashboardService) GetTrends(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	trends, err := s.stats.GetMonthlyTrends(r.Context(), userID, queryInt(r, "months", 6))
	if err != nil {
		log.Printf("[Dashboard] trends failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	SendJSONResponse(w, http.StatusOK, trends)
}

// SetDueDateRequest is the due-date update payload
type SetDueDateRequest struct {
	TransactionID int64      `json:"transaction_id" validate:"required"`
	DueDate       *time.Time `json:"due_date"` // null clears the deadline
}

// SetDueDate updates a transaction's deadline
// @Summary Set or clear a transaction due date
// @Tags dashboard
// @Accept json
// @Produce json
// @Param request body SetDueDateRequest true "Due date update"
// @Router /dashboard/deadlines [post]
func (s *DashboardService) SetDueDate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	req, ok := decodeJSONBody[SetDueDateRequest](w, r)
	if !ok {
		return
	}
	if err := s.validator.Struct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	updated, err := s.deadlines.SetDueDate(r.Context(), userID, req.TransactionID, req.DueDate)
	if err != nil {
		log.Printf("[Dashboard] set due date failed for user %d tx %d: %v", userID, req.TransactionID, err)
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	if updated == nil {
		SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		return
	}
	SendJSONResponse(w, http.StatusOK, updated)
}
