package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/usecase"
)

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

// ----- plans -----

func (s *Server) handleAdminListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.d.Plans.ListPlans(r.Context(), true)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": toPlanDTOs(plans)})
}

func (s *Server) handleAdminCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planCreateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	p, err := s.d.Plans.CreatePlan(r.Context(), model.PlanInput{
		ID:                     req.ID,
		Name:                   req.Name,
		Description:            req.Description,
		PriceMonthly:           req.PriceMonthly,
		PriceYearly:            req.PriceYearly,
		ExternalPriceRef:       req.StripePriceID,
		ExternalPriceRefYearly: req.StripePriceIDYearly,
		Features:               req.Features,
		IsActive:               req.IsActive,
		SortOrder:              req.SortOrder,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"plan": toPlanDTO(p)})
}

func (s *Server) handleAdminUpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req planPatchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	patch := model.PlanPatch{
		Name:                   req.Name,
		Description:            req.Description,
		PriceMonthly:           req.PriceMonthly,
		ExternalPriceRef:       req.StripePriceID,
		ExternalPriceRefYearly: req.StripePriceIDYearly,
		Features:               req.Features,
		IsActive:               req.IsActive,
		SortOrder:              req.SortOrder,
	}
	switch raw := bytes.TrimSpace(req.PriceYearly); {
	case len(raw) == 0:
	case string(raw) == "null":
		patch.ClearPriceYearly = true
	default:
		var d decimal.Decimal
		if err := json.Unmarshal(raw, &d); err != nil {
			writeError(w, r, s.log, domain.NewValidationError("priceYearly", "must be a number"))
			return
		}
		patch.PriceYearly = &d
	}

	p, err := s.d.Plans.UpdatePlan(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plan": toPlanDTO(p)})
}

func (s *Server) handleAdminDeactivatePlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.d.Plans.DeactivatePlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plan": toPlanDTO(p)})
}

// ----- prompt -----

func (s *Server) handleAdminGetPrompt(w http.ResponseWriter, r *http.Request) {
	snap, err := s.d.Prompts.Get(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromptDTO(snap))
}

func (s *Server) handleAdminSetPrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	snap, err := s.d.Prompts.Set(r.Context(), req.Prompt)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromptDTO(snap))
}

func (s *Server) handleAdminResetPrompt(w http.ResponseWriter, r *http.Request) {
	snap, err := s.d.Prompts.Reset(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromptDTO(snap))
}

// ----- users -----

func userFilter(r *http.Request) usecase.UserFilter {
	q := r.URL.Query()
	return usecase.UserFilter{
		Query:  q.Get("q"),
		Plan:   q.Get("plan"),
		Status: q.Get("status"),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
}

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.d.Admin.ListUsers(r.Context(), IdentityFrom(r.Context()), userFilter(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": toProfileDTOs(users)})
}

var exportHeader = []string{"id", "email", "full_name", "cpf", "phone", "birth_date", "plan", "status", "blocked", "created_at"}

func (s *Server) handleAdminExportUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.d.Admin.ExportUsers(r.Context(), IdentityFrom(r.Context()), userFilter(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	_ = cw.Write(exportHeader)
	for _, p := range users {
		birth := ""
		if p.BirthDate != nil {
			birth = p.BirthDate.Format(dateLayout)
		}
		_ = cw.Write([]string{
			p.ID, p.Email, csvSafe(p.FullName), p.DocumentID, csvSafe(p.Phone), birth,
			p.ActivePlan, string(p.Status()), strconv.FormatBool(p.IsBlocked),
			p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		writeError(w, r, s.log, err)
		return
	}

	filename := fmt.Sprintf("users_%s.csv", time.Now().UTC().Format("2006-01-02_15-04-05"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// csvSafe neutralises values a spreadsheet would evaluate as a formula.
func csvSafe(v string) string {
	if v != "" && (v[0] == '=' || v[0] == '+' || v[0] == '-' || v[0] == '@') {
		return "'" + v
	}
	return v
}

func (s *Server) handleAdminUserDetail(w http.ResponseWriter, r *http.Request) {
	d, err := s.d.Admin.UserDetail(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile":  toProfileDTO(d.Profile),
		"sessions": toSessionDTOs(d.Sessions),
	})
}

func (s *Server) handleAdminUserAction(w http.ResponseWriter, r *http.Request) {
	var req adminActionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	action := model.AdminAction{
		Kind:     model.AdminActionKind(req.Action),
		Plan:     req.Plan,
		Password: req.NewPassword,
		Blocked:  req.Blocked,
	}
	if err := s.d.Admin.ApplyAction(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"), action); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ----- webhooks -----

func (s *Server) handleAdminListWebhooks(w http.ResponseWriter, r *http.Request) {
	events, err := s.d.Webhooks.ListEvents(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]webhookEventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, toWebhookEventDTO(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (s *Server) handleAdminReplayWebhook(w http.ResponseWriter, r *http.Request) {
	rec, err := s.d.Webhooks.Replay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if rec == nil {
			writeError(w, r, s.log, err)
			return
		}
		writeJSON(w, statusFor(err), map[string]any{
			"error": domain.ErrEventProcessing.Error(),
			"event": toWebhookEventDTO(rec),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": toWebhookEventDTO(rec)})
}

// ----- activity -----

func (s *Server) handleAdminLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.d.Admin.RecentLogs(r.Context(), IdentityFrom(r.Context()), queryInt(r, "limit"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]adminLogDTO, 0, len(logs))
	for _, l := range logs {
		out = append(out, adminLogDTO{ID: l.ID, ActorID: l.ActorID, Action: l.Action, TargetID: l.TargetID, Details: l.Details, CreatedAt: l.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": out})
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.d.Admin.Dashboard(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardDTO{
		TotalUsers:        d.TotalUsers,
		ActiveSubscribers: d.ActiveSubscribers,
		TotalSessions:     d.TotalSessions,
		TotalMessages:     d.TotalMessages,
		UsersByPlan:       d.UsersByPlan,
		Signups:           toDaily(d.Signups),
		UserMessages:      toDaily(d.UserMessages),
		AssistantMessages: toDaily(d.AssistantMessages),
		PromptUpdatedAt:   d.PromptUpdatedAt,
	})
}
