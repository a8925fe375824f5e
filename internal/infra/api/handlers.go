package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/infra/logging"
	"ai-chat-subscription/internal/usecase"
)

const stripeSignatureHeader = "Stripe-Signature"

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, s.log, domain.NewValidationError("", "unreadable body"))
		return
	}
	if err := s.d.Webhooks.Handle(r.Context(), payload, r.Header.Get(stripeSignatureHeader)); err != nil {
		if errors.Is(err, domain.ErrEventProcessing) {
			// audited; a 5xx asks the processor to redeliver
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("webhook processing failed")
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: domain.ErrEventProcessing.Error()})
			return
		}
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.d.Plans.ListActivePlans(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": toPlanDTOs(plans)})
}

// ----- account -----

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	view, err := s.d.Account.Me(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile": toProfileDTO(view.Profile),
		"plan":    toPlanDTO(view.Plan),
		"access":  view.Access,
		"isAdmin": view.IsAdmin,
	})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	in := usecase.ProfileInput{FullName: req.FullName, DocumentID: req.CPF, Phone: req.Phone}
	if req.BirthDate != nil && strings.TrimSpace(*req.BirthDate) != "" {
		d, err := time.Parse(dateLayout, strings.TrimSpace(*req.BirthDate))
		if err != nil {
			writeError(w, r, s.log, domain.NewValidationError("birthDate", "must be YYYY-MM-DD"))
			return
		}
		in.BirthDate = &d
	}
	p, err := s.d.Account.UpdateProfile(r.Context(), IdentityFrom(r.Context()), in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": toProfileDTO(p)})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err := s.d.Account.ChangePassword(r.Context(), IdentityFrom(r.Context()), req.Password); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.d.Account.DeleteAccount(r.Context(), IdentityFrom(r.Context())); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if s.opts.CookieName != "" {
		http.SetCookie(w, &http.Cookie{Name: s.opts.CookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	}
	w.WriteHeader(http.StatusNoContent)
}

// ----- billing -----

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	res, err := s.d.Billing.Checkout(r.Context(), IdentityFrom(r.Context()), req.Plan, model.BillingInterval(req.Interval))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":           res.RedirectURL,
		"plan":          res.PlanID,
		"complimentary": res.Complimentary,
	})
}

func (s *Server) handlePortal(w http.ResponseWriter, r *http.Request) {
	url, err := s.d.Billing.Portal(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// ----- chat -----

func (s *Server) handleChatOverview(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())
	ov, err := s.d.Chat.Overview(r.Context(), id.UserID, r.URL.Query().Get("chatId"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": toSessionDTOs(ov.Sessions),
		"messages": toMessageDTOs(ov.Messages),
	})
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	id := IdentityFrom(r.Context())
	turn, err := s.d.Chat.PostMessage(r.Context(), id.UserID, req.Message, req.ChatID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chatId":  turn.Session.ID,
		"title":   turn.Session.TitleOrDefault(),
		"session": toSessionDTO(turn.Session),
		"reply":   toMessageDTO(turn.Assistant),
		"usage": usageDTO{
			PromptTokens:     turn.Usage.PromptTokens,
			CompletionTokens: turn.Usage.CompletionTokens,
			TotalTokens:      turn.Usage.TotalTokens,
		},
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())
	if err := s.d.Chat.DeleteSession(r.Context(), id.UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
