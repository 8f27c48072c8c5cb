package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"WalletGuard/internal/guard"
	"WalletGuard/internal/model"
)

// legacyRequest is the single body shape every smart-limit action shares.
// Amounts accept JSON numbers or strings.
type legacyRequest struct {
	Action           string                `json:"action"`
	PublicKey        string                `json:"publicKey"`
	DailyLimit       decimal.Decimal       `json:"dailyLimit"`
	MonthlyLimit     decimal.Decimal       `json:"monthlyLimit"`
	Amount           decimal.Decimal       `json:"amount"`
	ContactName      string                `json:"contactName"`
	ContactAddress   string                `json:"contactAddress"`
	IsTrusted        *bool                 `json:"isTrusted"`
	Memo             string                `json:"memo"`
	EmergencyContact string                `json:"emergencyContact"`
	Settings         *model.WalletSettings `json:"settings"`
}

// legacyHandler fills the response body for one action.
type legacyHandler func(ctx context.Context, req legacyRequest, out map[string]interface{}) error

func (s *Server) legacyActions() map[string]legacyHandler {
	g := s.guard
	return map[string]legacyHandler{
		"set_daily_limit": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			if req.DailyLimit.IsZero() {
				return badRequest("Daily limit is required")
			}
			if _, err := g.SetDailyLimit(ctx, req.PublicKey, req.DailyLimit); err != nil {
				return err
			}
			out["message"] = fmt.Sprintf("Daily spending limit set to %s XLM", req.DailyLimit)
			out["dailyLimit"] = req.DailyLimit
			return nil
		},
		"set_monthly_limit": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			if req.MonthlyLimit.IsZero() {
				return badRequest("Monthly limit is required")
			}
			if _, err := g.SetMonthlyLimit(ctx, req.PublicKey, req.MonthlyLimit); err != nil {
				return err
			}
			out["message"] = fmt.Sprintf("Monthly spending limit set to %s XLM", req.MonthlyLimit)
			out["monthlyLimit"] = req.MonthlyLimit
			return nil
		},
		"can_spend": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			if req.Amount.IsZero() {
				return badRequest("Amount is required")
			}
			res, err := g.CanSpend(ctx, req.PublicKey, req.Amount)
			if err != nil {
				return err
			}
			out["canSpend"] = res.CanSpend
			out["message"] = res.Message
			return nil
		},
		"get_spending_info": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			info, err := g.SpendingInfo(ctx, req.PublicKey)
			if err != nil {
				return err
			}
			out["spendingInfo"] = info
			out["message"] = "Spending info retrieved"
			return nil
		},
		"freeze_wallet": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			if _, err := g.Freeze(ctx, req.PublicKey); err != nil {
				return err
			}
			out["message"] = "Wallet has been frozen for security"
			out["isFrozen"] = true
			return nil
		},
		"unfreeze_wallet": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			if _, err := g.Unfreeze(ctx, req.PublicKey); err != nil {
				return err
			}
			out["message"] = "Wallet has been unfrozen"
			out["isFrozen"] = false
			return nil
		},
		"emergency_freeze": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			if _, err := g.EmergencyFreeze(ctx, req.PublicKey, req.EmergencyContact); err != nil {
				return err
			}
			out["message"] = "Wallet frozen by emergency contact"
			out["isFrozen"] = true
			return nil
		},
		"add_contact": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			c, err := g.AddContact(ctx, req.PublicKey, req.ContactName, req.ContactAddress, req.IsTrusted != nil && *req.IsTrusted)
			if err != nil {
				return err
			}
			out["message"] = fmt.Sprintf("Contact %q added successfully", c.Name)
			return nil
		},
		"remove_contact": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			if err := g.RemoveContact(ctx, req.PublicKey, req.ContactName); err != nil {
				return err
			}
			out["message"] = fmt.Sprintf("Contact %q removed", req.ContactName)
			return nil
		},
		"set_contact_trusted": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			trusted := req.IsTrusted == nil || *req.IsTrusted
			c, err := g.SetContactTrusted(ctx, req.PublicKey, req.ContactName, trusted)
			if err != nil {
				return err
			}
			out["message"] = fmt.Sprintf("Contact %q trust status updated", req.ContactName)
			out["isTrusted"] = c.IsTrusted
			return nil
		},
		"get_contact": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			c, err := g.GetContact(ctx, req.PublicKey, req.ContactName)
			if err != nil {
				return err
			}
			out["contact"] = c
			out["message"] = "Contact retrieved"
			return nil
		},
		"log_transaction": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			if _, err := g.LogTransaction(ctx, req.PublicKey, guard.LogRequest{
				To: req.ContactAddress, Amount: req.Amount, Memo: req.Memo,
			}); err != nil {
				return err
			}
			out["message"] = "Transaction logged to smart contract"
			return nil
		},
		"get_transaction_history": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			txs, err := g.TransactionHistory(ctx, req.PublicKey)
			if err != nil {
				return err
			}
			if txs == nil {
				txs = []model.Transaction{}
			}
			out["transactions"] = txs
			out["message"] = "Transaction history retrieved"
			return nil
		},
		"set_wallet_settings": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			if req.Settings == nil {
				return guard.ErrSettingsRequired
			}
			if _, err := g.SetSettings(ctx, req.PublicKey, *req.Settings); err != nil {
				return err
			}
			out["message"] = "Wallet settings updated"
			return nil
		},
		"get_wallet_settings": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			st, err := g.Settings(ctx, req.PublicKey)
			if err != nil {
				return err
			}
			out["settings"] = st
			out["message"] = "Wallet settings retrieved"
			return nil
		},
		"validate_transaction": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			d, err := g.Validate(ctx, guard.ValidateRequest{
				WalletKey: req.PublicKey,
				Amount:    req.Amount,
				Recipient: req.ContactAddress,
				Memo:      req.Memo,
			})
			if err != nil {
				return err
			}
			out["isValid"] = d.IsValid
			out["errors"] = d.Errors
			out["trustedRecipient"] = d.TrustedRecipient
			out["message"] = d.Message()
			return nil
		},
		"get_spending_analytics": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			a, err := g.Analytics(ctx, req.PublicKey)
			if err != nil {
				return err
			}
			out["analytics"] = a
			out["message"] = "Analytics retrieved"
			return nil
		},
		"reset_spending_limits": func(ctx context.Context, req legacyRequest, out map[string]interface{}) error {
			if _, err := g.ResetSpending(ctx, req.PublicKey); err != nil {
				return err
			}
			out["message"] = "Spending limits reset successfully"
			return nil
		},
	}
}

// handleLegacy serves the single-endpoint action API. Failures come back as
// {success:false, error} with a status that reflects the cause.
func (s *Server) handleLegacy(w http.ResponseWriter, r *http.Request) {
	var req legacyRequest
	err := decode(r, &req)
	if err == nil && strings.TrimSpace(req.PublicKey) == "" {
		err = guard.ErrWalletKeyRequired
	}
	var h legacyHandler
	if err == nil {
		var ok bool
		if h, ok = s.legacy[req.Action]; !ok {
			err = badRequest("Invalid action: " + req.Action)
		}
	}
	out := map[string]interface{}{
		"success":       true,
		"action":        req.Action,
		"smartContract": "guard",
	}
	if err == nil {
		err = h(r.Context(), req, out)
	}
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Sugar().Errorw("smart-limit action failed", "action", req.Action, "error", err)
		}
		legacyJSON(w, status, map[string]interface{}{"success": false, "error": msg})
		return
	}
	legacyJSON(w, http.StatusOK, out)
}
