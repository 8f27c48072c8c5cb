package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"WalletGuard/internal/guard"
	"WalletGuard/internal/model"
	"WalletGuard/internal/payment"
)

func walletKey(r *http.Request) string { return chi.URLParam(r, "walletKey") }

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("Invalid request body")
	}
	return nil
}

type limitBody struct {
	Limit decimal.Decimal `json:"limit"`
}

type amountBody struct {
	Amount decimal.Decimal `json:"amount"`
}

type validateBody struct {
	Amount    decimal.Decimal `json:"amount"`
	Recipient string          `json:"recipient"`
	Memo      string          `json:"memo"`
}

type releaseBody struct {
	ID string `json:"id"`
}

type emergencyBody struct {
	EmergencyContact string `json:"emergencyContact"`
}

type contactBody struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	IsTrusted bool   `json:"isTrusted"`
}

type trustedBody struct {
	IsTrusted *bool `json:"isTrusted"`
}

type logBody struct {
	To            string          `json:"to"`
	Amount        decimal.Decimal `json:"amount"`
	Memo          string          `json:"memo"`
	Hash          string          `json:"hash"`
	ReservationID string          `json:"reservationId"`
}

type sendBody struct {
	To       string          `json:"to"`
	Amount   decimal.Decimal `json:"amount"`
	Memo     string          `json:"memo"`
	SignedTx string          `json:"signedTx"`
}

func (s *Server) getSpending(w http.ResponseWriter, r *http.Request) {
	info, err := s.guard.SpendingInfo(r.Context(), walletKey(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, "Spending info retrieved", info)
}

func (s *Server) setDailyLimit(w http.ResponseWriter, r *http.Request) {
	var in limitBody
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	info, err := s.guard.SetDailyLimit(r.Context(), walletKey(r), in.Limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, "Daily spending limit set to "+in.Limit.String()+" XLM", info)
}

func (s *Server) setMonthlyLimit(w http.ResponseWriter, r *http.Request) {
	var in limitBody
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	info, err := s.guard.SetMonthlyLimit(r.Context(), walletKey(r), in.Limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, "Monthly spending limit set to "+in.Limit.String()+" XLM", info)
}

func (s *Server) freeze(w http.ResponseWriter, r *http.Request) {
	info, err := s.guard.Freeze(r.Context(), walletKey(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, "Wallet has been frozen for security", info)
}

func (s *Server) unfreeze(w http.ResponseWriter, r *http.Request) {
	info, err := s.guard.Unfreeze(r.Context(), walletKey(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, "Wallet has been unfrozen", info)
}

func (s *Server) emergencyFreeze(w http.ResponseWriter, r *http.Request) {
	var in emergencyBody
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	info, err := s.guard.EmergencyFreeze(r.Context(), walletKey(r), in.EmergencyContact)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, "Wallet frozen by emergency contact", info)
}

func (s *Server) resetSpending(w http.ResponseWriter, r *http.Request) {
	info, err := s.guard.ResetSpending(r.Context(), walletKey(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, "Spending limits reset successfully", info)
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	var in validateBody
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := s.guard.Validate(r.Context(), guard.ValidateRequest{
		WalletKey: walletKey(r),
		Amount:    in.Amount,
		Recipient: in.Recipient,
		Memo:      in.Memo,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, d.Message(), d)
}

func (s *Server) canSpend(w http.ResponseWriter, r *http.Request) {
	var in amountBody
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.guard.CanSpend(r.Context(), walletKey(r), in.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res.Message, res)
}

func (s *Server) release(w http.ResponseWriter, r *http.Request) {
	var in releaseBody
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	info, released, err := s.guard.Release(r.Context(), guard.Reservation{
		WalletKey: walletKey(r),
		ID:        in.ID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !released {
		JSON(w, http.StatusOK, "Reservation already released or settled", info)
		return
	}
	JSON(w, http.StatusOK, "Allowance released", info)
}

func (s *Server) analytics(w http.ResponseWriter, r *http.Request) {
	a, err := s.guard.Analytics(r.Context(), walletKey(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, "Analytics retrieved", a)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.guard.Settings(r.Context(), walletKey(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, "Wallet settings retrieved", st)
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var in model.WalletSettings
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.guard.SetSettings(r.Context(), walletKey(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, "Wallet settings updated", st)
}

func (s *Server) listContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.guard.Contacts(r.Context(), walletKey(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, "Contacts retrieved", contacts)
}

func (s *Server) addContact(w http.ResponseWriter, r *http.Request) {
	var in contactBody
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.guard.AddContact(r.Context(), walletKey(r), in.Name, in.Address, in.IsTrusted)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, `Contact "`+c.Name+`" added successfully`, c)
}

func (s *Server) getContact(w http.ResponseWriter, r *http.Request) {
	c, err := s.guard.GetContact(r.Context(), walletKey(r), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, "Contact retrieved", c)
}

func (s *Server) removeContact(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.guard.RemoveContact(r.Context(), walletKey(r), name); err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, `Contact "`+name+`" removed`, nil)
}

func (s *Server) setContactTrusted(w http.ResponseWriter, r *http.Request) {
	var in trustedBody
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	trusted := in.IsTrusted == nil || *in.IsTrusted
	c, err := s.guard.SetContactTrusted(r.Context(), walletKey(r), chi.URLParam(r, "name"), trusted)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, `Contact "`+c.Name+`" trust status updated`, c)
}

func (s *Server) transactionHistory(w http.ResponseWriter, r *http.Request) {
	txs, err := s.guard.TransactionHistory(r.Context(), walletKey(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	JSON(w, http.StatusOK, "Transaction history retrieved", txs)
}

func (s *Server) logTransaction(w http.ResponseWriter, r *http.Request) {
	var in logBody
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	tx, err := s.guard.LogTransaction(r.Context(), walletKey(r), guard.LogRequest{
		To: in.To, Amount: in.Amount, Memo: in.Memo, Hash: in.Hash, ReservationID: in.ReservationID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, "Transaction logged", tx)
}

func (s *Server) send(w http.ResponseWriter, r *http.Request) {
	var in sendBody
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.sender.Send(r.Context(), payment.Request{
		WalletKey: walletKey(r),
		To:        in.To,
		Amount:    in.Amount,
		Memo:      in.Memo,
		SignedTx:  in.SignedTx,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !res.Decision.IsValid {
		JSON(w, http.StatusOK, res.Decision.Message(), res)
		return
	}
	JSON(w, http.StatusOK, "Transaction submitted", res)
}

func (s *Server) account(w http.ResponseWriter, r *http.Request) {
	balances, err := s.sender.Account(r.Context(), walletKey(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, "Account loaded", balances)
}
