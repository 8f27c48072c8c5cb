package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HorizonClient implements Ledger using the Horizon REST API.
type HorizonClient struct {
	BaseURL string
	Client  *http.Client
}

// NewHorizonClient creates a client with optional proxy support.
func NewHorizonClient(baseURL, proxyURL string, timeout time.Duration) *HorizonClient {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HorizonClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (h *HorizonClient) Name() string { return "horizon" }

type horizonBalance struct {
	Balance     string `json:"balance"`
	AssetType   string `json:"asset_type"`
	AssetCode   string `json:"asset_code"`
	AssetIssuer string `json:"asset_issuer"`
}

type horizonProblem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Extras struct {
		ResultCodes struct {
			Transaction string   `json:"transaction"`
			Operations  []string `json:"operations"`
		} `json:"result_codes"`
	} `json:"extras"`
}

func (h *HorizonClient) LoadAccount(ctx context.Context, accountID string) ([]Balance, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s", h.BaseURL, url.PathEscape(accountID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrAccountNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("load account: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Balances []horizonBalance `json:"balances"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	balances := make([]Balance, 0, len(result.Balances))
	for _, hb := range result.Balances {
		amt, err := decimal.NewFromString(hb.Balance)
		if err != nil {
			return nil, fmt.Errorf("decode balance %q: %w", hb.Balance, err)
		}
		balances = append(balances, Balance{
			AssetType:   hb.AssetType,
			AssetCode:   hb.AssetCode,
			AssetIssuer: hb.AssetIssuer,
			Amount:      amt,
		})
	}
	return balances, nil
}

func (h *HorizonClient) Submit(ctx context.Context, signedTx string) (string, error) {
	if strings.TrimSpace(signedTx) == "" {
		return "", ErrSignedTxRequired
	}
	form := url.Values{"tx": {signedTx}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/transactions", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	resp, err := h.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit transaction: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read submit response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var p horizonProblem
		if err := json.Unmarshal(body, &p); err != nil || p.Title == "" {
			return "", fmt.Errorf("submit transaction: status %d, body: %s", resp.StatusCode, string(body))
		}
		return "", &SubmitError{
			Status:     resp.StatusCode,
			Title:      p.Title,
			ResultCode: p.Extras.ResultCodes.Transaction,
			OpCodes:    p.Extras.ResultCodes.Operations,
		}
	}

	var result struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	return result.Hash, nil
}
