package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPClient 托管钱包 API 的 HTTP 实现
// 所有调用都是有超时上限的短 RPC, 失败直接上抛由调用方决定是否重试
type HTTPClient struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: timeout},
	}
}

var _ Client = (*HTTPClient)(nil)

// envelope 服务商统一响应包装: {"status": "success", "data": {...}}
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func (c *HTTPClient) call(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode()), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("provider %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("provider %s: read body: %w", endpoint, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("provider %s: decode: %w", endpoint, err)
	}
	if env.Status != "success" {
		// 失败时 data 里带 error_message
		var e struct {
			ErrorMessage string `json:"error_message"`
		}
		_ = json.Unmarshal(env.Data, &e)
		if e.ErrorMessage == "" {
			e.ErrorMessage = fmt.Sprintf("http %d", resp.StatusCode)
		}
		return fmt.Errorf("provider %s: %s", endpoint, e.ErrorMessage)
	}

	return json.Unmarshal(env.Data, out)
}

func (c *HTTPClient) CreateAddress(ctx context.Context, label string) (*Address, error) {
	var addr Address
	params := url.Values{"label": {label}}
	if err := c.call(ctx, "get_new_address", params, &addr); err != nil {
		return nil, err
	}
	return &addr, nil
}

func (c *HTTPClient) EstimateFee(ctx context.Context, amount decimal.Decimal, destination string) (*FeeEstimate, error) {
	var fee FeeEstimate
	params := url.Values{
		"amounts":      {amount.String()},
		"to_addresses": {destination},
	}
	if err := c.call(ctx, "get_network_fee_estimate", params, &fee); err != nil {
		return nil, err
	}
	return &fee, nil
}

func (c *HTTPClient) BroadcastWithdrawal(ctx context.Context, amount decimal.Decimal, fromAddress, destination string) (*Receipt, error) {
	var receipt Receipt
	params := url.Values{
		"amounts":        {amount.String()},
		"from_addresses": {fromAddress},
		"to_addresses":   {destination},
	}
	if err := c.call(ctx, "withdraw_from_addresses", params, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *HTTPClient) ListTransactions(ctx context.Context, address string, direction Direction) ([]Tx, error) {
	var data struct {
		Txs []Tx `json:"txs"`
	}
	params := url.Values{
		"addresses": {address},
		"type":      {string(direction)},
	}
	if err := c.call(ctx, "get_transactions", params, &data); err != nil {
		return nil, err
	}
	return data.Txs, nil
}
