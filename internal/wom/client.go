// Package wom is a client for the WOM platform's voucher creation API.
// A source (this service) asks the registry to mint vouchers and receives a
// one-time code plus password the user redeems in the WOM pocket app.
package wom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/digit-srl/diarycollector/internal/domain"
)

const createPath = "/api/v1/voucher/create"

// maxErrorBody bounds how much of a failed response is kept in Error.Body.
const maxErrorBody = 512

// Config configures a Client.
type Config struct {
	BaseURL   string // registry root, no trailing slash
	SourceID  string
	SourceKey string
	LinkBase  string // prefix the one-time code is appended to
	Timeout   time.Duration
}

// Client requests vouchers on behalf of a single WOM source.
// It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient builds a Client. The default http.Client uses cfg.Timeout.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type voucherInfo struct {
	Aim       string    `json:"aim"`
	Count     int       `json:"count"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

type createRequest struct {
	SourceID string        `json:"sourceId"`
	Nonce    string        `json:"nonce"`
	Vouchers []voucherInfo `json:"vouchers"`
}

type createResponse struct {
	OTC      string `json:"otc"`
	Password string `json:"password"`
}

// Error is returned when the registry answers with a non-2xx status.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("wom registry returned %d: %s", e.StatusCode, e.Body)
}

// ErrBadResponse is wrapped when a 2xx response cannot be understood.
var ErrBadResponse = errors.New("wom registry returned an unusable response")

// RequestVouchers asks the registry to create one batch of vouchers.
func (c *Client) RequestVouchers(ctx context.Context, req domain.VoucherRequest) (domain.VoucherReceipt, error) {
	payload := createRequest{
		SourceID: c.cfg.SourceID,
		Nonce:    uuid.NewString(),
		Vouchers: []voucherInfo{{
			Aim:       req.Aim,
			Count:     req.Count,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Timestamp: req.Timestamp.UTC(),
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.VoucherReceipt{}, fmt.Errorf("wom.Client.RequestVouchers: encode: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+createPath, bytes.NewReader(body))
	if err != nil {
		return domain.VoucherReceipt{}, fmt.Errorf("wom.Client.RequestVouchers: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.SourceKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.VoucherReceipt{}, fmt.Errorf("wom.Client.RequestVouchers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.VoucherReceipt{}, fmt.Errorf("wom.Client.RequestVouchers: %w",
			&Error{StatusCode: resp.StatusCode, Body: string(excerpt)})
	}

	var out createResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.VoucherReceipt{}, fmt.Errorf("wom.Client.RequestVouchers: %w: %v", ErrBadResponse, err)
	}
	if out.OTC == "" || out.Password == "" {
		return domain.VoucherReceipt{}, fmt.Errorf("wom.Client.RequestVouchers: %w: missing otc or password", ErrBadResponse)
	}

	return domain.VoucherReceipt{
		Link:     c.cfg.LinkBase + "/" + out.OTC,
		Password: out.Password,
	}, nil
}
