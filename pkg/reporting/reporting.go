// Package reporting submits executed-deal summaries to an external
// desk-analytics endpoint. Reporting is advisory: failures are logged and
// never fail the workflow that triggered them.
package reporting

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/pkg/httpclient"
	"github.com/tokendesk/otc-desk/pkg/logger"
)

type Config struct {
	Disabled bool   `mapstructure:"disabled"`
	BaseURL  string `mapstructure:"base_url"`
	DeskName string `mapstructure:"desk_name"`
}

type Client struct {
	httpClient *httpclient.Client
	config     Config
}

func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("reporting.base_url config is required if reporting is enabled")
	}
	if config.DeskName == "" {
		return nil, errors.New("reporting.desk_name config is required if reporting is enabled")
	}
	httpClient, err := httpclient.New(config.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "can't create http client")
	}
	return &Client{
		httpClient: httpClient,
		config:     config,
	}, nil
}

type SubmitDealReportPayload struct {
	Desk          string       `json:"desk"`
	DealID        string       `json:"dealId"`
	ConsignmentID string       `json:"consignmentId"`
	TokenID       string       `json:"tokenId"`
	Chain         common.Chain `json:"chain"`
	Amount        string       `json:"amount"`
	DiscountBps   uint16       `json:"discountBps"`
	LockupDays    uint32       `json:"lockupDays"`
	CommissionBps uint16       `json:"commissionBps"`
	ExecutedAt    time.Time    `json:"executedAt"`
}

func (c *Client) SubmitDealReport(ctx context.Context, payload SubmitDealReportPayload) error {
	payload.Desk = c.config.DeskName
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "can't marshal payload")
	}
	resp, err := c.httpClient.Post(ctx, "/v1/report/deal", httpclient.RequestOptions{
		Body: body,
	})
	if err != nil {
		return errors.Wrap(err, "can't send request")
	}
	if resp.StatusCode() >= 400 {
		logger.WarnContext(ctx, "failed to submit deal report", slog.Any("payload", payload), slog.Any("responseBody", resp.Body()))
		return nil
	}
	logger.DebugContext(ctx, "deal report submitted", slog.String("dealId", payload.DealID))
	return nil
}
