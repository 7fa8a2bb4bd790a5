package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillforge/skillbridge/internal/skills"
)

// DefaultEndpoint is the backend path that executes a skill.
const DefaultEndpoint = "/api/agent"

// Payer settles a skill call before it is executed.
type Payer interface {
	Pay(ctx context.Context, skillID, price *big.Int) (common.Hash, error)
}

// Request is the body posted to the execution backend.
type Request struct {
	SkillID *big.Int `json:"skillId"`
	Input   string   `json:"input"`
	Buyer   string   `json:"buyer"`
	TxHash  string   `json:"txHash,omitempty"`
}

// BackendError is a non-2xx answer from the execution backend.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	return e.Message
}

// Client forwards skill invocations to the execution backend.
type Client struct {
	client   *resty.Client
	baseURL  string
	endpoint string
	buyer    string
	payer    Payer
	logger   *zap.Logger
}

// Option is a functional option for configuring the client
type Option func(*Client)

// WithTimeout bounds a single backend call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client.SetTimeout(timeout)
		}
	}
}

// WithEndpoint overrides DefaultEndpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = "/" + strings.TrimPrefix(endpoint, "/")
		}
	}
}

// WithPayer makes every priced call pay on-chain first.
func WithPayer(payer Payer) Option {
	return func(c *Client) {
		c.payer = payer
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient allows using a custom http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = resty.NewWithClient(hc)
	}
}

// NewClient creates a backend client. buyer is the bridge's own account.
func NewClient(baseURL, buyer string, opts ...Option) *Client {
	c := &Client{
		client:   resty.New(),
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		endpoint: DefaultEndpoint,
		buyer:    buyer,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client.SetRetryCount(0)
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Execute runs skill with input and returns the backend's decoded JSON body.
func (c *Client) Execute(ctx context.Context, skill skills.Skill, input string) (interface{}, error) {
	body := Request{
		SkillID: skill.ID,
		Input:   input,
		Buyer:   c.buyer,
	}

	if c.payer != nil && skill.PricePerUse != nil && skill.PricePerUse.Sign() > 0 {
		hash, err := c.payer.Pay(ctx, skill.ID, skill.PricePerUse)
		if err != nil {
			return nil, fmt.Errorf("payment for skill #%s failed: %w", skill.Key(), err)
		}
		body.TxHash = hash.Hex()
	}

	requestID := uuid.NewString()
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Request-ID", requestID).
		SetBody(body).
		Post(c.baseURL + c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}

	if !resp.IsSuccess() {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := ""
		if json.Unmarshal(resp.Body(), &apiErr) == nil {
			msg = apiErr.Error
		}
		if msg == "" {
			msg = fmt.Sprintf("backend returned HTTP %d", resp.StatusCode())
		}
		return nil, &BackendError{StatusCode: resp.StatusCode(), Message: msg}
	}

	var out interface{}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("backend returned invalid JSON: %w", err)
	}

	c.logger.Debug("backend call completed",
		zap.String("skill_id", skill.Key()),
		zap.String("request_id", requestID),
		zap.Duration("duration", resp.Time()))
	return out, nil
}

// Describe turns an Execute error into the message shown to the agent.
func (c *Client) Describe(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(err.Error(), "connection refused") {
		return fmt.Sprintf("SkillForge backend unreachable at %s. Make sure the backend is running.", c.baseURL)
	}
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr.Message
	}
	return err.Error()
}
