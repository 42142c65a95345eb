// Package ledger implements the funds-ledger collaborator over HTTP.
//
// The ledger is an external service; every call here crosses a network
// boundary. Calls are wrapped in a circuit breaker so a dead ledger fails
// admissions fast instead of stacking up timeouts. Transient failures on the
// read-only account lookup are retried with backoff; the debit itself is
// never retried because it is not idempotent.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/google/uuid"

	"github.com/pscheid92/zonewarden/internal/domain"
	"github.com/pscheid92/zonewarden/internal/metrics"
	"github.com/pscheid92/zonewarden/internal/platform/retry"
)

const requestTimeout = 5 * time.Second

// Client talks to the ledger's REST API and implements domain.Ledger.
type Client struct {
	baseURL string
	http    *http.Client
	cb      circuitbreaker.CircuitBreaker[any]
	policy  retry.Policy
}

func NewClient(baseURL string) *Client {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Ledger circuit breaker state changed",
				"from", e.OldState.String(), "to", e.NewState.String())
			metrics.LedgerCircuitBreakerStateChanges.WithLabelValues(e.NewState.String()).Inc()
			metrics.LedgerCircuitBreakerState.Set(stateToFloat(e.NewState))
		}).
		Build()

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		cb:      cb,
		policy: retry.Policy{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Debug("Retrying ledger call", "attempt", attempt, "backoff", backoff.String(), "error", err)
			},
		},
	}
}

type accountResponse struct {
	ID      string  `json:"id"`
	Balance float64 `json:"balance"`
}

type withdrawRequest struct {
	Amount float64 `json:"amount"`
}

type withdrawResponse struct {
	OK      bool    `json:"ok"`
	Balance float64 `json:"balance"`
}

// GetAccount resolves the participant's funds account. Returns nil without
// error when the ledger has no account for the participant.
func (c *Client) GetAccount(ctx context.Context, participantID uuid.UUID) (*domain.Account, error) {
	url := fmt.Sprintf("%s/accounts/%s", c.baseURL, participantID)

	resp, err := retry.Do(ctx, c.policy, classify, func() (*accountResponse, error) {
		var out accountResponse
		status, err := c.getJSON(ctx, url, &out)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			return nil, nil
		}
		if status != http.StatusOK {
			return nil, &statusError{status: status}
		}
		return &out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve account: %w", err)
	}
	if resp == nil {
		return nil, nil
	}
	return &domain.Account{ID: resp.ID, Balance: resp.Balance}, nil
}

// Withdraw debits amount from the account. A false return is the ledger's
// authoritative rejection (e.g. the balance drained between read and debit).
//
// The debit is not idempotent: a response lost after the ledger applied it
// would turn a retry into a second charge. Withdraw therefore makes exactly
// one attempt; only the read-only account lookup is retried.
func (c *Client) Withdraw(ctx context.Context, account *domain.Account, amount float64) (bool, error) {
	url := fmt.Sprintf("%s/accounts/%s/withdraw", c.baseURL, account.ID)

	body, err := json.Marshal(withdrawRequest{Amount: amount})
	if err != nil {
		return false, fmt.Errorf("marshal withdraw request: %w", err)
	}

	if !c.cb.TryAcquirePermit() {
		return false, fmt.Errorf("withdraw: ledger unavailable: %w", circuitbreaker.ErrOpen)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("withdraw: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		c.cb.RecordError(err)
		return false, fmt.Errorf("withdraw: %w", err)
	}
	defer httpResp.Body.Close()
	c.cb.RecordSuccess()

	switch httpResp.StatusCode {
	case http.StatusOK:
		var out withdrawResponse
		if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
			return false, fmt.Errorf("withdraw: %w", err)
		}
		return out.OK, nil
	case http.StatusPaymentRequired, http.StatusConflict:
		// Rejected, not broken.
		return false, nil
	default:
		return false, fmt.Errorf("withdraw: %w", &statusError{status: httpResp.StatusCode})
	}
}

func (c *Client) getJSON(ctx context.Context, url string, out any) (int, error) {
	if !c.cb.TryAcquirePermit() {
		return 0, &retry.PermanentError{Err: fmt.Errorf("ledger unavailable: %w", circuitbreaker.ErrOpen)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &retry.PermanentError{Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.cb.RecordError(err)
		return 0, err
	}
	defer resp.Body.Close()
	c.cb.RecordSuccess()

	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, err
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ledger returned status %d", e.status)
}

// classify maps errors to retry decisions: server-side statuses and network
// errors are transient, everything explicitly permanent stops immediately.
func classify(err error) retry.Action {
	var perm *retry.PermanentError
	if errors.As(err, &perm) {
		return retry.Stop
	}
	var se *statusError
	if errors.As(err, &se) {
		if se.status == http.StatusTooManyRequests {
			return retry.After
		}
		if se.status >= 500 {
			return retry.Retry
		}
		return retry.Stop
	}
	return retry.Retry
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}
