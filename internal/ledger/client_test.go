package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/zonewarden/internal/domain"
	"github.com/pscheid92/zonewarden/internal/platform/retry"
)

func TestGetAccount_ReturnsAccount(t *testing.T) {
	pid := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/accounts/"+pid.String(), r.URL.Path)
		json.NewEncoder(w).Encode(accountResponse{ID: pid.String(), Balance: 321.5})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	account, err := client.GetAccount(context.Background(), pid)

	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, pid.String(), account.ID)
	assert.Equal(t, 321.5, account.Balance)
}

func TestGetAccount_NotFoundMeansNoAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	account, err := client.GetAccount(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestGetAccount_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	pid := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(accountResponse{ID: pid.String(), Balance: 10})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	account, err := client.GetAccount(context.Background(), pid)

	require.NoError(t, err)
	require.NotNil(t, account)
	assert.EqualValues(t, 3, calls.Load())
}

func TestGetAccount_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GetAccount(context.Background(), uuid.New())

	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load(), "4xx is not retried")
}

func TestWithdraw_DebitsAmount(t *testing.T) {
	pid := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/accounts/"+pid.String()+"/withdraw", r.URL.Path)

		var req withdrawRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 100, req.Amount)

		json.NewEncoder(w).Encode(withdrawResponse{OK: true, Balance: 50})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	ok, err := client.Withdraw(context.Background(), &domain.Account{ID: pid.String(), Balance: 150}, 100)

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWithdraw_RejectionIsNotAnError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	ok, err := client.Withdraw(context.Background(), &domain.Account{ID: uuid.NewString()}, 100)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.EqualValues(t, 1, calls.Load(), "a refused debit must never be replayed")
}

func TestWithdraw_ConflictIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	ok, err := client.Withdraw(context.Background(), &domain.Account{ID: uuid.NewString()}, 100)

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithdraw_ServerErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Withdraw(context.Background(), &domain.Account{ID: uuid.NewString()}, 100)

	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load(), "the debit must make exactly one attempt")
}

func TestWithdraw_LostResponseNeverReplaysDebit(t *testing.T) {
	// The ledger applies the debit but the response is lost (500). A later
	// attempt would succeed, but replaying a non-idempotent debit would
	// charge the account twice for one admission.
	var debits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if debits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(withdrawResponse{OK: true})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Withdraw(context.Background(), &domain.Account{ID: uuid.NewString()}, 100)

	require.Error(t, err)
	assert.EqualValues(t, 1, debits.Load(), "exactly one debit reached the ledger")
}

func TestClassify(t *testing.T) {
	assert.Equal(t, retry.Stop, classify(&statusError{status: http.StatusBadRequest}))
	assert.Equal(t, retry.Retry, classify(&statusError{status: http.StatusInternalServerError}))
	assert.Equal(t, retry.After, classify(&statusError{status: http.StatusTooManyRequests}))
	assert.Equal(t, retry.Stop, classify(&retry.PermanentError{Err: assert.AnError}))
	assert.Equal(t, retry.Retry, classify(assert.AnError))
}
