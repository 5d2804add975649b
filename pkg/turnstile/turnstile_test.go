package turnstile_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/brightpath/brightpath-api/pkg/turnstile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockHTTPClient mocks the HTTP client
type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

// formOf reads back the form body the verifier sent
func formOf(t *testing.T, req *http.Request) url.Values {
	t.Helper()
	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	values, err := url.ParseQuery(string(raw))
	require.NoError(t, err)
	return values
}

func TestVerifier_Verify_Success(t *testing.T) {
	mockClient := new(MockHTTPClient)
	verifier := turnstile.NewVerifier("test-secret-key", mockClient)

	var sent *http.Request
	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		sent = req
		return req.Method == http.MethodPost && req.URL.String() == turnstile.DefaultVerifyURL
	})).Return(jsonResponse(200, `{"success": true, "hostname": "brightpath.agency"}`), nil).Once()

	result := verifier.Verify(context.Background(), "valid-token", "203.0.113.7")

	assert.True(t, result.OK())
	assert.Empty(t, result.Reason)
	mockClient.AssertExpectations(t)

	require.NotNil(t, sent)
	assert.Equal(t, "application/x-www-form-urlencoded", sent.Header.Get("Content-Type"))
	form := formOf(t, sent)
	assert.Equal(t, "test-secret-key", form.Get("secret"))
	assert.Equal(t, "valid-token", form.Get("response"))
	assert.Equal(t, "203.0.113.7", form.Get("remoteip"))
}

func TestVerifier_Verify_RejectedJoinsErrorCodes(t *testing.T) {
	mockClient := new(MockHTTPClient)
	verifier := turnstile.NewVerifier("test-secret-key", mockClient)

	mockClient.On("Do", mock.Anything).
		Return(jsonResponse(200, `{"success": false, "error-codes": ["timeout-or-duplicate", "invalid-input-response"]}`), nil).Once()

	result := verifier.Verify(context.Background(), "used-token", "203.0.113.7")

	assert.False(t, result.OK())
	assert.Equal(t, turnstile.KindRejected, result.Kind)
	assert.Equal(t, "timeout-or-duplicate, invalid-input-response", result.Reason)
	mockClient.AssertExpectations(t)
}

func TestVerifier_Verify_RejectedWithoutCodes(t *testing.T) {
	mockClient := new(MockHTTPClient)
	verifier := turnstile.NewVerifier("test-secret-key", mockClient)

	mockClient.On("Do", mock.Anything).Return(jsonResponse(200, `{"success": false}`), nil).Once()

	result := verifier.Verify(context.Background(), "token", "")

	assert.Equal(t, turnstile.KindRejected, result.Kind)
	assert.Empty(t, result.Reason)
}

func TestVerifier_Verify_MissingTokenMakesNoCall(t *testing.T) {
	mockClient := new(MockHTTPClient)
	verifier := turnstile.NewVerifier("test-secret-key", mockClient)

	for _, token := range []string{"", "   "} {
		result := verifier.Verify(context.Background(), token, "203.0.113.7")
		assert.Equal(t, turnstile.KindMissingToken, result.Kind)
		assert.Equal(t, turnstile.ReasonTokenMissing, result.Reason)
	}

	mockClient.AssertNotCalled(t, "Do", mock.Anything)
}

func TestVerifier_Verify_MissingSecret(t *testing.T) {
	mockClient := new(MockHTTPClient)
	verifier := turnstile.NewVerifier("", mockClient)

	result := verifier.Verify(context.Background(), "token", "203.0.113.7")

	assert.Equal(t, turnstile.KindMisconfigured, result.Kind)
	assert.Equal(t, turnstile.ReasonMisconfigured, result.Reason)
	mockClient.AssertNotCalled(t, "Do", mock.Anything)
}

func TestVerifier_Verify_RequestFailures(t *testing.T) {
	tests := []struct {
		name string
		resp *http.Response
		err  error
	}{
		{name: "network error", err: errors.New("connection reset by peer")},
		{name: "deadline exceeded", err: context.DeadlineExceeded},
		{name: "server error status", resp: jsonResponse(502, `bad gateway`)},
		{name: "undecodable body", resp: jsonResponse(200, `<html>`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := new(MockHTTPClient)
			verifier := turnstile.NewVerifier("test-secret-key", mockClient)

			if tt.resp != nil {
				mockClient.On("Do", mock.Anything).Return(tt.resp, nil).Once()
			} else {
				mockClient.On("Do", mock.Anything).Return(nil, tt.err).Once()
			}

			result := verifier.Verify(context.Background(), "token", "203.0.113.7")

			assert.Equal(t, turnstile.KindRequestFailed, result.Kind)
			assert.Equal(t, turnstile.ReasonRequestFailed, result.Reason)
			mockClient.AssertNumberOfCalls(t, "Do", 1)
		})
	}
}

func TestVerifier_Verify_UnknownClientOmitsRemoteIP(t *testing.T) {
	mockClient := new(MockHTTPClient)
	verifier := turnstile.NewVerifier("test-secret-key", mockClient,
		turnstile.WithVerifyURL("https://verify.internal/siteverify"))

	var sent *http.Request
	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		sent = req
		return req.URL.Host == "verify.internal"
	})).Return(jsonResponse(200, `{"success": true}`), nil).Once()

	result := verifier.Verify(context.Background(), "token", "unknown")

	assert.True(t, result.OK())
	require.NotNil(t, sent)
	form := formOf(t, sent)
	assert.False(t, form.Has("remoteip"))
}

func TestVerifier_Verify_CallIsBoundedByTimeout(t *testing.T) {
	mockClient := new(MockHTTPClient)
	verifier := turnstile.NewVerifier("test-secret-key", mockClient, turnstile.WithTimeout(50*time.Millisecond))

	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		deadline, ok := req.Context().Deadline()
		return ok && time.Until(deadline) <= 50*time.Millisecond
	})).Return(nil, context.DeadlineExceeded).Once()

	result := verifier.Verify(context.Background(), "token", "")

	assert.Equal(t, turnstile.KindRequestFailed, result.Kind)
	mockClient.AssertExpectations(t)
}
