package utils

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestSendText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/message/sendText/inst-1", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("apikey"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "5511999990001", body["number"])
		assert.Equal(t, "oi", body["text"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"key":{"id":"MSG123"}}`))
	}))
	defer srv.Close()

	g := NewGatewayClient(srv.URL, "secret", quietLogger())
	res, err := g.SendText(context.Background(), "inst-1", "5511999990001", "oi")
	require.NoError(t, err)
	assert.Equal(t, "MSG123", res.MessageID)
	assert.Equal(t, http.StatusCreated, res.HTTPStatus)
	assert.Contains(t, res.RawBody, "MSG123")
}

func TestSendTextGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid number"}`))
	}))
	defer srv.Close()

	g := NewGatewayClient(srv.URL, "secret", quietLogger())
	_, err := g.SendText(context.Background(), "inst-1", "abc", "oi")
	require.Error(t, err)

	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, http.StatusBadRequest, ge.StatusCode)
	assert.Contains(t, ge.Body, "invalid number")
	assert.False(t, IsChannelBlocked(err))
	assert.False(t, IsRetryable(err))
}

func TestCreateInstanceReturnsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/create", r.URL.Path)
		w.Write([]byte(`{"instance":{"instanceName":"inst-1"},"hash":{"apikey":"per-instance-token"}}`))
	}))
	defer srv.Close()

	g := NewGatewayClient(srv.URL, "secret", quietLogger())
	token, err := g.CreateInstance(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "per-instance-token", token)
}

func TestConnectionState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/connectionState/inst-1", r.URL.Path)
		w.Write([]byte(`{"instance":{"instanceName":"inst-1","state":"open"}}`))
	}))
	defer srv.Close()

	g := NewGatewayClient(srv.URL, "secret", quietLogger())
	state, err := g.ConnectionState(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "open", state.State)
	assert.Equal(t, "inst-1", state.InstanceName)
}

func TestIsChannelBlocked(t *testing.T) {
	blocked := []*GatewayError{
		{StatusCode: http.StatusUnauthorized, Body: "whatever"},
		{StatusCode: http.StatusForbidden, Body: ""},
		{StatusCode: http.StatusBadRequest, Body: "device was banned"},
		{StatusCode: http.StatusInternalServerError, Body: "Connection Closed"},
		{StatusCode: http.StatusConflict, Body: "instance logged out"},
	}
	for _, ge := range blocked {
		assert.True(t, IsChannelBlocked(ge), "status %d body %q", ge.StatusCode, ge.Body)
	}

	notBlocked := []error{
		&GatewayError{StatusCode: http.StatusTooManyRequests, Body: "rate limited"},
		&GatewayError{StatusCode: http.StatusBadRequest, Body: "invalid number"},
		errors.New("dial tcp: connection refused"),
		nil,
	}
	for _, err := range notBlocked {
		assert.False(t, IsChannelBlocked(err))
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&GatewayError{StatusCode: http.StatusTooManyRequests}))
	assert.True(t, IsRetryable(&GatewayError{StatusCode: http.StatusBadGateway}))
	assert.False(t, IsRetryable(&GatewayError{StatusCode: http.StatusBadRequest}))
	assert.False(t, IsRetryable(errors.New("timeout")))
}
