package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ecadlabs/go-sui-keygen/keypool"
	"github.com/ecadlabs/go-sui-keygen/registry"
	"github.com/ecadlabs/go-sui-keygen/server"
	"github.com/ecadlabs/go-sui-keygen/suikey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ServiceMock struct {
	mock.Mock
}

func (s *ServiceMock) Pop(ctx context.Context, profile string) (*server.Key, error) {
	args := s.Called(profile)
	key, _ := args.Get(0).(*server.Key)
	return key, args.Error(1)
}

func (s *ServiceMock) Status(ctx context.Context, profile string) (*server.ProfileStatus, error) {
	args := s.Called(profile)
	st, _ := args.Get(0).(*server.ProfileStatus)
	return st, args.Error(1)
}

func (s *ServiceMock) Lease(ctx context.Context, profile string) (*server.Lease, error) {
	args := s.Called(profile)
	l, _ := args.Get(0).(*server.Lease)
	return l, args.Error(1)
}

func (s *ServiceMock) Pub(ctx context.Context, profile string, id uint64, address string) (*server.PublicKey, error) {
	args := s.Called(profile, id, address)
	pk, _ := args.Get(0).(*server.PublicKey)
	return pk, args.Error(1)
}

func (s *ServiceMock) Sign(ctx context.Context, profile string, id uint64, address string, r io.Reader) (*server.Signature, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	args := s.Called(profile, id, address, string(data))
	sig, _ := args.Get(0).(*server.Signature)
	return sig, args.Error(1)
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	// unmatched routes get mux's plain text 404
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestRoutes(t *testing.T) {
	svc := ServiceMock{}
	svc.On("Pop", "main").Return(&server.Key{Index: 3, Address: "0xaa", Path: "m/44'/784'/3'/0'/0'"}, nil)
	svc.On("Status", "main").Return(&server.ProfileStatus{Count: 9, Used: 1}, nil)
	svc.On("Lease", "main").Return(&server.Lease{ID: 4, Address: "0xbb"}, nil)
	svc.On("Pub", "main", uint64(4), "0xbb").Return(&server.PublicKey{PublicKey: "AA==", Address: "0xbb"}, nil)
	svc.On("Sign", "main", uint64(4), "0xbb", "payload").Return(&server.Signature{Signature: "00ff", Serialized: "AP8="}, nil)

	h := (&server.Server{Service: &svc}).Router()

	code, body := do(t, h, "POST", "/main", "")
	assert.Equal(t, 200, code)
	assert.Equal(t, float64(3), body["index"])
	assert.Equal(t, "0xaa", body["address"])
	assert.Equal(t, "m/44'/784'/3'/0'/0'", body["path"])

	code, body = do(t, h, "GET", "/main", "")
	assert.Equal(t, 200, code)
	assert.Equal(t, float64(9), body["count"])
	assert.NotContains(t, body, "treasury")

	code, body = do(t, h, "POST", "/main/ephemeral", "")
	assert.Equal(t, 200, code)
	assert.Equal(t, float64(4), body["id"])

	code, body = do(t, h, "GET", "/main/ephemeral/4/keys/0xbb", "")
	assert.Equal(t, 200, code)
	assert.Equal(t, "AA==", body["public_key"])

	code, body = do(t, h, "POST", "/main/ephemeral/4/keys/0xbb", "payload")
	assert.Equal(t, 200, code)
	assert.Equal(t, "00ff", body["signature"])
	assert.Equal(t, "AP8=", body["serialized"])

	// non-numeric id does not route
	code, _ = do(t, h, "GET", "/main/ephemeral/x/keys/0xbb", "")
	assert.Equal(t, http.StatusNotFound, code)

	svc.AssertExpectations(t)
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{server.ErrUnknownProfile, http.StatusNotFound},
		{server.ErrAddressMismatch, http.StatusNotFound},
		{keypool.ErrNotLeased, http.StatusNotFound},
		{registry.ErrIndexRange, http.StatusBadRequest},
		{&suikey.DecodeError{Reason: "bad"}, http.StatusBadRequest},
		{errors.New("database is down"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		svc := ServiceMock{}
		svc.On("Status", "p").Return(nil, c.err)
		h := (&server.Server{Service: &svc}).Router()

		code, body := do(t, h, "GET", "/p", "")
		assert.Equal(t, c.status, code, c.err.Error())
		assert.Equal(t, c.err.Error(), body["error"])
	}
}

func TestSignTooLarge(t *testing.T) {
	svc := ServiceMock{}
	h := (&server.Server{Service: &svc}).Router()
	code, body := do(t, h, "POST", "/p/ephemeral/1/keys/0x00", strings.Repeat("a", 1<<20+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.NotEmpty(t, body["error"])
	svc.AssertNotCalled(t, "Sign")
}
