package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ecadlabs/go-sui-keygen/keypool"
	"github.com/ecadlabs/go-sui-keygen/registry"
	"github.com/ecadlabs/go-sui-keygen/suikey"
	"github.com/gorilla/mux"
)

var (
	ErrUnknownProfile  = errors.New("unknown profile")
	ErrAddressMismatch = errors.New("address does not match key id")
)

const maxSignRequest = 1 << 20

type Key struct {
	Index      uint64 `json:"index"`
	Path       string `json:"path"`
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
	Address    string `json:"address"`
}

type ProfileStatus struct {
	Count    int    `json:"count"`
	Used     int    `json:"used"`
	Treasury string `json:"treasury,omitempty"`
}

type Lease struct {
	ID      uint64    `json:"id"`
	Address string    `json:"address"`
	Expires time.Time `json:"expires"`
}

type PublicKey struct {
	PublicKey string `json:"public_key"`
	Address   string `json:"address"`
}

type Signature struct {
	Signature  string `json:"signature"`
	Serialized string `json:"serialized"`
}

type Service interface {
	Pop(ctx context.Context, profile string) (*Key, error)
	Status(ctx context.Context, profile string) (*ProfileStatus, error)
	Lease(ctx context.Context, profile string) (*Lease, error)
	Pub(ctx context.Context, profile string, id uint64, address string) (*PublicKey, error)
	Sign(ctx context.Context, profile string, id uint64, address string, r io.Reader) (*Signature, error)
}

type Server struct {
	Service Service
}

func serviceError(w http.ResponseWriter, err error) {
	var (
		status    int
		decodeErr *suikey.DecodeError
		tooLarge  *http.MaxBytesError
	)
	switch {
	case errors.Is(err, ErrUnknownProfile), errors.Is(err, ErrAddressMismatch), errors.Is(err, keypool.ErrNotLeased):
		status = http.StatusNotFound
	case errors.Is(err, registry.ErrIndexRange), errors.Is(err, suikey.ErrInvalidPath), errors.As(err, &decodeErr):
		status = http.StatusBadRequest
	case errors.As(err, &tooLarge):
		status = http.StatusRequestEntityTooLarge
	default:
		status = http.StatusInternalServerError
	}
	jsonError(w, err, status)
}

func (s *Server) popHandler(w http.ResponseWriter, r *http.Request) {
	profile := mux.Vars(r)["profile"]
	key, err := s.Service.Pop(r.Context(), profile)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, 200, key)
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	profile := mux.Vars(r)["profile"]
	status, err := s.Service.Status(r.Context(), profile)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, 200, status)
}

func (s *Server) leaseHandler(w http.ResponseWriter, r *http.Request) {
	profile := mux.Vars(r)["profile"]
	lease, err := s.Service.Lease(r.Context(), profile)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, 200, lease)
}

func keyVars(r *http.Request) (profile string, id uint64, address string) {
	vars := mux.Vars(r)
	// the route pattern only admits digits
	id, _ = strconv.ParseUint(vars["id"], 10, 64)
	return vars["profile"], id, vars["address"]
}

func (s *Server) pkHandler(w http.ResponseWriter, r *http.Request) {
	profile, id, address := keyVars(r)
	pk, err := s.Service.Pub(r.Context(), profile, id, address)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, 200, pk)
}

func (s *Server) signHandler(w http.ResponseWriter, r *http.Request) {
	profile, id, address := keyVars(r)
	body := http.MaxBytesReader(w, r.Body, maxSignRequest)
	sig, err := s.Service.Sign(r.Context(), profile, id, address, body)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, 200, sig)
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Methods("POST").Path("/{profile}").HandlerFunc(s.popHandler)
	r.Methods("GET").Path("/{profile}").HandlerFunc(s.statusHandler)
	r.Methods("POST").Path("/{profile}/ephemeral").HandlerFunc(s.leaseHandler)
	r.Methods("GET").Path("/{profile}/ephemeral/{id:[0-9]+}/keys/{address}").HandlerFunc(s.pkHandler)
	r.Methods("POST").Path("/{profile}/ephemeral/{id:[0-9]+}/keys/{address}").HandlerFunc(s.signHandler)
	return r
}
