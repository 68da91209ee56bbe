// Package httptransport is the thin HTTP layer. Handlers decode envelopes,
// delegate to domain services, and translate operation errors; no business
// logic lives here.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"castellan/internal/auth/device"
	"castellan/internal/proto"
	"castellan/pkg/httputil"
)

// SessionIDHeader carries the negotiation session identifier between auth
// steps. Init responses set it; Creds requests must echo it back.
const SessionIDHeader = "X-Auth-Session-Id"

// TokenHeader carries the signed token issued on a successful negotiation.
const TokenHeader = "X-Auth-Token"

// maxRequestBody bounds request bodies. Filters and modify lists are small;
// anything larger is hostile or broken.
const maxRequestBody = 64 * 1024

// AuthService drives the authentication negotiation.
type AuthService interface {
	Step(ctx context.Context, sessionID *uuid.UUID, step proto.AuthStep, device string) (uuid.UUID, proto.AuthState, error)
}

// TokenSigner wraps an issued token in its transportable signed form.
type TokenSigner interface {
	Sign(ctx context.Context, sessionID uuid.UUID, uat proto.UserAuthToken) (string, error)
}

// DirectoryService executes directory operations.
type DirectoryService interface {
	Search(ctx context.Context, f proto.Filter) ([]proto.Entry, error)
	Create(ctx context.Context, entries []proto.Entry) error
	Delete(ctx context.Context, f proto.Filter) error
	Modify(ctx context.Context, f proto.Filter, ml proto.ModifyList) error
	SearchRecycled(ctx context.Context, f proto.Filter) ([]proto.Entry, error)
	Revive(ctx context.Context, f proto.Filter) error
	Whoami(ctx context.Context) (proto.Entry, *proto.UserAuthToken, error)
	VerifyConsistency(ctx context.Context) ([]proto.ConsistencyResult, error)
}

// Handler holds the domain services behind the HTTP surface.
type Handler struct {
	auth      AuthService
	signer    TokenSigner
	directory DirectoryService
	logger    *slog.Logger
}

// NewHandler creates the HTTP handler set.
func NewHandler(auth AuthService, signer TokenSigner, directory DirectoryService, logger *slog.Logger) *Handler {
	return &Handler{
		auth:      auth,
		signer:    signer,
		directory: directory,
		logger:    logger,
	}
}

// decode reads a JSON request body into dst. The body is capped at
// maxRequestBody and a malformed payload maps to the request-state error so
// clients see a structured envelope. Operation errors raised by the payload
// decoders themselves, such as an over-nested filter, pass through with
// their kind intact.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return proto.NewOperationError(proto.OpEmptyRequest)
		}
		var opErr *proto.OperationError
		if errors.As(err, &opErr) {
			return opErr
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return proto.NewOperationErrorText(proto.OpInvalidRequestState, "request body too large")
		}
		return proto.NewOperationErrorText(proto.OpInvalidRequestState, "malformed request body")
	}
	return nil
}

func (h *Handler) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req proto.AuthRequest
	if err := decode(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var sessionID *uuid.UUID
	if raw := r.Header.Get(SessionIDHeader); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.WriteError(w, proto.NewOperationError(proto.OpInvalidSessionState))
			return
		}
		sessionID = &id
	}

	id, state, err := h.auth.Step(r.Context(), sessionID, req.Step, device.DisplayName(r.UserAgent()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if state.Kind == proto.StateSuccess {
		signed, err := h.signer.Sign(r.Context(), id, *state.Token)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "token signing failed", "error", err)
			httputil.WriteError(w, proto.NewOperationError(proto.OpBackend))
			return
		}
		w.Header().Set(TokenHeader, signed)
	}
	w.Header().Set(SessionIDHeader, id.String())
	httputil.WriteJSON(w, http.StatusOK, proto.AuthResponse{SessionID: id, State: state})
}

func (h *Handler) handleWhoami(w http.ResponseWriter, r *http.Request) {
	entry, uat, err := h.directory.Whoami(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, proto.WhoamiResponse{YouAre: entry, UAT: *uat})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req proto.SearchRequest
	if err := decode(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.directory.Search(r.Context(), req.Filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []proto.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, proto.SearchResponse{Entries: entries})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req proto.CreateRequest
	if err := decode(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.directory.Create(r.Context(), req.Entries); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, proto.OperationResponse{})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req proto.DeleteRequest
	if err := decode(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.directory.Delete(r.Context(), req.Filter); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, proto.OperationResponse{})
}

func (h *Handler) handleModify(w http.ResponseWriter, r *http.Request) {
	var req proto.ModifyRequest
	if err := decode(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.directory.Modify(r.Context(), req.Filter, req.ModList); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, proto.OperationResponse{})
}

func (h *Handler) handleSearchRecycled(w http.ResponseWriter, r *http.Request) {
	var req proto.SearchRecycledRequest
	if err := decode(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.directory.SearchRecycled(r.Context(), req.Filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []proto.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, proto.SearchResponse{Entries: entries})
}

func (h *Handler) handleRevive(w http.ResponseWriter, r *http.Request) {
	var req proto.ReviveRecycledRequest
	if err := decode(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.directory.Revive(r.Context(), req.Filter); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, proto.OperationResponse{})
}

func (h *Handler) handleVerifyConsistency(w http.ResponseWriter, r *http.Request) {
	results, err := h.directory.VerifyConsistency(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if results == nil {
		results = []proto.ConsistencyResult{}
	}
	httputil.WriteJSON(w, http.StatusOK, results)
}
