package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const (
	headerAllowOrigin  = "Access-Control-Allow-Origin"
	headerAllowMethods = "Access-Control-Allow-Methods"
	headerAllowHeaders = "Access-Control-Allow-Headers"

	corsAllowOrigin  = "*"
	corsAllowMethods = "POST, OPTIONS"
	corsAllowHeaders = "Content-Type"
)

// rawRequest is the first decoding stage of an envelope. The id is kept raw so it can
// be validated separately from the JSON syntax.
type rawRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// errBodyTooLarge marks a body that exceeded the configured cap.
var errBodyTooLarge = errors.New("request body too large")

// writePreflight answers a CORS preflight. It bypasses dispatch entirely.
func writePreflight(w http.ResponseWriter) {
	h := w.Header()
	h.Set(headerAllowOrigin, corsAllowOrigin)
	h.Set(headerAllowMethods, corsAllowMethods)
	h.Set(headerAllowHeaders, corsAllowHeaders)
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", slog.String("err", err.Error()))
	}
}

type plainError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// readBody accumulates the request body until end of stream, refusing anything larger
// than limit bytes.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return body, nil
}

// parseEnvelope decodes one JSON-RPC request. A syntax error is returned as err, the
// parse failure of the exchange. A well-formed body that is not a valid envelope is
// returned as an Invalid Request response instead.
func parseEnvelope(body []byte) (Request, *Response, error) {
	var raw rawRequest
	var typeErr *json.UnmarshalTypeError
	dec := json.NewDecoder(bytes.NewReader(body))
	err := dec.Decode(&raw)
	if err != nil && !errors.As(err, &typeErr) {
		return Request{}, nil, err
	}
	if dec.More() {
		return Request{}, nil, errors.New("unexpected data after JSON-RPC envelope")
	}

	// A member of the wrong type is well-formed JSON, so it is an invalid request
	// rather than a parse failure. The id is echoed when it is usable.
	if typeErr != nil {
		id, idErr := parseRequestID(raw.ID)
		if idErr != nil {
			id = nil
		}
		resp := newError(RequestID{raw: id}, CodeInvalidRequest, errMsgInvalidRequest,
			fmt.Sprintf("%s must not be a JSON %s", typeErr.Field, typeErr.Value))
		return Request{}, &resp, nil
	}

	id, err := parseRequestID(raw.ID)
	if err != nil {
		resp := newError(RequestID{}, CodeInvalidRequest, errMsgInvalidRequest, err.Error())
		return Request{}, &resp, nil
	}
	req := Request{
		JSONRPC: raw.JSONRPC,
		ID:      RequestID{raw: id},
		Method:  raw.Method,
		Params:  raw.Params,
	}
	if req.JSONRPC != JSONRPCVersion {
		resp := newError(req.ID, CodeInvalidRequest, errMsgInvalidRequest,
			fmt.Sprintf("jsonrpc must be %q", JSONRPCVersion))
		return Request{}, &resp, nil
	}
	if req.Method == "" {
		resp := newError(req.ID, CodeInvalidRequest, errMsgInvalidRequest, "method is required")
		return Request{}, &resp, nil
	}
	return req, nil, nil
}

// recoverDispatch converts a panic raised while dispatching req into an Internal error
// response so a single bad request never takes the process down.
func recoverDispatch(logger *slog.Logger, req Request, resp *Response) {
	r := recover()
	if r == nil {
		return
	}
	logger.Error("recovered from panic during dispatch",
		slog.String("method", req.Method),
		slog.String("id", req.ID.String()),
		slog.Any("panic", r),
	)
	*resp = newError(req.ID, CodeInternalError, errMsgInternalError, fmt.Sprint(r))
}
