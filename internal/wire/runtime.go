package wire

import (
	"encoding/json"
	"errors"
	"io"
	"log"

	"xvault/core"
)

// wireRequest mirrors spec §6's inbound record: {type, payload}.
type wireRequest struct {
	Type    string       `json:"type"`
	Payload core.Payload `json:"payload"`
}

// wireResponse mirrors spec §6's outbound envelope: either
// {ok:true, operation, data} or {ok:false, operation, error, code, errorId}.
type wireResponse struct {
	OK        bool           `json:"ok"`
	Operation string         `json:"operation"`
	Data      core.Value     `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	Code      core.ErrorCode `json:"code,omitempty"`
	ErrorID   string         `json:"errorId,omitempty"`
}

// Handler is the narrow surface of core.Dispatcher the runtime loop needs,
// kept as an interface so tests can supply a stub without constructing a
// full Dispatcher.
type Handler interface {
	HandleOperation(req core.Request) core.Response
}

// Serve runs the per-connection frame loop: read one length-prefixed JSON
// frame, dispatch it, write one length-prefixed JSON frame back. It returns
// when r is exhausted (io.EOF) or a non-recoverable transport error occurs;
// malformed individual frames are reported back over the wire instead of
// terminating the loop, matching spec §6's "never crash the replica on bad
// input" propagation policy.
func Serve(r io.Reader, w io.Writer, h Handler) error {
	for {
		frame, err := ReadFrame(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		resp := dispatchFrame(frame, h)

		out, err := json.Marshal(resp)
		if err != nil {
			out, _ = json.Marshal(wireResponse{
				OK:    false,
				Error: "failed to encode response",
				Code:  core.ErrUnexpectedError,
			})
		}
		if err := WriteFrame(w, out); err != nil {
			return err
		}
	}
}

func dispatchFrame(frame []byte, h Handler) wireResponse {
	var req wireRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		log.Printf("wire: malformed request frame: %v", err)
		return wireResponse{OK: false, Error: "malformed request", Code: core.ErrInvalidInput}
	}

	resp := h.HandleOperation(core.Request{Type: req.Type, Payload: req.Payload})
	return wireResponse{
		OK:        resp.OK,
		Operation: resp.Operation,
		Data:      resp.Data,
		Error:     resp.Error,
		Code:      resp.Code,
		ErrorID:   resp.ErrorID,
	}
}
