package httptransport

import (
	"net/http"

	"regdesk/internal/audit"
	"regdesk/internal/otp"
	httpjson "regdesk/internal/transport/http/json"
	"regdesk/internal/transport/http/shared"
	dErrors "regdesk/pkg/domain-errors"
)

type otpSendRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

type otpSendResponse struct {
	Sent bool `json:"sent"`
}

func (h *Handler) handleOTPSend(w http.ResponseWriter, r *http.Request) {
	var req otpSendRequest
	if err := httpjson.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	sent, err := h.otps.CreateAndSend(r.Context(), req.Email, otp.Purpose(req.Purpose))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	_ = h.recorder.Record(r.Context(), audit.Event{
		Action:       audit.ActionOTPRequested,
		ResourceType: "otp_challenge",
		Detail:       req.Purpose,
		Endpoint:     "/auth/otp/send",
	})

	writeJSONStatus(w, http.StatusOK, otpSendResponse{Sent: sent})
}

type otpVerifyRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	Code    string `json:"code"`
}

func (h *Handler) handleOTPVerify(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if err := httpjson.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if err := h.otps.Verify(r.Context(), req.Email, otp.Purpose(req.Purpose), req.Code); err != nil {
		shared.WriteError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusOK, map[string]bool{"verified": true})
}
