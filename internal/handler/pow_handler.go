package handler

import (
	"net/http"

	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/req"
	"chatrelay/internal/pkg/resp"
)

type PowVerifyInput struct {
	Nonce   string `json:"nonce"`
	Counter string `json:"counter"`
}

// HandlePowChallenge issues a nonce and the difficulty the proof must meet.
func HandlePowChallenge(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !deps.PoW.Enabled() {
			resp.RespondError(w, errs.NewError(errs.ErrPowDisabled))
			return
		}

		resp.RespondSuccess(w, map[string]any{
			"nonce":      deps.PoW.GenerateNonce(),
			"difficulty": deps.PoW.Difficulty(),
		})
	}
}

// HandlePowVerify trades a solved challenge for a single-use upgrade token.
func HandlePowVerify(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !deps.PoW.Enabled() {
			resp.RespondError(w, errs.NewError(errs.ErrPowDisabled))
			return
		}

		var input PowVerifyInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, customErr)
			return
		}

		if input.Nonce == "" || input.Counter == "" {
			resp.RespondError(w, errs.NewError(errs.ErrInvalidParams))
			return
		}

		token, err := deps.PoW.ValidateProof(input.Nonce, input.Counter)
		if err != nil {
			logx.Debug("proof of work rejected", "error", err.Error())
			resp.RespondError(w, errs.NewError(errs.ErrPowChallengeInvalid))
			return
		}

		resp.RespondSuccess(w, map[string]any{
			"token": token,
		})
	}
}
