package academiasvc

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/trezcool/fomu/core/form"
)

var (
	otpGeneratePath = "otp/generate"
	otpVerifyPath   = "otp/verify"
)

type (
	generateOTP struct {
		Identifier string `json:"identifier"`
		Type       string `json:"type"` // email | phone
		Purpose    string `json:"purpose"`
	}

	verifyOTP struct {
		Identifier string `json:"identifier"`
		OTP        string `json:"otp"`
		Purpose    string `json:"purpose"`
	}
)

// GenerateCode asks academia to deliver a one-time code to the recipient.
// The code itself never travels through here.
func (c *Client) GenerateCode(ctx context.Context, req form.CodeRequest) error {
	data := generateOTP{Identifier: req.Recipient, Type: req.Channel, Purpose: req.Purpose}
	if err := c.do(ctx, http.MethodPost, otpGeneratePath, nil, data, nil); err != nil {
		var envErr *envelopeError
		if errors.As(err, &envErr) {
			return &form.UpstreamError{Message: envErr.message}
		}
		return err
	}
	return nil
}

// CheckCode submits a code for verification. Academia answers a wrong code
// with 400; any other rejection keeps its message.
func (c *Client) CheckCode(ctx context.Context, req form.CodeCheck) error {
	data := verifyOTP{Identifier: req.Recipient, OTP: req.Code, Purpose: req.Purpose}
	if err := c.do(ctx, http.MethodPost, otpVerifyPath, nil, data, nil); err != nil {
		var envErr *envelopeError
		if errors.As(err, &envErr) {
			if envErr.status == http.StatusBadRequest {
				return form.ErrCodeMismatch
			}
			return &form.UpstreamError{Message: envErr.message}
		}
		return err
	}
	return nil
}
