package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ValidateLoginResponse is the identity provider's answer to a successful
// validate-login call.
type ValidateLoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type requestLoginPayload struct {
	Email string `json:"email"`
}

type validateLoginPayload struct {
	Email         string `json:"email"`
	LoginID       string `json:"loginId"`
	LoginPassword string `json:"loginPassword"`
}

// RequestLogin asks the identity provider to deliver a one-time login id and
// password to the given email out of band.
func (c *Client) RequestLogin(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("api: email is required")
	}
	return c.do(ctx, http.MethodPost, "/login", requestLoginPayload{Email: email}, nil)
}

// ValidateLogin exchanges the one-time login id and password for a bearer
// token and the user record. The caller decides whether the role is
// acceptable; this call only speaks the wire protocol.
func (c *Client) ValidateLogin(ctx context.Context, email, loginID, loginPassword string) (ValidateLoginResponse, error) {
	if strings.TrimSpace(email) == "" || loginID == "" || loginPassword == "" {
		return ValidateLoginResponse{}, errors.New("api: email, login id and password are required")
	}
	var resp ValidateLoginResponse
	err := c.do(ctx, http.MethodPost, "/validate-login", validateLoginPayload{
		Email:         strings.TrimSpace(email),
		LoginID:       loginID,
		LoginPassword: loginPassword,
	}, &resp)
	if err != nil {
		return ValidateLoginResponse{}, err
	}
	return resp, nil
}
