package mythx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// Auth endpoint paths, relative to the API prefix.
const (
	pathLogin   = "/auth/login"
	pathRefresh = "/auth/refresh"
)

// errMissingTokens is the cause recorded when a 2xx auth reply lacks tokens.
var errMissingTokens = errors.New("response missing access or refresh token")

// loginRequest is the body of POST /auth/login.
type loginRequest struct {
	EthAddress string `json:"ethAddress"`
	Password   string `json:"password"`
}

// refreshRequest is the body of POST /auth/refresh.
type refreshRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// tokenResponse mirrors the login and refresh reply.
type tokenResponse struct {
	JWTTokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"jwtTokens"`
}

// authenticator exchanges credentials or a refresh token for a new TokenPair.
// It only produces pairs; storing them is the session's job.
type authenticator struct {
	transport Transport
	logger    *slog.Logger
}

// login performs a credential login.
func (a *authenticator) login(ctx context.Context, creds Credentials) (TokenPair, error) {
	a.logger.Info("logging in", slog.String("address", creds.Address))

	resp, err := a.transport.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   pathLogin,
		Body:   loginRequest{EthAddress: creds.Address, Password: creds.Password},
	})
	if err != nil {
		return TokenPair{}, authFailure(creds.Address, "login", err)
	}

	pair, err := decodeTokens(resp)
	if err != nil {
		return TokenPair{}, &AuthenticationError{Address: creds.Address, Op: "login", Err: err}
	}

	a.logger.Info("login successful", slog.String("address", creds.Address))

	return pair, nil
}

// refresh exchanges the current (possibly expired) pair for a new one.
func (a *authenticator) refresh(ctx context.Context, address string, current TokenPair) (TokenPair, error) {
	a.logger.Debug("refreshing access token", slog.String("address", address))

	resp, err := a.transport.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   pathRefresh,
		Body:   refreshRequest{AccessToken: current.AccessToken, RefreshToken: current.RefreshToken},
	})
	if err != nil {
		return TokenPair{}, authFailure(address, "refresh", err)
	}

	pair, err := decodeTokens(resp)
	if err != nil {
		return TokenPair{}, &AuthenticationError{Address: address, Op: "refresh", Err: err}
	}

	a.logger.Info("access token refreshed", slog.String("address", address))

	return pair, nil
}

// authFailure converts a transport error into the caller-facing error. Any
// HTTP rejection becomes an AuthenticationError; transport failures (no
// response) keep their own identity.
func authFailure(address, op string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &AuthenticationError{
			Address:    address,
			Op:         op,
			StatusCode: apiErr.StatusCode,
			Err:        apiErr,
		}
	}

	return err
}

func decodeTokens(resp *Response) (TokenPair, error) {
	var tr tokenResponse
	if err := resp.decode(&tr); err != nil {
		return TokenPair{}, err
	}

	if tr.JWTTokens.Access == "" || tr.JWTTokens.Refresh == "" {
		return TokenPair{}, errMissingTokens
	}

	return TokenPair{AccessToken: tr.JWTTokens.Access, RefreshToken: tr.JWTTokens.Refresh}, nil
}
