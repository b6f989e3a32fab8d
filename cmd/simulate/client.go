package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hackgods/doctor-appointment-scheduling/internal/api"
)

type apiClient struct {
	base string
	http *http.Client
}

// apiError is a non-2xx response.
type apiError struct {
	Status  int
	Code    string
	Details string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Details)
}

func call[T any](ctx context.Context, c *apiClient, method, path, token string, body any) (T, error) {
	var zero T

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return zero, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return zero, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()

	var env api.Envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return zero, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return zero, &apiError{Status: resp.StatusCode, Code: env.Error, Details: env.Details}
	}
	return env.Data, nil
}

func (c *apiClient) signUp(ctx context.Context, name, email, password, typ string) (api.AuthResponse, error) {
	_, err := call[api.UserResponse](ctx, c, http.MethodPost, "/auth/new", "", api.RegisterRequest{
		Name: name, Email: email, Password: password, Type: typ,
	})
	if err != nil {
		return api.AuthResponse{}, fmt.Errorf("register %s: %w", email, err)
	}
	return call[api.AuthResponse](ctx, c, http.MethodPost, "/auth", "", api.AuthRequest{Email: email, Password: password})
}
