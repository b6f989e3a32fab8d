package api

import (
	"net/http"

	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
	"github.com/hackgods/doctor-appointment-scheduling/internal/user"
)

// callerOf returns the authenticated caller. Routes using it sit behind
// AuthMiddleware, so the caller is always present.
func callerOf(r *http.Request) auth.Caller {
	c, _ := auth.CallerFrom(r.Context())
	return c
}

func authenticateHandler(svc *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AuthRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}

		u, token, err := svc.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeData(w, http.StatusOK, AuthResponse{Token: token, User: toUserResponse(u)})
	}
}

func registerHandler(svc *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}

		u, err := svc.Register(r.Context(), user.RegisterInput{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Type:     auth.Role(req.Type),
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeData(w, http.StatusCreated, toUserResponse(u))
	}
}

func meHandler(svc *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := svc.Me(r.Context(), callerOf(r).ID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toUserResponse(u))
	}
}

func listDoctorsHandler(svc *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := svc.ListDoctors(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for _, d := range doctors {
			resp = append(resp, DoctorResponse{
				UserResponse:      toUserResponse(&d.User),
				AvailabilityCount: d.AvailabilityCount,
			})
		}
		writeData(w, http.StatusOK, resp)
	}
}
