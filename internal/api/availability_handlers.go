package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/doctor-appointment-scheduling/internal/availability"
)

func createAvailabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAvailabilityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}

		win, err := svc.CreateWindow(r.Context(), callerOf(r), availability.CreateWindowInput{
			Date:        req.Date,
			StartTime:   req.StartTime,
			EndTime:     req.EndTime,
			SlotMinutes: req.SlotMinutes,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeData(w, http.StatusCreated, toWindowResponse(win))
	}
}

func listOwnAvailabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		windows, err := svc.ListOwn(r.Context(), callerOf(r))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toWindowResponses(windows))
	}
}

func listDoctorAvailabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		windows, err := svc.ListForDoctor(r.Context(), chi.URLParam(r, "doctorId"), r.URL.Query().Get("date"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toWindowResponses(windows))
	}
}

func listFreeSlotsHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		slots, err := svc.ListFreeSlots(r.Context(), q.Get("doctorId"), q.Get("date"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		resp := make([]FreeSlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, FreeSlotResponse{
				WindowID: s.WindowID,
				DoctorID: s.DoctorID,
				Date:     s.Date,
				Time:     s.Time,
			})
		}
		writeData(w, http.StatusOK, resp)
	}
}

func updateAvailabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateAvailabilityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}

		win, err := svc.UpdateWindow(r.Context(), callerOf(r), chi.URLParam(r, "id"), availability.Patch{
			StartTime:   req.StartTime,
			EndTime:     req.EndTime,
			SlotMinutes: req.SlotMinutes,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeData(w, http.StatusOK, toWindowResponse(win))
	}
}

func deleteAvailabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteWindow(r.Context(), callerOf(r), chi.URLParam(r, "id")); err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, true)
	}
}
