package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/doctor-appointment-scheduling/internal/booking"
)

func createScheduleHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateScheduleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}

		s, err := svc.BookSlot(r.Context(), callerOf(r), booking.BookInput{
			DoctorID: req.DoctorID,
			Date:     req.Date,
			SlotTime: req.SlotTime,
			Notes:    req.Notes,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeData(w, http.StatusCreated, toScheduleResponse(s))
	}
}

func listOwnSchedulesHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListOwn(r.Context(), callerOf(r))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		resp := make([]ScheduleResponse, 0, len(list))
		for _, s := range list {
			resp = append(resp, toScheduleResponse(s))
		}
		writeData(w, http.StatusOK, resp)
	}
}

func getScheduleHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := svc.Get(r.Context(), callerOf(r), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toScheduleResponse(s))
	}
}

func cancelScheduleHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := svc.Cancel(r.Context(), callerOf(r), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toScheduleResponse(s))
	}
}

func completeScheduleHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := svc.Complete(r.Context(), callerOf(r), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toScheduleResponse(s))
	}
}
