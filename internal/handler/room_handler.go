/*
Package handler provides HTTP handler functions for room code generation and the
admin room API.
*/
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"voicerelay/internal/pkg/errs"
	"voicerelay/internal/pkg/logx"
	"voicerelay/internal/pkg/randx"
	"voicerelay/internal/pkg/resp"
)

const (
	// codeAttempts bounds retries when a generated code is already active.
	codeAttempts = 5

	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

// HandleNewRoomCode suggests a random room code that is not currently active. The code
// is not reserved: the room only exists once someone joins it.
func HandleNewRoomCode(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		registry := deps.Coordinator.Registry()

		for attempt := 0; attempt < codeAttempts; attempt++ {
			code, err := randx.RoomCode()
			if err != nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
				return
			}

			if registry.Get(code) != nil {
				continue
			}

			resp.RespondSuccess(w, r, map[string]any{
				"roomCode": code,
			})
			return
		}

		logx.Warn("Could not find a free room code", "attempts", codeAttempts)
		resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
	}
}

// HandleListRooms returns every active room, sorted by code.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms := deps.Coordinator.Registry().Rooms()

		resp.RespondSuccess(w, r, map[string]any{
			"rooms": rooms,
			"count": len(rooms),
		})
	}
}

// HandleGetRoom returns the member list of one active room.
func HandleGetRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		room := deps.Coordinator.Registry().Get(code)
		if room == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"roomCode": room.Code,
			"capacity": room.Capacity(),
			"users":    room.Snapshot(),
		})
	}
}

// HandleRoomActivity returns the most recent membership changes for a room code,
// newest first. The room does not have to be active.
func HandleRoomActivity(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Activity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrActivityLogDisabled))
			return
		}

		code := chi.URLParam(r, "code")

		limit := defaultActivityLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxActivityLimit {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			limit = n
		}

		activities, err := deps.Activity.RecentActivity(r.Context(), code, limit)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"roomCode": code,
			"activity": activities,
		})
	}
}
