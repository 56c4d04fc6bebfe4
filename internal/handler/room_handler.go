/*
Package handler provides HTTP handler functions for inspecting active rooms.
*/
package handler

import (
	"net/http"

	"chatrelay/internal/pkg/resp"
)

// HandleListRooms reports every non-empty room with its user count.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms := deps.Registry.Rooms()

		resp.RespondSuccess(w, map[string]any{
			"rooms": rooms,
			"total": len(rooms),
		})
	}
}
