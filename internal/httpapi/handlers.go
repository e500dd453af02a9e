package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/blchelle/capstone/internal/hub"
	"github.com/blchelle/capstone/internal/store"
)

// CreateRoom allocates a room ahead of any websocket join, the way a
// player shares a private lobby link with friends.
func CreateRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Public bool `json:"public"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req) // empty body means private
		}

		reply := make(chan string, 1)
		h.Inbox() <- hub.CreateRoom{Public: req.Public, Reply: reply}
		roomID := <-reply

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			RoomID string `json:"roomId"`
		}{RoomID: roomID})
	}
}

// GetRace surfaces a finished race: rank-ordered results plus the passage.
func GetRace(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
		if err != nil {
			http.Error(w, "invalid race id", http.StatusBadRequest)
			return
		}

		race, err := st.GetRace(r.Context(), uint(id))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "race not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(race)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
