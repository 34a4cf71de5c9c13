package server

import (
	"net/http"

	"github.com/cmdren/anthropic-pipe/internal/pipe"
)

type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Name    string `json:"name"`
	OwnedBy string `json:"owned_by"`
}

type modelList struct {
	Object string       `json:"object"`
	Data   []modelEntry `json:"data"`
}

// modelsHandler serves the supported model table. The response carries both
// the chat-completions fields and the display name the host shows; clients
// ignore whichever they don't use.
func modelsHandler(p pipe.Pipe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models := p.Models()
		list := modelList{
			Object: "list",
			Data:   make([]modelEntry, 0, len(models)),
		}
		for _, m := range models {
			list.Data = append(list.Data, modelEntry{
				ID:      m.ID,
				Object:  "model",
				Name:    m.Name,
				OwnedBy: "anthropic",
			})
		}
		writeJSON(r.Context(), w, list, http.StatusOK)
	}
}
