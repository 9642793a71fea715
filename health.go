package gbfsanalytics

import (
	"net/http"

	json "github.com/goccy/go-json"
)

type healthResponse struct {
	Status string   `json:"status"`
	Jobs   []string `json:"jobs"`
}

func handleHealth(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := healthResponse{
			Status: "ok",
			Jobs:   reg.Keys(),
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
