package gateway

import "net/http"

type healthResponse struct {
	Status    string `json:"status"`
	Tools     int    `json:"tools"`
	Index     bool   `json:"index"`
	Documents int    `json:"documents,omitempty"`
	Answerer  bool   `json:"answerer"`
}

// handleHealth reports what the gateway is wired with. Always 200: a gateway
// without an index still relays.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Tools:    g.tools.Len(),
		Index:    g.index != nil,
		Answerer: g.answerer != nil,
	}
	if g.index != nil {
		resp.Documents = g.index.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}
