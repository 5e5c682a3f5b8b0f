package http

import "net/http"

func (a *api) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz chequea la dependencia dura (store). El storage de archivos
// no bloquea readiness: la verificación con bytes aportados no lo necesita.
func (a *api) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.Ping(r.Context()); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
