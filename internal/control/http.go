package control

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"go.klb.dev/cumulus/internal/message"
)

// maxBody bounds HTTP request bodies; the control requests are tiny.
const maxBody = 64 * 1024

// HTTPHandler exposes the control service as HTTP/JSON:
//
//	GET   /v1/state    → StatusResponse
//	PATCH /v1/options  SetOptionsRequest → StatusResponse
//	POST  /v1/clear    → StatusResponse
//	POST  /v1/paste    [PasteSignalRequest] → PasteSignalResponse
//
// The bearer token, when set, is required on every route.
func (s *Service) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/state", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.status())
	})
	mux.HandleFunc("PATCH /v1/options", func(w http.ResponseWriter, r *http.Request) {
		var req message.SetOptionsRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		if req.Empty() {
			writeError(w, http.StatusBadRequest, "no options given")
			return
		}
		s.applyOptions(&req)
		slog.Info("options changed", "by", r.RemoteAddr)
		writeJSON(w, http.StatusOK, s.status())
	})
	mux.HandleFunc("POST /v1/clear", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("clear requested", "by", r.RemoteAddr)
		s.ctl.Clear()
		writeJSON(w, http.StatusOK, s.status())
	})
	mux.HandleFunc("POST /v1/paste", func(w http.ResponseWriter, r *http.Request) {
		var req message.PasteSignalRequest
		// The body is optional.
		if r.ContentLength != 0 {
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
				return
			}
		}
		if req.Source == "" {
			req.Source = r.RemoteAddr
		}
		writeJSON(w, http.StatusOK, s.pasteSignal(req.Source))
	})
	return s.requireToken(mux)
}

func (s *Service) requireToken(next http.Handler) http.Handler {
	if s.token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get("Authorization"); h == "" || !s.validToken(h) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="cumulus"`)
			writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("http response write failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, message.ErrorResponse{Error: msg})
}
