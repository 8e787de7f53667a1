// Package http provides the inbound HTTP adapter: JSON request bodies in,
// relayed upstream XML out.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/danubesoft/ifn-gateway/internal/domain/upstream"
	"github.com/danubesoft/ifn-gateway/internal/service"
)

// maxRequestBodySize caps inbound JSON bodies. Uploads carry base64 file
// content, so the cap is generous.
const maxRequestBodySize = 16 * 1024 * 1024 // 16MB

// Request body shapes mirror the upstream operation parameters.
type (
	listaMesajeRequest struct {
		Zile string `json:"zile"`
	}
	stareMesajRequest struct {
		IndexIncarcare string `json:"index_incarcare"`
	}
	descarcareMesajRequest struct {
		IDPortal string `json:"id_portal"`
	}
	uploadMesajRequest struct {
		FisierB64 string `json:"fisier_b64"`
	}
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// businessHandlers builds the business route handlers around the service.
type businessHandlers struct {
	svc *service.GatewayService
}

func newBusinessHandlers(svc *service.GatewayService) *businessHandlers {
	return &businessHandlers{svc: svc}
}

func (h *businessHandlers) listaMesaje(w http.ResponseWriter, r *http.Request) {
	var req listaMesajeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.svc.ListaMesaje(r.Context(), req.Zile)
	writeOutcome(w, r, resp, err)
}

func (h *businessHandlers) stareMesaj(w http.ResponseWriter, r *http.Request) {
	var req stareMesajRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.svc.StareMesaj(r.Context(), req.IndexIncarcare)
	writeOutcome(w, r, resp, err)
}

func (h *businessHandlers) descarcareMesaj(w http.ResponseWriter, r *http.Request) {
	var req descarcareMesajRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.svc.DescarcareMesaj(r.Context(), req.IDPortal)
	writeOutcome(w, r, resp, err)
}

func (h *businessHandlers) uploadMesaj(w http.ResponseWriter, r *http.Request) {
	var req uploadMesajRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.svc.UploadMesaj(r.Context(), req.FisierB64)
	writeOutcome(w, r, resp, err)
}

// decodeJSON reads the request body into v. On failure it writes a 400 and
// returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeOutcome relays the upstream response verbatim or maps the error to a
// gateway status. Upstream business errors are the caller's to interpret:
// only transport and authentication failures become gateway statuses.
func writeOutcome(w http.ResponseWriter, r *http.Request, resp *upstream.Response, err error) {
	if err != nil {
		var connErr *upstream.ConnectionError
		var authErr *upstream.AuthError
		switch {
		case errors.As(err, &connErr):
			logFromContext(r.Context()).Error("upstream unreachable", "error", err)
			writeError(w, r, http.StatusServiceUnavailable, "upstream connection error")
		case errors.As(err, &authErr):
			logFromContext(r.Context()).Error("upstream authentication failed",
				"status", authErr.StatusCode, "reason", authErr.Reason)
			writeError(w, r, http.StatusBadGateway, "upstream authentication failed: "+authErr.Reason)
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		default:
			logFromContext(r.Context()).Error("relay failed", "error", err)
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/xml"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:     msg,
		RequestID: service.RequestIDFromContext(r.Context()),
	})
}

// recentCallsHandler serves the call trail's recent records.
func recentCallsHandler(trail *service.TrailService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := 50
		if raw := r.URL.Query().Get("n"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 || parsed > 1000 {
				writeError(w, r, http.StatusBadRequest, "n must be an integer in [1,1000]")
				return
			}
			n = parsed
		}

		records := trail.GetRecent(n)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(records)
	})
}
