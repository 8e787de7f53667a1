// Package service contains the gateway's application services: operation
// orchestration and the asynchronous call trail writer.
package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danubesoft/ifn-gateway/internal/ctxkey"
	"github.com/danubesoft/ifn-gateway/internal/domain/audit"
	"github.com/danubesoft/ifn-gateway/internal/domain/upstream"
	"github.com/danubesoft/ifn-gateway/internal/port/outbound"
)

// RequestIDFromContext returns the correlation ID set by the inbound
// middleware, or "" when none is present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxkey.RequestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SourceIPFromContext returns the client IP resolved by the inbound
// middleware, or "" when none is present.
func SourceIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ctxkey.RealIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// ErrInvalidInput is returned when a request field fails validation before
// anything is sent upstream.
var ErrInvalidInput = errors.New("invalid input")

// Endpoint names on the upstream REST surface.
const (
	EndpointListaMesaje = "listaMesaje"
	EndpointStareMesaj  = "stareMesaj"
	EndpointDescarcare  = "descarcare"
	EndpointUploadMesaj = "uploadMesaj"
)

// GatewayService maps business operations to upstream envelopes and relays
// the results. It never interprets upstream business responses: whatever the
// API answers, including its error documents, flows back to the caller.
type GatewayService struct {
	client outbound.BusinessClient
	trail  *TrailService
	logger *slog.Logger
}

// NewGatewayService creates the service. trail may be nil when the call
// trail is disabled.
func NewGatewayService(client outbound.BusinessClient, trail *TrailService, logger *slog.Logger) *GatewayService {
	return &GatewayService{
		client: client,
		trail:  trail,
		logger: logger,
	}
}

// ListaMesaje fetches the message list for the given window (days/hours,
// e.g. "1/24"). An empty window falls back to DefaultZile.
func (s *GatewayService) ListaMesaje(ctx context.Context, zile string) (*upstream.Response, error) {
	payload, err := listaMesajePayload(zile)
	if err != nil {
		return nil, fmt.Errorf("%w: zile: %s", ErrInvalidInput, err)
	}
	return s.relay(ctx, "lista-mesaje", EndpointListaMesaje, payload)
}

// StareMesaj fetches the processing status of a previously uploaded message.
func (s *GatewayService) StareMesaj(ctx context.Context, indexIncarcare string) (*upstream.Response, error) {
	if indexIncarcare == "" {
		return nil, fmt.Errorf("%w: index_incarcare is required", ErrInvalidInput)
	}
	payload, err := stareMesajPayload(indexIncarcare)
	if err != nil {
		return nil, fmt.Errorf("%w: index_incarcare: %s", ErrInvalidInput, err)
	}
	return s.relay(ctx, "stare-mesaj", EndpointStareMesaj, payload)
}

// DescarcareMesaj downloads a message by its portal identifier.
func (s *GatewayService) DescarcareMesaj(ctx context.Context, idPortal string) (*upstream.Response, error) {
	if idPortal == "" {
		return nil, fmt.Errorf("%w: id_portal is required", ErrInvalidInput)
	}
	payload, err := descarcareMesajPayload(idPortal)
	if err != nil {
		return nil, fmt.Errorf("%w: id_portal: %s", ErrInvalidInput, err)
	}
	return s.relay(ctx, "descarcare-mesaj", EndpointDescarcare, payload)
}

// UploadMesaj uploads a base64-encoded declaration file.
func (s *GatewayService) UploadMesaj(ctx context.Context, fisierB64 string) (*upstream.Response, error) {
	if fisierB64 == "" {
		return nil, fmt.Errorf("%w: fisier_b64 is required", ErrInvalidInput)
	}
	if _, err := base64.StdEncoding.DecodeString(fisierB64); err != nil {
		return nil, fmt.Errorf("%w: fisier_b64 is not valid base64", ErrInvalidInput)
	}
	payload, err := uploadMesajPayload(fisierB64)
	if err != nil {
		return nil, fmt.Errorf("%w: fisier_b64: %s", ErrInvalidInput, err)
	}
	return s.relay(ctx, "upload-mesaj", EndpointUploadMesaj, payload)
}

// relay sends the envelope upstream and records the call in the trail.
func (s *GatewayService) relay(ctx context.Context, operation, endpoint string, payload []byte) (*upstream.Response, error) {
	start := time.Now()
	resp, err := s.client.Send(ctx, endpoint, payload)
	s.record(ctx, operation, endpoint, payload, resp, err, start)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *GatewayService) record(ctx context.Context, operation, endpoint string, payload []byte, resp *upstream.Response, err error, start time.Time) {
	if s.trail == nil {
		return
	}

	rec := audit.CallRecord{
		Timestamp:     start,
		RequestID:     RequestIDFromContext(ctx),
		Operation:     operation,
		Endpoint:      endpoint,
		LatencyMicros: time.Since(start).Microseconds(),
		PayloadDigest: audit.FingerprintPayload(payload),
		SourceIP:      SourceIPFromContext(ctx),
	}

	switch {
	case err == nil:
		rec.Outcome = audit.OutcomeRelayed
		rec.UpstreamStatus = resp.StatusCode
		rec.Retried = resp.Retried
	default:
		var connErr *upstream.ConnectionError
		var authErr *upstream.AuthError
		switch {
		case errors.As(err, &connErr):
			rec.Outcome = audit.OutcomeConnectionError
		case errors.As(err, &authErr):
			rec.Outcome = audit.OutcomeAuthFailed
			rec.UpstreamStatus = authErr.StatusCode
		default:
			rec.Outcome = audit.OutcomeRejected
		}
		rec.Error = err.Error()
	}

	s.trail.Record(rec)
}
