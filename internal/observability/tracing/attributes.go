package tracing

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/turnos/internal/apperrors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var blockedAttributeKeys = map[attribute.Key]struct{}{
	"professional_name": {},
	"rejection_reason":  {},
	"notes":             {},
	"authorization":     {},
	"cookie":            {},
}

// ExtractContext reads remote span context from carrier headers.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// SafeAttributes drops attributes that may carry free text or personal data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attribute.Key(strings.ToLower(string(attr.Key)))]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError reduces an error to its code so span events never leak request payloads.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	if code := apperrors.Code(err); code != "" {
		return errors.New(code)
	}
	return errors.New("internal_error")
}
