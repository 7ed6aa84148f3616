package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// ExtractContext reads upstream trace headers into ctx.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

var sensitiveAttributeKeys = []string{
	"email",
	"payer",
	"token",
	"authorization",
	"secret",
}

// SafeAttributes drops attributes whose keys may carry buyer or credential data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		key := strings.ToLower(string(attr.Key))
		if isSensitiveKey(key) {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError returns an error whose message is safe to attach to a span.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, key := range sensitiveAttributeKeys {
		if strings.Contains(lower, key) {
			return errors.New("redacted error")
		}
	}
	return errors.New(msg)
}

func isSensitiveKey(key string) bool {
	for _, sensitive := range sensitiveAttributeKeys {
		if strings.Contains(key, sensitive) {
			return true
		}
	}
	return false
}
