package instrument

import "context"

type correlationKey struct{}

// SetCorrelationID returns a child context carrying id. Log records written
// with that context get a _cID attribute.
func SetCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// GetCorrelationID returns the id stored by SetCorrelationID, or "".
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(correlationKey{}).(string)

	return id
}
