package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestAndActorRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, " req-1 ")
	ctx = WithActor(ctx, ActorTypeUser, "coord-7")

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	actorType, actorID := ActorFromContext(ctx)
	assert.Equal(t, ActorTypeUser, actorType)
	assert.Equal(t, "coord-7", actorID)
}

func TestWithActorIgnoresBlank(t *testing.T) {
	ctx := WithActor(context.Background(), ActorTypeUser, "  ")
	actorType, actorID := ActorFromContext(ctx)
	assert.Empty(t, actorType)
	assert.Empty(t, actorID)
}
