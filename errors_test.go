package pickup_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coregx/pickup"
	"github.com/coregx/pickup/model"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *pickup.Error
		want string
	}{
		{
			name: "WithoutCause",
			err:  pickup.NewError(pickup.ErrCodeValidation, "batch_size must be positive"),
			want: "VALIDATION_ERROR: batch_size must be positive",
		},
		{
			name: "WithCause",
			err:  pickup.NewErrorWithCause(pickup.ErrCodeStorageUnavailable, "failed to load record", errors.New("connection refused")),
			want: "STORAGE_UNAVAILABLE: failed to load record: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorCode_WrappedChain(t *testing.T) {
	cause := errors.New("timeout")
	err := fmt.Errorf("query: %w", pickup.NewErrorWithCause(pickup.ErrCodeStorageUnavailable, "query failed", cause))

	assert.Equal(t, pickup.ErrCodeStorageUnavailable, pickup.ErrorCode(err))
	assert.True(t, pickup.IsStorageUnavailable(err))
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, pickup.ErrorCode(cause))
	assert.Empty(t, pickup.ErrorCode(nil))
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, pickup.IsNotFound(pickup.ErrNotFound))
	assert.True(t, pickup.IsPreconditionFailed(pickup.ErrConnectionNotReady))
	assert.True(t, pickup.IsValidation(pickup.NewError(pickup.ErrCodeValidation, "bad")))
	assert.False(t, pickup.IsNotFound(pickup.ErrConnectionNotReady))
	assert.False(t, pickup.IsValidation(errors.New("plain")))
}

func TestNotificationServices(t *testing.T) {
	event := model.StoredMessageEvent{MessageID: "m1", TargetDID: "did:sov:abc", Endpoint: "http://agent"}

	assert.NoError(t, (&pickup.NoOpNotificationService{}).NotifyMessageStored(context.Background(), event))
	assert.NoError(t, pickup.NewLoggingNotificationService(&pickup.NoopLogger{}).NotifyMessageStored(context.Background(), event))
}
