package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/support-chat/internal/domain"
	"go.mongodb.org/mongo-driver/mongo"
)

// wrapErr tags connectivity failures with domain.ErrStoreUnavailable
func wrapErr(op string, err error) error {
	if isUnavailable(err) {
		return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func isUnavailable(err error) bool {
	return mongo.IsNetworkError(err) ||
		mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) ||
		errors.Is(err, context.DeadlineExceeded)
}
