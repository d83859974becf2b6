package service

import (
	"context"
	"errors"

	commonerrors "github.com/leafybank/backend/internal/common/errors"
)

func storeError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return commonerrors.ErrStoreUnavailable.WithCause(err)
}
