package projections

import (
	"fmt"

	"gather/internal/application/orchestrators"
)

// storageErr marks a read failure as a retryable orchestrators.ErrStorage while keeping the cause inspectable.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", orchestrators.ErrStorage, op, err)
}
