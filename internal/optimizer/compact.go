package optimizer

import (
	"context"
	"errors"
)

// Compact rewrites the store file to release pages freed by pruning. A
// missing store is a no-op.
func (o *Optimizer) Compact(ctx context.Context) (err error) {
	ctx, span := startSpan(ctx, "Compact")
	defer func() { endSpan(span, err) }()

	s, err := o.openStore()
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return nil
		}
		return err
	}
	defer o.closeStore(s)

	if err := s.Vacuum(ctx); err != nil {
		return err
	}
	o.logger.Info("context store vacuumed", "path", s.Path())
	return nil
}
