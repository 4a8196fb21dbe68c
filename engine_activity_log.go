package goIdentity

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goIdentity/store"
)

// MaxActivityLogPage caps the page size of [Engine.ListActivityLogs].
const MaxActivityLogPage = 100

// ListActivityLogs returns one page of the audit trail, newest first.
func (e *Engine) ListActivityLogs(ctx context.Context, page, limit int) (*ActivityLogPage, error) {
	page, limit = store.NormalizePage(page, limit, MaxActivityLogPage)

	rows, total, err := e.store.ListActivityLogs(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &ActivityLogPage{
		Data: rows,
		Meta: store.NewPageMeta(total, page, limit),
	}, nil
}
