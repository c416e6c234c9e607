package handler

import (
	"context"

	"github.com/iconidentify/sheetgrab/internal/domain"
	"github.com/iconidentify/sheetgrab/internal/service"
)

// RunManager starts, inspects and cancels download runs.
// *service.RunService implements it.
type RunManager interface {
	Preview(path string) (*domain.Table, error)
	Submit(ctx context.Context, req service.SubmitRequest) (*domain.Run, error)
	Get(ctx context.Context, id domain.RunID) (*domain.Run, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Run, int, error)
	Cancel(ctx context.Context, id domain.RunID) error
}
