package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zenGate-Global/palmyra-tenancy/domains/tenants/be/service"
)

// MemoryRepository is a simple in-memory implementation suitable for tests and early development.
// It stores no dependents, so deletes never report removed profiles.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]service.Tenant
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]service.Tenant)}
}

func (r *MemoryRepository) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]service.Tenant, 0, len(r.byID))
	for _, t := range r.byID {
		if opts.Status != nil && t.Status != *opts.Status {
			continue
		}
		items = append(items, t)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	page, pageSize := normalizePage(opts.Page, opts.PageSize)

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}

	return service.ListResult{
		Tenants:    items[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalItems: len(items),
		TotalPages: totalPages(len(items), pageSize),
	}, nil
}

func (r *MemoryRepository) Create(ctx context.Context, t service.Tenant) (service.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[t.ID]; exists {
		return service.Tenant{}, service.ErrConflict
	}

	t.UserCount = 0
	r.byID[t.ID] = t
	return t, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[id]
	if !ok {
		return service.Tenant{}, service.ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id string, input service.UpdateInput) (service.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return service.Tenant{}, service.ErrNotFound
	}

	if input.Name != nil {
		t.Name = *input.Name
	}
	if input.Domain != nil {
		t.Domain = *input.Domain
	}
	if input.Status != nil {
		t.Status = *input.Status
	}
	if input.MaxUsers != nil {
		t.MaxUsers = *input.MaxUsers
	}
	t.UpdatedAt = time.Now().UTC()

	r.byID[id] = t
	return t, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string, cascade bool) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return nil, service.ErrNotFound
	}
	delete(r.byID, id)
	return nil, nil
}

func (r *MemoryRepository) ReconcileUserCounts(ctx context.Context) (int, error) {
	return 0, nil
}

// SetUserCount overrides the stored counter, standing in for profile materialization.
func (r *MemoryRepository) SetUserCount(id string, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return service.ErrNotFound
	}
	t.UserCount = count
	r.byID[id] = t
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

func totalPages(total, pageSize int) int {
	return (total + pageSize - 1) / pageSize
}

// Ensure interface compliance.
var _ service.Repository = (*MemoryRepository)(nil)
