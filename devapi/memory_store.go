package devapi

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps users, catalog types and catalogs in process memory.
// It backs the API when no database is configured and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      int64
	users    []UserRecord
	types    []CatalogType
	catalogs []Catalog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Users() UserRepository               { return memoryUsers{m} }
func (m *MemoryStore) CatalogTypes() CatalogTypeRepository { return memoryTypes{m} }
func (m *MemoryStore) Catalogs() CatalogRepository         { return memoryCatalogs{m} }

func (m *MemoryStore) nextID() int64 {
	m.seq++
	return m.seq
}

type memoryUsers struct{ m *MemoryStore }

func (r memoryUsers) FindByEmail(_ context.Context, email string) (*UserRecord, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, email) {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryUsers) FindByID(_ context.Context, id int64) (*UserRecord, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, u := range r.m.users {
		if u.ID == id {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryUsers) Create(_ context.Context, u UserRecord) (*UserRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, ErrEmailTaken
		}
	}
	u.ID = r.m.nextID()
	u.CreatedAt = time.Now()
	r.m.users = append(r.m.users, u)
	return &u, nil
}

func (r memoryUsers) HasAny(context.Context) (bool, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return len(r.m.users) > 0, nil
}

type memoryTypes struct{ m *MemoryStore }

// withCountLocked fills NumberOfProducts; the caller holds the lock.
func (r memoryTypes) withCountLocked(t CatalogType) CatalogType {
	t.NumberOfProducts = 0
	for _, c := range r.m.catalogs {
		if c.CatalogTypeID == t.ID && c.Active {
			t.NumberOfProducts++
		}
	}
	return t
}

func (r memoryTypes) List(context.Context) ([]CatalogType, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]CatalogType, 0, len(r.m.types))
	for _, t := range r.m.types {
		out = append(out, r.withCountLocked(t))
	}
	return out, nil
}

func (r memoryTypes) Get(_ context.Context, id int64) (*CatalogType, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, t := range r.m.types {
		if t.ID == id {
			out := r.withCountLocked(t)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryTypes) Create(_ context.Context, description string, active bool) (*CatalogType, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t := CatalogType{ID: r.m.nextID(), Description: strings.TrimSpace(description), Active: active}
	r.m.types = append(r.m.types, t)
	return &t, nil
}

func (r memoryTypes) Update(_ context.Context, id int64, description string, active bool) (*CatalogType, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i := range r.m.types {
		if r.m.types[i].ID == id {
			r.m.types[i].Description = strings.TrimSpace(description)
			r.m.types[i].Active = active
			out := r.withCountLocked(r.m.types[i])
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryTypes) Deactivate(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i := range r.m.types {
		if r.m.types[i].ID == id {
			r.m.types[i].Active = false
			return nil
		}
	}
	return ErrNotFound
}

type memoryCatalogs struct{ m *MemoryStore }

// resolveLocked fills the type description; the caller holds the lock.
func (r memoryCatalogs) resolveLocked(c Catalog) Catalog {
	c.CatalogTypeDescription = ""
	for _, t := range r.m.types {
		if t.ID == c.CatalogTypeID {
			c.CatalogTypeDescription = t.Description
			break
		}
	}
	return c
}

func (r memoryCatalogs) List(context.Context) ([]Catalog, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]Catalog, 0, len(r.m.catalogs))
	for _, c := range r.m.catalogs {
		out = append(out, r.resolveLocked(c))
	}
	return out, nil
}

func (r memoryCatalogs) Get(_ context.Context, id int64) (*Catalog, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, c := range r.m.catalogs {
		if c.ID == id {
			out := r.resolveLocked(c)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryCatalogs) Create(_ context.Context, in CatalogInput) (*Catalog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c := catalogFromInput(r.m.nextID(), in)
	r.m.catalogs = append(r.m.catalogs, c)
	out := r.resolveLocked(c)
	return &out, nil
}

func (r memoryCatalogs) Update(_ context.Context, id int64, in CatalogInput) (*Catalog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i := range r.m.catalogs {
		if r.m.catalogs[i].ID == id {
			r.m.catalogs[i] = catalogFromInput(id, in)
			out := r.resolveLocked(r.m.catalogs[i])
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryCatalogs) Deactivate(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i := range r.m.catalogs {
		if r.m.catalogs[i].ID == id {
			r.m.catalogs[i].Active = false
			return nil
		}
	}
	return ErrNotFound
}

func catalogFromInput(id int64, in CatalogInput) Catalog {
	return Catalog{
		ID:            id,
		Name:          strings.TrimSpace(in.Name),
		Description:   strings.TrimSpace(in.Description),
		CatalogTypeID: in.CatalogTypeID,
		Cost:          in.Cost,
		Discount:      in.Discount,
		Active:        in.Active,
	}
}
