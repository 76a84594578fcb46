package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/certstudio/core"
	"github.com/trezcool/certstudio/core/certificate"
)

type designRepository struct {
	db *designTable
}

var _ certificate.Repository = (*designRepository)(nil)

func NewDesignRepository(db *DB) certificate.Repository {
	return &designRepository{db: db.design}
}

func (repo *designRepository) query() []certificate.Design {
	designs := make([]certificate.Design, 0, len(repo.db.table))
	for _, d := range repo.db.table {
		designs = append(designs, *d)
	}
	return designs
}

func (repo *designRepository) CreateDesign(_ context.Context, d certificate.Design) (certificate.Design, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.table {
		if other.OwnerID == d.OwnerID && other.Title == d.Title {
			return certificate.Design{}, certificate.ErrTitleExists
		}
	}
	if _, ok := repo.db.table[d.ID]; ok {
		return certificate.Design{}, certificate.ErrTitleExists
	}
	d.Document = d.Document.Clone()
	d.Placeholders = append(certificate.Placeholders(nil), d.Placeholders...)
	repo.db.table[d.ID] = &d
	return d, nil
}

func (repo *designRepository) GetDesignByID(_ context.Context, id string) (certificate.Design, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if d, ok := repo.db.table[id]; ok {
		return *d, nil
	}
	return certificate.Design{}, certificate.ErrNotFound
}

func (repo *designRepository) FilterDesigns(_ context.Context, filter certificate.QueryFilter) ([]certificate.Design, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	search := strings.ToLower(filter.Search)
	designs := make([]certificate.Design, 0)
	for _, d := range repo.query() {
		if filter.OwnerID != "" && d.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Mode != "" && d.Mode != filter.Mode {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(d.Title), search) && !strings.Contains(strings.ToLower(d.IssuedTo), search) {
			continue
		}
		designs = append(designs, d)
	}

	ordering := filter.Ordering
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.Slice(designs, func(i, j int) bool {
		for _, ord := range ordering {
			if c := compareField(designs[i], designs[j], ord.Field); c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return designs[i].ID < designs[j].ID
	})
	return designs, nil
}

// compareField returns -1, 0 or 1. Unknown fields compare equal.
func compareField(a, b certificate.Design, field string) int {
	switch field {
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "issued_to":
		return strings.Compare(a.IssuedTo, b.IssuedTo)
	}
	return 0
}

func (repo *designRepository) DeleteDesign(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return certificate.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
