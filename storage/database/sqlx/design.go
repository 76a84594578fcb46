package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/trezcool/certstudio/core"
	"github.com/trezcool/certstudio/core/certificate"
)

const designColumns = "id, owner_id, title, description, file_name, issued_to, issued_to_email, mode, " +
	"document, template, placeholders, raster_url, checksum, created_at, updated_at"

// sortable columns
var designOrderings = map[string]bool{"created_at": true, "updated_at": true, "title": true, "issued_to": true}

type designRow struct {
	ID            string      `db:"id"`
	OwnerID       string      `db:"owner_id"`
	Title         string      `db:"title"`
	Description   string      `db:"description"`
	FileName      string      `db:"file_name"`
	IssuedTo      null.String `db:"issued_to"`
	IssuedToEmail null.String `db:"issued_to_email"`
	Mode          string      `db:"mode"`
	Document      string      `db:"document"`
	Template      string      `db:"template"`
	Placeholders  string      `db:"placeholders"`
	RasterURL     string      `db:"raster_url"`
	Checksum      string      `db:"checksum"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

type designRepository struct {
	exec core.DBExecutor
}

var _ certificate.Repository = (*designRepository)(nil) // interface compliance check

func NewDesignRepository(exec core.DBExecutor) *designRepository {
	return &designRepository{exec: exec}
}

func toRow(d certificate.Design) (designRow, error) {
	doc, err := json.Marshal(d.Document)
	if err != nil {
		return designRow{}, errors.Wrap(err, "encoding document")
	}
	ps := d.Placeholders
	if ps == nil {
		ps = certificate.Placeholders{}
	}
	placeholders, err := json.Marshal(ps)
	if err != nil {
		return designRow{}, errors.Wrap(err, "encoding placeholders")
	}
	return designRow{
		ID:            d.ID,
		OwnerID:       d.OwnerID,
		Title:         d.Title,
		Description:   d.Description,
		FileName:      d.FileName,
		IssuedTo:      null.NewString(d.IssuedTo, d.IssuedTo != ""),
		IssuedToEmail: null.NewString(d.IssuedToEmail, d.IssuedToEmail != ""),
		Mode:          string(d.Mode),
		Document:      string(doc),
		Template:      d.Template,
		Placeholders:  string(placeholders),
		RasterURL:     d.RasterURL,
		Checksum:      d.Checksum,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}, nil
}

func (row designRow) design() (certificate.Design, error) {
	d := certificate.Design{
		ID:            row.ID,
		OwnerID:       row.OwnerID,
		Title:         row.Title,
		Description:   row.Description,
		FileName:      row.FileName,
		IssuedTo:      row.IssuedTo.String,
		IssuedToEmail: row.IssuedToEmail.String,
		Mode:          certificate.DesignMode(row.Mode),
		Template:      row.Template,
		RasterURL:     row.RasterURL,
		Checksum:      row.Checksum,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(row.Document), &d.Document); err != nil {
		return certificate.Design{}, errors.Wrapf(err, "decoding document of %s", row.ID)
	}
	if err := json.Unmarshal([]byte(row.Placeholders), &d.Placeholders); err != nil {
		return certificate.Design{}, errors.Wrapf(err, "decoding placeholders of %s", row.ID)
	}
	return d, nil
}

// isUniqueViolation recognizes unique constraint errors of postgres and sqlite.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch code := liteErr.Code(); {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case code&0xff == sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}

func (repo designRepository) CreateDesign(ctx context.Context, d certificate.Design) (certificate.Design, error) {
	row, err := toRow(d)
	if err != nil {
		return certificate.Design{}, err
	}
	q := "INSERT INTO designs (" + designColumns + ") VALUES (:id, :owner_id, :title, :description, :file_name, " +
		":issued_to, :issued_to_email, :mode, :document, :template, :placeholders, :raster_url, :checksum, :created_at, :updated_at)"
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, row); err != nil {
		if isUniqueViolation(err) {
			return certificate.Design{}, certificate.ErrTitleExists
		}
		return certificate.Design{}, errors.Wrap(err, "inserting design")
	}
	return row.design()
}

func (repo designRepository) GetDesignByID(ctx context.Context, id string) (certificate.Design, error) {
	var row designRow
	q := repo.exec.Rebind("SELECT " + designColumns + " FROM designs WHERE id = ?")
	if err := repo.exec.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return certificate.Design{}, certificate.ErrNotFound
		}
		return certificate.Design{}, errors.Wrap(err, "selecting design")
	}
	return row.design()
}

func (repo designRepository) FilterDesigns(ctx context.Context, filter certificate.QueryFilter) ([]certificate.Design, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(filter.Search)) + "%"
		where = append(where, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(COALESCE(issued_to, '')) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if filter.Mode != "" {
		where = append(where, "mode = ?")
		args = append(args, string(filter.Mode))
	}

	q := "SELECT " + designColumns + " FROM designs"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + orderBy(filter.Ordering)

	var rows []designRow
	if err := repo.exec.SelectContext(ctx, &rows, repo.exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting designs")
	}
	designs := make([]certificate.Design, 0, len(rows))
	for _, row := range rows {
		d, err := row.design()
		if err != nil {
			return nil, err
		}
		designs = append(designs, d)
	}
	return designs, nil
}

func orderBy(ordering []core.DBOrdering) string {
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if designOrderings[ord.Field] {
			clauses = append(clauses, ord.String())
		}
	}
	if len(clauses) == 0 {
		clauses = append(clauses, core.DBOrdering{Field: "created_at"}.String())
	}
	// stable across equal keys
	return strings.Join(append(clauses, "id ASC"), ", ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

func (repo designRepository) DeleteDesign(ctx context.Context, id string) error {
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind("DELETE FROM designs WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting design")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting design")
	}
	if n == 0 {
		return certificate.ErrNotFound
	}
	return nil
}
