package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"retail-insights/internal/config"
	apperrors "retail-insights/internal/errors"
	"retail-insights/internal/models"
)

const pingTimeout = 5 * time.Second

// OpenDB connects to the configured database and verifies the connection.
func OpenDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to %s: %w", apperrors.ErrUpstreamRead, cfg.Driver, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", apperrors.ErrUpstreamRead, cfg.Driver, err)
	}

	return db, nil
}

// SQLSource reads every row of one table.
type SQLSource struct {
	db      *sqlx.DB
	table   string
	timeout time.Duration
}

func NewSQLSource(db *sqlx.DB, table string, timeout time.Duration) *SQLSource {
	return &SQLSource{db: db, table: table, timeout: timeout}
}

func (s *SQLSource) Name() string {
	return s.db.DriverName()
}

type orderRow struct {
	UserID             sql.NullString  `db:"user_id"`
	ProductID          sql.NullString  `db:"product_id"`
	Category           sql.NullString  `db:"category"`
	SubCategory1       sql.NullString  `db:"sub_category1"`
	SubCategory2       sql.NullString  `db:"sub_category2"`
	SubCategory3       sql.NullString  `db:"sub_category3"`
	SellingPrice       sql.NullFloat64 `db:"selling_price"`
	DiscountPercentage sql.NullFloat64 `db:"discount_percentage"`
	Rating             sql.NullFloat64 `db:"rating"`
	RatingCount        sql.NullFloat64 `db:"rating_count"`
}

func (r orderRow) order() models.Order {
	o := models.Order{
		UserID:             r.UserID.String,
		ProductID:          r.ProductID.String,
		Category:           r.Category.String,
		SubCategory1:       r.SubCategory1.String,
		SubCategory2:       r.SubCategory2.String,
		SubCategory3:       r.SubCategory3.String,
		SellingPrice:       r.SellingPrice.Float64,
		DiscountPercentage: r.DiscountPercentage.Float64,
	}
	if r.Rating.Valid {
		rating := r.Rating.Float64
		o.Rating = &rating
	}
	if r.RatingCount.Valid {
		count := int64(math.Round(r.RatingCount.Float64))
		o.RatingCount = &count
	}
	return o
}

// Load selects the whole table. Extra columns are ignored; a missing
// required column fails with ErrMissingColumn before any row is scanned.
func (s *SQLSource) Load(ctx context.Context) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.Unsafe().QueryxContext(ctx, "SELECT * FROM "+quoteIdent(s.table))
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", apperrors.ErrUpstreamRead, s.table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: columns of %s: %w", apperrors.ErrUpstreamRead, s.table, err)
	}
	if err := checkColumns(columns); err != nil {
		return nil, fmt.Errorf("table %s: %w", s.table, err)
	}

	var orders []models.Order
	for rows.Next() {
		var r orderRow
		if err := rows.StructScan(&r); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %w", apperrors.ErrUpstreamRead, s.table, err)
		}
		orders = append(orders, r.order())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", apperrors.ErrUpstreamRead, s.table, err)
	}

	return orders, nil
}

// quoteIdent double-quotes a table name, which both PostgreSQL and SQLite
// accept and which keeps mixed-case names intact.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
