package store

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "retail-insights/internal/errors"
	"retail-insights/internal/models"
)

const (
	batchSize  = 10000
	maxWorkers = 10
	chunkSize  = 1000
)

// CSVSource reads an export of the order table. Records are parsed in
// batches by a bounded worker pool; output keeps file order.
type CSVSource struct {
	path   string
	logger *slog.Logger
}

func NewCSVSource(path string, logger *slog.Logger) *CSVSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVSource{path: path, logger: logger}
}

func (s *CSVSource) Name() string { return "csv" }

func (s *CSVSource) Load(ctx context.Context) ([]models.Order, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", apperrors.ErrUpstreamRead, s.path, err)
	}
	defer file.Close()

	start := time.Now()
	orders, skipped, err := s.read(ctx, file)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "csv loaded",
		"file", s.path,
		"records", len(orders),
		"skipped", skipped,
		"duration", time.Since(start))

	return orders, nil
}

func (s *CSVSource) read(ctx context.Context, r io.Reader) ([]models.Order, int, error) {
	reader := csv.NewReader(bufio.NewReaderSize(r, 1024*1024))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, fmt.Errorf("%s is empty: %w", s.path, apperrors.ErrMissingColumn)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read header of %s: %w", apperrors.ErrUpstreamRead, s.path, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	if err := checkColumns(slices.Collect(maps.Keys(index))); err != nil {
		return nil, 0, fmt.Errorf("file %s: %w", s.path, err)
	}
	cols := newColumnIndex(index)

	var (
		orders  []models.Order
		skipped int
	)
	batch := make([][]string, 0, batchSize)

	flush := func() error {
		parsed, bad, err := parseBatch(ctx, batch, cols)
		if err != nil {
			return err
		}
		orders = append(orders, parsed...)
		skipped += bad
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("%w: read %s: %w", apperrors.ErrUpstreamRead, s.path, err)
		}

		batch = append(batch, record)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, 0, err
			}
		}
	}

	if len(batch) > 0 {
		if err := flush(); err != nil {
			return nil, 0, err
		}
	}

	return orders, skipped, nil
}

// parseBatch parses records in parallel chunks and drops the unparseable
// ones, preserving the order of the rest.
func parseBatch(ctx context.Context, batch [][]string, cols columnIndex) ([]models.Order, int, error) {
	parsed := make([]models.Order, len(batch))
	valid := make([]bool, len(batch))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for lo := 0; lo < len(batch); lo += chunkSize {
		hi := min(lo+chunkSize, len(batch))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				o, err := cols.parse(batch[i])
				if err != nil {
					continue
				}
				parsed[i], valid[i] = o, true
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	out := make([]models.Order, 0, len(batch))
	for i, ok := range valid {
		if ok {
			out = append(out, parsed[i])
		}
	}
	return out, len(batch) - len(out), nil
}

type columnIndex struct {
	userID, productID, category, sub1, sub2, sub3 int
	price, discount, rating, ratingCount          int
}

func newColumnIndex(index map[string]int) columnIndex {
	return columnIndex{
		userID:      index["user_id"],
		productID:   index["product_id"],
		category:    index["category"],
		sub1:        index["sub_category1"],
		sub2:        index["sub_category2"],
		sub3:        index["sub_category3"],
		price:       index["selling_price"],
		discount:    index["discount_percentage"],
		rating:      index["rating"],
		ratingCount: index["rating_count"],
	}
}

var errShortRecord = errors.New("record has too few fields")

func (c columnIndex) parse(record []string) (models.Order, error) {
	field := func(i int) (string, error) {
		if i >= len(record) {
			return "", errShortRecord
		}
		return strings.TrimSpace(record[i]), nil
	}

	var o models.Order
	var err error
	for _, f := range []struct {
		dst *string
		col int
	}{
		{&o.UserID, c.userID},
		{&o.ProductID, c.productID},
		{&o.Category, c.category},
		{&o.SubCategory1, c.sub1},
		{&o.SubCategory2, c.sub2},
		{&o.SubCategory3, c.sub3},
	} {
		if *f.dst, err = field(f.col); err != nil {
			return models.Order{}, err
		}
	}

	price, err := field(c.price)
	if err != nil {
		return models.Order{}, err
	}
	if o.SellingPrice, err = finiteFloat(price); err != nil {
		return models.Order{}, fmt.Errorf("selling_price: %w", err)
	}

	discount, err := field(c.discount)
	if err != nil {
		return models.Order{}, err
	}
	if o.DiscountPercentage, err = finiteFloat(discount); err != nil {
		return models.Order{}, fmt.Errorf("discount_percentage: %w", err)
	}

	rating, err := field(c.rating)
	if err != nil {
		return models.Order{}, err
	}
	if o.Rating, err = nullableFloat(rating); err != nil {
		return models.Order{}, fmt.Errorf("rating: %w", err)
	}

	count, err := field(c.ratingCount)
	if err != nil {
		return models.Order{}, err
	}
	countValue, err := nullableFloat(count)
	if err != nil {
		return models.Order{}, fmt.Errorf("rating_count: %w", err)
	}
	if countValue != nil {
		n := int64(math.Round(*countValue))
		o.RatingCount = &n
	}

	return o, nil
}

var errNotFinite = errors.New("value is not a finite number")

// finiteFloat parses a required numeric cell, rejecting NaN and
// infinities.
func finiteFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

// nullableFloat parses a numeric cell where "", "nan", "null" and "none" mean
// no value.
func nullableFloat(s string) (*float64, error) {
	switch strings.ToLower(s) {
	case "", "nan", "null", "none":
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) {
		return nil, nil
	}
	if math.IsInf(v, 0) {
		return nil, errNotFinite
	}
	return &v, nil
}
