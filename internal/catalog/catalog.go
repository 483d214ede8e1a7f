// ABOUTME: CSV loader for the property listing dataset.
// ABOUTME: Derives combined_property per row and caches the dataset for the process lifetime.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/2389-research/propsearch/internal/models"
)

// Column names the dataset must provide.
const (
	ColumnProperty1 = "property_1"
	ColumnProperty2 = "property_2"
)

// FileAccessError reports a dataset path that could not be opened or read.
type FileAccessError struct {
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("cannot read dataset %s: %v", e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// ParseError reports a dataset whose tabular structure is malformed.
type ParseError struct {
	Path string
	Line int // 0 when unknown
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed dataset %s (line %d): %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("malformed dataset %s: %s", e.Path, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load reads the dataset at path and returns its listings in file order.
func Load(path string) ([]models.Listing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileAccessError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	return parse(path, f)
}

func parse(path string, r io.Reader) ([]models.Listing, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Path: path, Msg: "file is empty"}
	}
	if err != nil {
		return nil, wrapCSVError(path, err)
	}

	idx1, idx2 := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch name {
		case ColumnProperty1:
			idx1 = i
		case ColumnProperty2:
			idx2 = i
		}
	}
	var missing []string
	if idx1 < 0 {
		missing = append(missing, ColumnProperty1)
	}
	if idx2 < 0 {
		missing = append(missing, ColumnProperty2)
	}
	if len(missing) > 0 {
		return nil, &ParseError{Path: path, Line: 1, Msg: "missing column(s) " + strings.Join(missing, ", ")}
	}

	var listings []models.Listing
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapCSVError(path, err)
		}
		listings = append(listings, models.NewListing(len(listings), cell(record[idx1]), cell(record[idx2])))
	}

	return listings, nil
}

// cell maps an empty CSV cell to a missing value.
func cell(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func wrapCSVError(path string, err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &ParseError{Path: path, Line: csvErr.Line, Msg: csvErr.Err.Error(), Err: err}
	}
	return &FileAccessError{Path: path, Err: err}
}

// Loader reads a dataset exactly once and serves the cached result afterwards.
type Loader struct {
	path string

	once     sync.Once
	listings []models.Listing
	err      error
}

// NewLoader creates a loader for the dataset at path. Nothing is read until Listings is called.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Path returns the dataset path.
func (l *Loader) Path() string { return l.path }

// Listings returns the dataset, reading it on the first call only. A failed
// read is cached too: the dataset is never re-read within the loader's lifetime.
func (l *Loader) Listings() ([]models.Listing, error) {
	l.once.Do(func() {
		l.listings, l.err = Load(l.path)
	})
	return l.listings, l.err
}
