// Package preprocess implements the fitted column transform shared by
// training and inference: one-hot encoding of categorical columns, log1p of
// skewed numeric columns and passthrough of the rest.
package preprocess

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotFitted      = errors.New("preprocess: column transform is not fitted")
	ErrAlreadyFitted  = errors.New("preprocess: column transform is already fitted")
	ErrSchemaMismatch = errors.New("preprocess: row does not match the fitted schema")
	ErrEmptyInput     = errors.New("preprocess: no rows")
)

// Layout names the columns of each block, in output order.
type Layout struct {
	Categorical []string
	Log         []string
	Passthrough []string
}

// Row is one input record, keyed by column name.
type Row struct {
	Categorical map[string]string
	Numeric     map[string]float64
}

// ColumnTransform is fitted once and is read-only afterwards; Transform is
// safe for concurrent use.
type ColumnTransform struct {
	layout Layout
	vocab  map[string][]string
	index  map[string]map[string]int
	fitted bool
}

// New returns an unfitted ColumnTransform for layout.
func New(layout Layout) *ColumnTransform {
	return &ColumnTransform{layout: cloneLayout(layout)}
}

// Fit learns the sorted vocabulary of every categorical column. It may be
// called only once.
func (ct *ColumnTransform) Fit(rows []Row) error {
	if ct.fitted {
		return ErrAlreadyFitted
	}
	if len(rows) == 0 {
		return ErrEmptyInput
	}
	for i, r := range rows {
		if err := ct.checkRow(i, r); err != nil {
			return err
		}
	}

	vocab := make(map[string][]string, len(ct.layout.Categorical))
	for _, col := range ct.layout.Categorical {
		seen := make(map[string]struct{})
		for _, r := range rows {
			seen[r.Categorical[col]] = struct{}{}
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)
		vocab[col] = values
	}

	ct.vocab = vocab
	ct.buildIndex()
	ct.fitted = true
	return nil
}

// Transform encodes rows into a matrix with one row per input row and
// Width() columns. Categories not seen during Fit encode as all zeros.
func (ct *ColumnTransform) Transform(rows []Row) (*mat.Dense, error) {
	if !ct.fitted {
		return nil, ErrNotFitted
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	width := ct.Width()
	data := make([]float64, len(rows)*width)
	for i, r := range rows {
		if err := ct.checkRow(i, r); err != nil {
			return nil, err
		}
		ct.encode(r, data[i*width:(i+1)*width])
	}
	return mat.NewDense(len(rows), width, data), nil
}

// FitTransform fits on rows and encodes them.
func (ct *ColumnTransform) FitTransform(rows []Row) (*mat.Dense, error) {
	if err := ct.Fit(rows); err != nil {
		return nil, err
	}
	return ct.Transform(rows)
}

func (ct *ColumnTransform) encode(r Row, out []float64) {
	offset := 0
	for _, col := range ct.layout.Categorical {
		if j, ok := ct.index[col][r.Categorical[col]]; ok {
			out[offset+j] = 1
		}
		offset += len(ct.vocab[col])
	}
	for _, col := range ct.layout.Log {
		out[offset] = math.Log1p(r.Numeric[col])
		offset++
	}
	for _, col := range ct.layout.Passthrough {
		out[offset] = r.Numeric[col]
		offset++
	}
}

// checkRow requires exactly the configured columns, no more and no fewer.
func (ct *ColumnTransform) checkRow(i int, r Row) error {
	for _, col := range ct.layout.Categorical {
		if _, ok := r.Categorical[col]; !ok {
			return fmt.Errorf("%w: row %d: missing categorical column %q", ErrSchemaMismatch, i, col)
		}
	}
	numeric := len(ct.layout.Log) + len(ct.layout.Passthrough)
	for _, cols := range [][]string{ct.layout.Log, ct.layout.Passthrough} {
		for _, col := range cols {
			if _, ok := r.Numeric[col]; !ok {
				return fmt.Errorf("%w: row %d: missing numeric column %q", ErrSchemaMismatch, i, col)
			}
		}
	}
	if len(r.Categorical) != len(ct.layout.Categorical) || len(r.Numeric) != numeric {
		return fmt.Errorf("%w: row %d: has %d categorical and %d numeric columns, want %d and %d",
			ErrSchemaMismatch, i, len(r.Categorical), len(r.Numeric), len(ct.layout.Categorical), numeric)
	}
	return nil
}

func (ct *ColumnTransform) buildIndex() {
	ct.index = make(map[string]map[string]int, len(ct.vocab))
	for col, values := range ct.vocab {
		idx := make(map[string]int, len(values))
		for j, v := range values {
			idx[v] = j
		}
		ct.index[col] = idx
	}
}

// Fitted reports whether Fit has completed.
func (ct *ColumnTransform) Fitted() bool {
	return ct.fitted
}

// Layout returns a copy of the column layout.
func (ct *ColumnTransform) Layout() Layout {
	return cloneLayout(ct.layout)
}

// Vocabulary returns a copy of the fitted categories of col.
func (ct *ColumnTransform) Vocabulary(col string) []string {
	return append([]string(nil), ct.vocab[col]...)
}

// Width is the number of output columns.
func (ct *ColumnTransform) Width() int {
	w := len(ct.layout.Log) + len(ct.layout.Passthrough)
	for _, col := range ct.layout.Categorical {
		w += len(ct.vocab[col])
	}
	return w
}

// FeatureNames names every output column in order, e.g. "make=toyota",
// "log1p(kms)", "year".
func (ct *ColumnTransform) FeatureNames() []string {
	names := make([]string, 0, ct.Width())
	for _, col := range ct.layout.Categorical {
		for _, v := range ct.vocab[col] {
			names = append(names, col+"="+v)
		}
	}
	for _, col := range ct.layout.Log {
		names = append(names, "log1p("+col+")")
	}
	names = append(names, ct.layout.Passthrough...)
	return names
}

type columnTransformState struct {
	Layout     Layout
	Vocabulary map[string][]string
	Fitted     bool
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (ct *ColumnTransform) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	state := columnTransformState{Layout: ct.layout, Vocabulary: ct.vocab, Fitted: ct.fitted}
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (ct *ColumnTransform) UnmarshalBinary(data []byte) error {
	var state columnTransformState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	ct.layout = state.Layout
	ct.vocab = state.Vocabulary
	if ct.vocab == nil {
		ct.vocab = map[string][]string{}
	}
	ct.fitted = state.Fitted
	ct.buildIndex()
	return nil
}

func cloneLayout(s Layout) Layout {
	return Layout{
		Categorical: append([]string(nil), s.Categorical...),
		Log:         append([]string(nil), s.Log...),
		Passthrough: append([]string(nil), s.Passthrough...),
	}
}
