package postgres

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
)

// placeholder returns the n-th positional parameter ($1, $2, ...).
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns n positional parameters starting at $1.
func placeholders(n int) string {
	list := make([]string, 0, n)
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

// vectorArg converts a slice into a query argument; empty slices map to NULL.
func vectorArg(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

// vectorFromNullable decodes a nullable vector column scanned as text.
func vectorFromNullable(raw sql.NullString) ([]float32, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var v pgvector.Vector
	if err := v.Parse(raw.String); err != nil {
		return nil, err
	}
	return v.Slice(), nil
}
