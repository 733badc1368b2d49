package dbaccess

import (
	"context"
	"errors"
	"io"
)

// BatchStream yields up to size rows per Next from a single open cursor.
// The last batch may be short; the stream ends on the first empty batch.
type BatchStream struct {
	rows *RowStream
	size int
}

// newBatchStream wraps rows. size has already been validated.
func newBatchStream(rows *RowStream, size int) *BatchStream {
	return &BatchStream{rows: rows, size: size}
}

// Size returns the configured batch size.
func (b *BatchStream) Size() int {
	return b.size
}

// Next returns the next batch or io.EOF.
func (b *BatchStream) Next(ctx context.Context) ([]Row, error) {
	batch := make([]Row, 0, b.size)
	for len(batch) < b.size {
		row, err := b.rows.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		batch = append(batch, row)
	}

	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

// Close closes the cursor and releases the handle.
func (b *BatchStream) Close() error {
	return b.rows.Close()
}
