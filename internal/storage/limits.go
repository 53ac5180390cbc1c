package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrSourceTooLarge marks remote bodies longer than the configured byte limit.
var ErrSourceTooLarge = errors.New("source image exceeds size limit")

// readLimited reads r fully, failing with ErrSourceTooLarge once more than
// maxBytes arrive. maxBytes <= 0 disables the limit.
func readLimited(r io.Reader, maxBytes int64) (io.Reader, error) {
	if maxBytes <= 0 {
		return r, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrSourceTooLarge, maxBytes)
	}
	return bytes.NewReader(data), nil
}
