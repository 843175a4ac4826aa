package geofence

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/errors"
)

// Source delivers device positions.
type Source interface {
	// Watch calls fn for every fix until ctx is done or the source ends. It
	// returns errors.ErrGeolocationUnavailable when positions cannot be read
	// at all.
	Watch(ctx context.Context, fn func(Fix)) error
}

// lineSource reads JSON lines {"lat":..,"lng":..,"at":..}; at is optional.
type lineSource struct {
	open func() (io.ReadCloser, error)
	now  func() time.Time
}

// NewFileSource reads fixes from a file or named pipe.
func NewFileSource(path string) Source {
	return &lineSource{
		open: func() (io.ReadCloser, error) {
			if path == "" {
				return nil, errors.ErrGeolocationUnavailable
			}
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errors.ErrGeolocationUnavailable, err)
			}
			return f, nil
		},
		now: time.Now,
	}
}

// NewReaderSource reads fixes from r.
func NewReaderSource(r io.Reader) Source {
	return &lineSource{
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(r), nil
		},
		now: time.Now,
	}
}

func (s *lineSource) Watch(ctx context.Context, fn func(Fix)) error {
	rc, err := s.open()
	if err != nil {
		return err
	}

	fixes := make(chan Fix)
	scanErr := make(chan error, 1)

	go func() {
		defer close(fixes)

		sc := bufio.NewScanner(rc)
		for sc.Scan() {
			var f Fix
			if err := json.Unmarshal(sc.Bytes(), &f); err != nil {
				continue
			}
			if f.At.IsZero() {
				f.At = s.now()
			}

			select {
			case fixes <- f:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	defer rc.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-fixes:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("%w: %v", errors.ErrGeolocationUnavailable, err)
					}
				default:
				}
				return nil
			}
			fn(f)
		}
	}
}
