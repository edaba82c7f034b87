// Package snapshot loads the immutable per-user finance snapshot the engine
// analyses. Loaders distinguish an empty dataset, which is a normal result,
// from a failed fetch, which is reported as ErrFetchFailed.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

// ErrFetchFailed marks every error caused by the upstream data source.
var ErrFetchFailed = errors.New("snapshot fetch failed")

// FetchError records which source and which part of the snapshot failed.
type FetchError struct {
	Source string
	Part   string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch %s: %v", e.Source, e.Part, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrFetchFailed) hold for every FetchError.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

// Loader fetches the snapshot for one user.
type Loader interface {
	Load(ctx context.Context, userID string, now time.Time) (*model.Snapshot, error)
}

// DefaultWindow is how much transaction history a loader fetches.
const DefaultWindow = 395 * 24 * time.Hour

// Decode reads a JSON snapshot. Unknown category codes are rejected.
func Decode(r io.Reader) (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	fillOwner(&snap)
	return &snap, nil
}

// LoadFile decodes the snapshot stored at path.
func LoadFile(path string) (*model.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FetchError{Source: "file", Part: "open", Err: err}
	}
	defer f.Close()

	snap, err := Decode(f)
	if err != nil {
		return nil, &FetchError{Source: "file", Part: "decode", Err: err}
	}
	return snap, nil
}

// fillOwner stamps the snapshot user onto records that omit it.
func fillOwner(snap *model.Snapshot) {
	for i := range snap.Transactions {
		if snap.Transactions[i].UserID == "" {
			snap.Transactions[i].UserID = snap.UserID
		}
	}
	for i := range snap.Budgets {
		if snap.Budgets[i].UserID == "" {
			snap.Budgets[i].UserID = snap.UserID
		}
	}
	for i := range snap.Accounts {
		if snap.Accounts[i].UserID == "" {
			snap.Accounts[i].UserID = snap.UserID
		}
	}
	for i := range snap.Templates {
		if snap.Templates[i].UserID == "" {
			snap.Templates[i].UserID = snap.UserID
		}
	}
}
