package repository

import (
	"slices"

	"user-admin/internal/domain"
)

// SortLogs orders entries by timestamp descending, then id descending.
func SortLogs(entries []domain.LogEntry) {
	slices.SortFunc(entries, func(a, b domain.LogEntry) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
}
