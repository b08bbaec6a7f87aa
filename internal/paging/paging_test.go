package paging

import "testing"

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name       string
		total      int
		page, size int
		wantPage   int
		wantSize   int
		wantFirst  int
		wantLen    int
		wantPages  int
	}{
		{name: "second page of fifty", total: 50, page: 2, size: 10, wantPage: 2, wantSize: 10, wantFirst: 11, wantLen: 10, wantPages: 5},
		{name: "partial single page", total: 2, page: 1, size: 10, wantPage: 1, wantSize: 10, wantFirst: 1, wantLen: 2, wantPages: 1},
		{name: "last partial page", total: 23, page: 3, size: 10, wantPage: 3, wantSize: 10, wantFirst: 21, wantLen: 3, wantPages: 3},
		{name: "beyond last page", total: 5, page: 4, size: 2, wantPage: 4, wantSize: 2, wantLen: 0, wantPages: 3},
		{name: "empty input", total: 0, page: 1, size: 10, wantPage: 1, wantSize: 10, wantLen: 0, wantPages: 0},
		{name: "zero page clamps to first", total: 15, page: 0, size: 10, wantPage: 1, wantSize: 10, wantFirst: 1, wantLen: 10, wantPages: 2},
		{name: "negative size uses default", total: 15, page: 2, size: -3, wantPage: 2, wantSize: DefaultPageSize, wantFirst: 11, wantLen: 5, wantPages: 2},
		{name: "large page size is honoured", total: 150, page: 1, size: 200, wantPage: 1, wantSize: 200, wantFirst: 1, wantLen: 150, wantPages: 1},
		{name: "size above api limit slices exactly", total: 250, page: 2, size: 120, wantPage: 2, wantSize: 120, wantFirst: 121, wantLen: 120, wantPages: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Paginate(seq(tt.total), tt.page, tt.size)

			if res.Page != tt.wantPage || res.PageSize != tt.wantSize {
				t.Fatalf("expected page=%d size=%d, got page=%d size=%d", tt.wantPage, tt.wantSize, res.Page, res.PageSize)
			}
			if res.TotalItems != tt.total {
				t.Fatalf("expected totalItems=%d, got %d", tt.total, res.TotalItems)
			}
			if res.TotalPages != tt.wantPages {
				t.Fatalf("expected totalPages=%d, got %d", tt.wantPages, res.TotalPages)
			}
			if len(res.Items) != tt.wantLen {
				t.Fatalf("expected %d items, got %d", tt.wantLen, len(res.Items))
			}
			if tt.wantLen > 0 && res.Items[0] != tt.wantFirst {
				t.Fatalf("expected first item %d, got %d", tt.wantFirst, res.Items[0])
			}
			if res.Items == nil {
				t.Fatal("items must never be nil")
			}
		})
	}
}

func TestPaginateDoesNotAliasInput(t *testing.T) {
	items := seq(3)
	res := Paginate(items, 1, 2)
	res.Items[0] = 99
	if items[0] != 1 {
		t.Fatalf("page items alias the input slice")
	}
}
