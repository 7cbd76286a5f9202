package orm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPageRequest(t *testing.T) {
	testCases := []struct {
		name       string
		page       int
		size       int
		wantOffset int
		wantErr    error
	}{
		{name: "first", page: 0, size: 10, wantOffset: 0},
		{name: "third", page: 2, size: 10, wantOffset: 20},
		{name: "negative page", page: -1, size: 10, wantErr: ErrQuery},
		{name: "zero size", page: 0, size: 0, wantErr: ErrQuery},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := NewPageRequest(tc.page, tc.size)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.wantOffset, req.Offset())
		})
	}
}

func TestNewPage(t *testing.T) {
	testCases := []struct {
		name         string
		req          PageRequest
		total        int64
		wantPages    int
		wantNext     bool
		wantPrevious bool
	}{
		{name: "empty", req: PageRequest{Page: 0, Size: 10}, total: 0, wantPages: 0},
		{name: "exact", req: PageRequest{Page: 0, Size: 10}, total: 20, wantPages: 2, wantNext: true},
		{name: "last partial", req: PageRequest{Page: 2, Size: 10}, total: 25, wantPages: 3, wantPrevious: true},
		{name: "middle", req: PageRequest{Page: 1, Size: 10}, total: 25, wantPages: 3, wantNext: true, wantPrevious: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPage[TestModel](nil, tc.req, tc.total)
			assert.Equal(t, tc.wantPages, p.TotalPages)
			assert.Equal(t, tc.wantNext, p.HasNext())
			assert.Equal(t, tc.wantPrevious, p.HasPrevious())
		})
	}
}
