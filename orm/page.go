package orm

import (
	"context"

	"github.com/coderi421/ratorm/orm/internal/errs"
)

// PageRequest 页码从 0 开始
type PageRequest struct {
	Page int
	Size int
}

func NewPageRequest(page, size int) (PageRequest, error) {
	if page < 0 {
		return PageRequest{}, errs.NewErrQuery("", "页码不能小于 0: %d", page)
	}
	if size < 1 {
		return PageRequest{}, errs.NewErrQuery("", "每页的数量不能小于 1: %d", size)
	}
	return PageRequest{Page: page, Size: size}, nil
}

func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

type Page[T any] struct {
	Content       []*T
	Number        int
	Size          int
	TotalElements int64
	TotalPages    int
}

func NewPage[T any](content []*T, req PageRequest, total int64) *Page[T] {
	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return &Page[T]{
		Content:       content,
		Number:        req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    pages,
	}
}

func (p *Page[T]) HasNext() bool {
	return p.Number+1 < p.TotalPages
}

func (p *Page[T]) HasPrevious() bool {
	return p.Number > 0
}

// GetPage 先统计总数，再查询这一页的数据
func (s *Selector[T]) GetPage(ctx context.Context, req PageRequest) (*Page[T], error) {
	if _, err := NewPageRequest(req.Page, req.Size); err != nil {
		return nil, err
	}
	total, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	limit, offset := s.limit, s.offset
	defer func() {
		s.limit, s.offset = limit, offset
	}()
	s.limit, s.offset = req.Size, req.Offset()
	content, err := s.GetResultList(ctx)
	if err != nil {
		return nil, err
	}
	return NewPage(content, req, total), nil
}
