package dto

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// PageBounds 当前页在 total 条记录中的区间 [start, end)
// 页码超出范围时返回空区间，不做乘法以免溢出
func (p *PaginationRequest) PageBounds(total int) (int, int) {
	size := p.GetPageSize()
	if p.GetPage()-1 > total/size {
		return total, total
	}
	start := min((p.GetPage()-1)*size, total)
	return start, min(start+size, total)
}
