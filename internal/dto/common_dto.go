package dto

// Page wraps any paginated listing.
type Page[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

func NewPage[T any](data []T, total int64, page, limit int) Page[T] {
	if data == nil {
		data = []T{}
	}
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Page[T]{Data: data, Total: total, Page: page, Limit: limit, TotalPages: pages}
}

// Paginacion is embedded by query filters.
type Paginacion struct {
	Page  int `form:"page,default=1"   validate:"min=1"`
	Limit int `form:"limit,default=20" validate:"min=1,max=200"`
}

// MotivoRequest is the body of every state change that needs a reason.
type MotivoRequest struct {
	Motivo string `json:"motivo" validate:"required,min=3,max=500"`
}

// DecisionRequest resolves a transfer or a justification.
type DecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=APPROVE REJECT"`
	Motivo   string `json:"motivo"   validate:"max=500"`
}
