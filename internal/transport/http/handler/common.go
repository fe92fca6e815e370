package handler

import (
	"github.com/gin-gonic/gin"
)

// pageQ 列表通用分页参数
type pageQ struct {
	Offset int `form:"offset" binding:"omitempty,min=0"`
	Limit  int `form:"limit" binding:"omitempty,min=1,max=100"`
}

type listOut[T any] struct {
	Total int64 `json:"total"`
	Items []T   `json:"items"`
}

func list[T any](items []T, total int64) listOut[T] {
	if items == nil {
		items = []T{}
	}
	return listOut[T]{Total: total, Items: items}
}

type idOut struct {
	ID string `json:"id"`
}

func param(c *gin.Context, name string) string { return c.Param(name) }
