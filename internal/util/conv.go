package util

import (
	"strconv"
)

// PageParams 解析分页参数，非法值回退为默认值
func PageParams(pageStr, limitStr string, defaultLimit int) (int, int) {
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
