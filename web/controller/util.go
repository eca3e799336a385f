package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medreport/medreport/web/entity"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// parsePageQuery reads page and the page size from limitParam. Missing,
// malformed or non-positive values fall back to the defaults and the size
// is capped at maxLimit.
func parsePageQuery(c *gin.Context, limitParam string, limitDefault int) entity.PageQuery {
	q := entity.PageQuery{
		Page:  positiveQuery(c, "page", defaultPage),
		Limit: positiveQuery(c, limitParam, limitDefault),
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return q
}

func positiveQuery(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 1 {
		return def
	}
	return v
}
