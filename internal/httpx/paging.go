package httpx

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/coopmarket/internal/postgres"
)

// Paging reads limit and offset query parameters, clamped like every
// repository listing.
func Paging(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return postgres.Clamp(limit, offset)
}
