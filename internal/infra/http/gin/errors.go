package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"driveshare/internal/app/dto"
	"driveshare/internal/domain/fault"
)

func statusOf(err error) int {
	switch fault.KindOf(err) {
	case fault.KindInvalidRange, fault.KindMissingField, fault.KindInvalidTransition:
		return http.StatusBadRequest
	case fault.KindUnauthorized:
		return http.StatusUnauthorized
	case fault.KindForbidden:
		return http.StatusForbidden
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindConflict:
		return http.StatusConflict
	case fault.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError translates a classified error into the wire shape. Conflict
// responses include the blocking ranges so clients can offer alternatives.
func respondError(c *gin.Context, err error) {
	kind := fault.KindOf(err)
	body := gin.H{
		"error": messageOf(err),
		"code":  kind.String(),
	}
	if ranges := fault.RangesOf(err); len(ranges) > 0 {
		body["conflicts"] = dto.MapDateRanges(ranges)
	}
	c.JSON(statusOf(err), body)
}

func messageOf(err error) string {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return fe.Msg
	}
	return err.Error()
}
