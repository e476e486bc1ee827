package httpx

import (
	"net/http"

	"brighttalk-server/internal/common"

	"github.com/gin-gonic/gin"
)

// WriteServiceError writes a standardized HTTP error response for service-layer errors.
func WriteServiceError(c *gin.Context, err error, fallbackMessage string) {
	if serviceErr, ok := common.AsServiceError(err); ok {
		c.JSON(serviceErrorStatus(serviceErr.Code), gin.H{
			"error": serviceErr.Message,
			"code":  string(serviceErr.Code),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallbackMessage})
}

func serviceErrorStatus(code common.ErrorCode) int {
	switch code {
	case common.ErrorCodeValidation:
		return http.StatusBadRequest
	case common.ErrorCodeUnauthorized,
		common.ErrorCodeSignatureVerificationFailed,
		common.ErrorCodeCredentialNotFound:
		// 凭据不存在与验签失败统一按 401 返回，避免探测已注册凭据。
		return http.StatusUnauthorized
	case common.ErrorCodeForbidden, common.ErrorCodeCounterRegression:
		return http.StatusForbidden
	case common.ErrorCodeConflict, common.ErrorCodeDuplicateCredential:
		return http.StatusConflict
	case common.ErrorCodeNotFound, common.ErrorCodeChallengeNotFound:
		return http.StatusNotFound
	case common.ErrorCodeChallengeExpired, common.ErrorCodeAttestationVerificationFailed:
		return http.StatusBadRequest
	case common.ErrorCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
