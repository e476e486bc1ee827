package common

import "errors"

type ErrorCode string

const (
	ErrorCodeValidation   ErrorCode = "validation"
	ErrorCodeUnauthorized ErrorCode = "unauthorized"
	ErrorCodeForbidden    ErrorCode = "forbidden"
	ErrorCodeConflict     ErrorCode = "conflict"
	ErrorCodeNotFound     ErrorCode = "not_found"
	ErrorCodeInternal     ErrorCode = "internal"

	// Passkey 仪式错误码：调用方需要按类型区分处理（重新发起挑战、锁定凭据等），
	// 因此不能折叠进上面的通用错误码。
	ErrorCodeChallengeNotFound              ErrorCode = "challenge_not_found"
	ErrorCodeChallengeExpired               ErrorCode = "challenge_expired"
	ErrorCodeAttestationVerificationFailed  ErrorCode = "attestation_verification_failed"
	ErrorCodeSignatureVerificationFailed    ErrorCode = "signature_verification_failed"
	ErrorCodeDuplicateCredential            ErrorCode = "duplicate_credential"
	ErrorCodeCredentialNotFound             ErrorCode = "credential_not_found"
	ErrorCodeCounterRegression              ErrorCode = "counter_regression_detected"
	ErrorCodeStoreUnavailable               ErrorCode = "store_unavailable"
)

// ServiceError 是服务层面向调用方的统一错误类型：Code 表达错误种类，Message 可直接展示给用户。
type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

func NewServiceError(code ErrorCode, message string) error {
	return &ServiceError{Code: code, Message: message}
}

// AsServiceError 判断错误链中是否存在 ServiceError。
func AsServiceError(err error) (*ServiceError, bool) {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return nil, false
}

// IsErrorCode 判断错误是否为指定错误码的 ServiceError。
func IsErrorCode(err error, code ErrorCode) bool {
	serviceErr, ok := AsServiceError(err)
	return ok && serviceErr.Code == code
}

func NewValidationError(message string) error {
	return NewServiceError(ErrorCodeValidation, message)
}

func NewUnauthorizedError(message string) error {
	return NewServiceError(ErrorCodeUnauthorized, message)
}

func NewForbiddenError(message string) error {
	return NewServiceError(ErrorCodeForbidden, message)
}

func NewConflictError(message string) error {
	return NewServiceError(ErrorCodeConflict, message)
}

func NewNotFoundError(message string) error {
	return NewServiceError(ErrorCodeNotFound, message)
}

func NewInternalError(message string) error {
	return NewServiceError(ErrorCodeInternal, message)
}

func NewStoreUnavailableError(message string) error {
	return NewServiceError(ErrorCodeStoreUnavailable, message)
}
