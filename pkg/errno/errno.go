package errno

import "fmt"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// WithMessage returns a copy of the error with a more specific message,
// keeping the original code so clients can still switch on it
func (e Errno) WithMessage(format string, args ...interface{}) Errno {
	return Errno{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Is allows errors.Is matching by code
func (e Errno) Is(target error) bool {
	t, ok := target.(Errno)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	switch typed := err.(type) {
	case *Errno:
		return typed.Code, typed.Message
	case Errno:
		return typed.Code, typed.Message
	default:
		return InternalServerError.Code, err.Error()
	}
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrTokenInvalid     = Errno{Code: 10003, Message: "Token invalid"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"} // 存储错误, 对通知方视为可重试
)

// Business Errors (20000+)
var (
	ErrAccountNotFound   = Errno{Code: 20101, Message: "Username does not exist"}
	ErrUsernameTaken     = Errno{Code: 20102, Message: "Username taken"}
	ErrUsernameRequired  = Errno{Code: 20103, Message: "Must provide username"}
	ErrAddressNotFound   = Errno{Code: 20201, Message: "Address has no bound owner"}
	ErrAmountTooSmall    = Errno{Code: 20301, Message: "Withdrawal amount below the minimum transferable unit"}
	ErrInsufficientFunds = Errno{Code: 20302, Message: "Insufficient available balance"}
	ErrInsufficientTotal = Errno{Code: 20303, Message: "Insufficient total balance"} // 费用估算失败或总额超出可用余额
	ErrInvalidAddress    = Errno{Code: 20304, Message: "Invalid destination address"}
	ErrProvider          = Errno{Code: 20401, Message: "Wallet provider request failed"}
)
