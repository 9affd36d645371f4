package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 用户模块错误 100xx
	ErrUserExists   = 10001
	ErrUserNotFound = 10002
	ErrAuthFailed   = 10003
	ErrTokenInvalid = 10004
	ErrNoPermission = 10005

	// 文章模块错误 200xx
	ErrPostNotFound     = 20001
	ErrCommentNotFound  = 20002
	ErrCommentsDisabled = 20003
	ErrCategoryNotFound = 20004
	ErrTagNotFound      = 20005

	// 互动模块错误 300xx
	ErrSelfFollow = 30001

	// 订阅模块错误 400xx
	ErrSubscriptionNotFound = 40001

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)
