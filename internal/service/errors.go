package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	NotFound            = 404
	Conflict            = 409
	InternalServerError = 500
)

var (
	ErrParamInvalid          = errors.New("参数错误")
	ErrInvalidMessage        = errors.New("消息不合法")
	ErrConversationClosed    = errors.New("会话已关闭")
	ErrConversationNotClosed = errors.New("会话未关闭")
	ErrInvalidTransition     = errors.New("状态迁移不合法")
	ErrConversationNotFound  = errors.New("会话不存在")
	ErrMessageNotFound       = errors.New("消息不存在")
	ErrCustomerNotFound      = errors.New("客户不存在")
	ErrNoteNotFound          = errors.New("备注不存在")
	ErrFileNotSupported      = errors.New("不支持的文件类型")
	ErrTypingActorInvalid    = errors.New("输入状态主体无效")
	UnauthorizedError        = errors.New("权限不足")
	UnExpectedError          = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:          BadRequest,
	ErrInvalidMessage:        BadRequest,
	ErrConversationClosed:    Conflict,
	ErrConversationNotClosed: Conflict,
	ErrInvalidTransition:     Conflict,
	ErrConversationNotFound:  NotFound,
	ErrMessageNotFound:       NotFound,
	ErrCustomerNotFound:      NotFound,
	ErrNoteNotFound:          NotFound,
	ErrFileNotSupported:      BadRequest,
	ErrTypingActorInvalid:    BadRequest,
	UnauthorizedError:        Unauthorized,
	UnExpectedError:          InternalServerError,
}
