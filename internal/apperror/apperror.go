// Package apperror domain hatalarını sabit kodlarla taşır. İstemciler mesaja değil koda göre dallanır.
package apperror

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type Code string

const (
	CodeAuthRequired        Code = "AUTH_REQUIRED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeOrderNotFound       Code = "ORDER_NOT_FOUND"
	CodeTableNotFound       Code = "TABLE_NOT_FOUND"
	CodeNotFound            Code = "NOT_FOUND"
	CodeOrderClosed         Code = "ORDER_CLOSED"
	CodeMenuItemUnavailable Code = "MENU_ITEM_UNAVAILABLE"
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeInvalidState        Code = "INVALID_STATE"
	CodeAlreadyPaid         Code = "ALREADY_PAID"
	CodeInsufficientAmount  Code = "INSUFFICIENT_AMOUNT"
	CodeRaceCondition       Code = "RACE_CONDITION"
	CodeTableDirty          Code = "DIRTY"
	CodeVersionConflict     Code = "VERSION_CONFLICT"
	CodeConflict            Code = "CONFLICT"
	CodeInternal            Code = "INTERNAL"
)

var statusByCode = map[Code]int{
	CodeAuthRequired:        fiber.StatusUnauthorized,
	CodeForbidden:           fiber.StatusForbidden,
	CodeOrderNotFound:       fiber.StatusNotFound,
	CodeTableNotFound:       fiber.StatusNotFound,
	CodeNotFound:            fiber.StatusNotFound,
	CodeOrderClosed:         fiber.StatusConflict,
	CodeMenuItemUnavailable: fiber.StatusUnprocessableEntity,
	CodeInvalidInput:        fiber.StatusBadRequest,
	CodeInvalidState:        fiber.StatusConflict,
	CodeAlreadyPaid:         fiber.StatusConflict,
	CodeInsufficientAmount:  fiber.StatusUnprocessableEntity,
	CodeRaceCondition:       fiber.StatusConflict,
	CodeTableDirty:          fiber.StatusConflict,
	CodeVersionConflict:     fiber.StatusConflict,
	CodeConflict:            fiber.StatusConflict,
	CodeInternal:            fiber.StatusInternalServerError,
}

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is aynı koda sahip iki hatayı eşit sayar, errors.Is(err, apperror.ErrAlreadyPaid) çalışsın diye
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) HTTPStatus() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return fiber.StatusInternalServerError
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Internal beklenmeyen depolama hatalarını sarar
func Internal(msg string, err error) *Error {
	return &Error{Code: CodeInternal, Message: msg, Err: err}
}

// CodeOf hata zincirindeki domain kodunu döner, domain hatası değilse INTERNAL
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// Karşılaştırma için hazır örnekler
var (
	ErrAuthRequired        = New(CodeAuthRequired, "Oturum veya işletme bilgisi bulunamadı")
	ErrOrderNotFound       = New(CodeOrderNotFound, "Sipariş bulunamadı")
	ErrTableNotFound       = New(CodeTableNotFound, "Masa bulunamadı")
	ErrOrderClosed         = New(CodeOrderClosed, "Sipariş kapalı, ürün eklenemez")
	ErrMenuItemUnavailable = New(CodeMenuItemUnavailable, "Menü ürünü şu an mevcut değil")
	ErrInvalidInput        = New(CodeInvalidInput, "Geçersiz istek")
	ErrInvalidState        = New(CodeInvalidState, "Sipariş bu işlem için uygun durumda değil")
	ErrAlreadyPaid         = New(CodeAlreadyPaid, "Bu siparişin ödemesi zaten alınmış")
	ErrInsufficientAmount  = New(CodeInsufficientAmount, "Ödeme tutarı hesap toplamından az")
	ErrRaceCondition       = New(CodeRaceCondition, "Masa az önce başka biri tarafından alındı, lütfen başka bir masa deneyin")
	ErrTableDirty          = New(CodeTableDirty, "Masa temizleniyor, lütfen bekleyin")
	ErrVersionConflict     = New(CodeVersionConflict, "Sipariş başka biri tarafından güncellendi, lütfen yenileyin")
)
