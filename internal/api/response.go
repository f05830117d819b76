package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/gcs2bq/internal/repo"
)

// ErrorCode — машиночитаемый код ошибки в ответе API.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// Status возвращает HTTP статус для кода ошибки.
func (c ErrorCode) Status() int {
	switch c {
	case ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidState, ErrCodeInvalidConfig:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse — тело ответа с ошибкой: {"error": {...}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — код и текст ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — тело успешного ответа: {"data": ...}.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — тело ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// JSON пишет data как JSON с указанным статусом.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success — 200 с {"data": ...}.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created — 201 с {"data": ...}.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error пишет ошибку; статус определяется кодом.
func Error(w http.ResponseWriter, code ErrorCode, message string) {
	JSON(w, code.Status(), ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, ErrCodeBadRequest, message)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, ErrCodeNotFound, message)
}

// InvalidState — операция недопустима в текущем статусе загрузки.
func InvalidState(w http.ResponseWriter, message string) {
	Error(w, ErrCodeInvalidState, message)
}

// InvalidConfig — конфигурация загрузки синтаксически верна, но противоречива.
func InvalidConfig(w http.ResponseWriter, message string) {
	Error(w, ErrCodeInvalidConfig, message)
}

// InternalError логирует err и отдаёт клиенту обезличенное сообщение.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, ErrCodeInternalError, "internal server error")
}

// HandleRepoError отвечает на ошибку репозитория.
// Возвращает false, если err == nil и ответ ещё не записан.
func HandleRepoError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, repo.ErrNotFound):
		NotFound(w, notFoundMsg)
	case errors.Is(err, repo.ErrInvalidState):
		InvalidState(w, err.Error())
	default:
		InternalError(w, logger, err)
	}
	return true
}
