// Package jsonutil provides helper functions for JSON API responses.
//
// Every error body has the same shape:
//
//	{"error": "not_found", "message": "project not found with id 65f..."}
//
// where error is machine-readable and message is safe to show.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/devcanvas/devcanvas/internal/app/system/apperror"
	"go.uber.org/zap"
)

// MaxBodyBytes caps request bodies read by Decode.
const MaxBodyBytes = 1 << 20

// internalMessage is the only text a caller sees for unexpected failures.
const internalMessage = "An internal error occurred"

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// OK writes a 200 OK JSON response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 Created JSON response.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// Error writes an error body with the given status and kind.
func Error(w http.ResponseWriter, status int, kind, message string) {
	JSON(w, status, ErrorResponse{Error: kind, Message: message})
}

// BadRequest writes a 400 validation_error response.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, "validation_error", message)
}

// Unauthorized writes a 401 response.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, "unauthorized", message)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, "not_found", message)
}

// NotImplemented writes a 501 response.
func NotImplemented(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotImplemented, "not_implemented", message)
}

// WriteError maps err through the apperror taxonomy. Internal errors are
// logged with request context and replaced by a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status, kind := apperror.Status(err)
	if status == http.StatusInternalServerError {
		if log != nil {
			log.Error("request failed",
				zap.Error(err),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
		}
		Error(w, status, kind, internalMessage)
		return
	}

	resp := ErrorResponse{Error: kind, Message: err.Error()}
	var ae *apperror.AppError
	if errors.As(err, &ae) {
		resp.Message = ae.Message
		resp.Field = ae.Field
	}
	JSON(w, status, resp)
}

// Decode reads JSON from the request body into v. Bodies over MaxBodyBytes,
// empty bodies and malformed JSON return a validation AppError.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("", "request body is required")
		}
		return apperror.ValidationFailed("", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}
