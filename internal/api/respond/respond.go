// Package respond writes the API's JSON envelope. Every response is either
// {"data": ...} or {"error": {"code", "message"}}.
package respond

import (
	"encoding/json"
	"log"
	"net/http"
)

// Response is the standard envelope.
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// JSONError writes an error envelope.
func JSONError(w http.ResponseWriter, e *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	if err := json.NewEncoder(w).Encode(Response{Error: e}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// OK writes a 200 response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 response.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent writes a 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Err maps err to an API error and writes it. Infrastructure faults are
// logged with op; expected outcomes are not.
func Err(w http.ResponseWriter, op string, err error) {
	e := FromError(err)
	if e.Status >= http.StatusInternalServerError {
		log.Printf("%s error: %v", op, err)
	}
	JSONError(w, e)
}
