// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorCode classifies an API error.
type ErrorCode string

const (
	ErrorCodeInvalidQuery    ErrorCode = "INVALID_QUERY"
	ErrorCodeDatasetNotFound ErrorCode = "DATASET_NOT_FOUND"
	ErrorCodeSearchFailed    ErrorCode = "SEARCH_FAILED"
	ErrorCodeInternalError   ErrorCode = "INTERNAL_ERROR"
)

// APIError is the body of every error response.
type APIError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// SendError writes an error response carrying the request ID, if any.
func SendError(c *gin.Context, status int, code ErrorCode, message string) {
	c.JSON(status, &APIError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: c.GetString(requestIDKey),
	})
}
