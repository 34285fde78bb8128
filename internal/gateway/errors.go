package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Category is the coarse classification of a failed backend call.
type Category string

const (
	CategoryValidation      Category = "validation"
	CategoryUnauthenticated Category = "unauthenticated"
	CategoryNotFound        Category = "not_found"
	CategoryServer          Category = "server"
	CategoryNetwork         Category = "network"
)

// Error is a normalized backend failure: the HTTP status (0 for network
// failures), a coarse category, and the server's human-readable detail
// message when one was supplied.
type Error struct {
	Status   int
	Category Category
	Detail   string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("backend unreachable: %s", e.Detail)
	}
	return fmt.Sprintf("backend error %d (%s): %s", e.Status, e.Category, e.Detail)
}

func categorize(status int) Category {
	switch {
	case status == http.StatusUnauthorized:
		return CategoryUnauthenticated
	case status == http.StatusNotFound:
		return CategoryNotFound
	case status >= 400 && status < 500:
		return CategoryValidation
	default:
		return CategoryServer
	}
}

func fallbackDetail(category Category) string {
	switch category {
	case CategoryValidation:
		return "the request was rejected by the server"
	case CategoryUnauthenticated:
		return "authentication required"
	case CategoryNotFound:
		return "not found"
	case CategoryNetwork:
		return "could not reach the server, check your connection"
	default:
		return "the server had a problem, try again later"
	}
}

func categoryIs(err error, category Category) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Category == category
}

// IsValidation reports whether err is a normalized 4xx validation failure.
func IsValidation(err error) bool { return categoryIs(err, CategoryValidation) }

// IsUnauthenticated reports whether err is a normalized 401 failure.
func IsUnauthenticated(err error) bool { return categoryIs(err, CategoryUnauthenticated) }

// IsNotFound reports whether err is a normalized 404 failure.
func IsNotFound(err error) bool { return categoryIs(err, CategoryNotFound) }

// IsServer reports whether err is a normalized 5xx failure.
func IsServer(err error) bool { return categoryIs(err, CategoryServer) }

// IsNetwork reports whether err is a timeout or connectivity failure.
func IsNetwork(err error) bool { return categoryIs(err, CategoryNetwork) }

// Detail extracts the human-readable message of a normalized error, or
// err.Error() when err did not come through the gateway.
func Detail(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Detail
	}
	return err.Error()
}
