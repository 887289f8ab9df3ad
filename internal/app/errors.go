package app

import "fmt"

// DomainError is a caller-visible failure with an HTTP-mappable status.
type DomainError struct {
	Status  int
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func notFound(message string) *DomainError {
	return domainError(404, "NOT_FOUND", message)
}

func invalidInput(code, message string) *DomainError {
	return domainError(400, code, message)
}
