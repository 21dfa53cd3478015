package validation

import "fmt"

// RowError is a rejected CSV row. Line is the file line number, the header
// being line 1.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *RowError) Error() string {
	return e.Message
}

// NewRowError creates a new RowError.
func NewRowError(line int, message string) *RowError {
	return &RowError{
		Line:    line,
		Message: message,
	}
}

// RowErrors is a collection of row errors.
type RowErrors []*RowError

// Error implements the error interface.
func (e RowErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", e[0].Error(), len(e)-1)
}

// Add adds a row error to the collection.
func (e *RowErrors) Add(line int, message string) {
	*e = append(*e, NewRowError(line, message))
}

// HasErrors returns true if there are any row errors.
func (e RowErrors) HasErrors() bool {
	return len(e) > 0
}

// Messages returns the report lines for every error, in order.
func (e RowErrors) Messages() []string {
	msgs := make([]string, 0, len(e))
	for _, re := range e {
		msgs = append(msgs, re.Message)
	}
	return msgs
}
