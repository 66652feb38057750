package chat

import (
	"net/http"
	"path/filepath"

	"github.com/ashureev/quizchat/internal/domain"
	"github.com/ashureev/quizchat/internal/quizapi"
)

// NewPDF checks that data is a PDF document before it is forwarded upstream.
func NewPDF(name string, data []byte) (quizapi.PDF, error) {
	name = filepath.Base(name)
	if len(data) == 0 {
		return quizapi.PDF{}, &domain.ValidationError{Field: "pdfs", Message: name + " is empty"}
	}
	if http.DetectContentType(data) != "application/pdf" {
		return quizapi.PDF{}, &domain.ValidationError{Field: "pdfs", Message: name + " is not a PDF file"}
	}
	return quizapi.PDF{Name: name, Data: data}, nil
}
