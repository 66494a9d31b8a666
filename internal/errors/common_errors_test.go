package errors

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	cause := io.ErrUnexpectedEOF

	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
		wantMsg  string
	}{
		{"export", NewExportError("xlsx", cause), ErrTypeExport, "[EXPORT] failed to export xlsx: unexpected EOF"},
		{"render", NewRenderError("forecast", cause), ErrTypeRender, "[RENDER] failed to render chart forecast: unexpected EOF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestAppErrorUnwrapAndContext(t *testing.T) {
	err := NewExportError("csv", io.ErrShortWrite).WithContext("rows", 36)

	assert.True(t, errors.Is(err, io.ErrShortWrite))
	assert.Equal(t, "csv", err.Context["format"])
	assert.Equal(t, 36, err.Context["rows"])

	var bare AppError
	bare.WithContext("k", "v")
	assert.Equal(t, "v", bare.Context["k"])

	var target *AppError
	wrapped := errors.Join(errors.New("outer"), err)
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, ErrTypeExport, target.Type)
}
