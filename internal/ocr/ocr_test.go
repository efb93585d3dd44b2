package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEngineDefaultsCommand(t *testing.T) {
	e := NewEngine("")
	assert.Equal(t, "tesseract", e.Command)

	e2 := NewEngine("/usr/local/bin/tesseract")
	assert.Equal(t, "/usr/local/bin/tesseract", e2.Command)
}

func TestEngineImplementsReader(t *testing.T) {
	var _ Reader = (*Engine)(nil)
}
