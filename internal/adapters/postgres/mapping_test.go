package postgres_adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadColumnRoundTrip(t *testing.T) {
	// Отсутствующее значение хранится пустой строкой
	assert.Equal(t, "", payloadToColumn(nil))
	assert.Nil(t, columnToPayload(""))

	value := "42"
	assert.Equal(t, "42", payloadToColumn(&value))

	restored := columnToPayload("42")
	require.NotNil(t, restored)
	assert.Equal(t, "42", *restored)
}
