package mongostore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectRejectsEmptyURI(t *testing.T) {
	_, err := Connect(context.Background(), "", "appdb", "users", nil)
	assert.EqualError(t, err, "mongo uri is empty")
}
