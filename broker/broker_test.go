package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskName(t *testing.T) {
	assert.Equal(t, "seckill.order:order.created", TaskName("seckill.order", "order.created"))
	assert.Equal(t, "x:k", TaskName("x", "k"))
}
