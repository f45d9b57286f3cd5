package gizmos

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosSatisfiedBy(t *testing.T) {
	cos := Mk_cos(1, "gold")
	cos.Min_cpu = 2
	cos.Min_ram = 512
	cos.Min_disk = 10

	assert.True(t, cos.Satisfied_by(4, 1024, 50))
	assert.False(t, cos.Satisfied_by(1, 1024, 50))
	assert.False(t, cos.Satisfied_by(4, 256, 50))
	assert.False(t, cos.Satisfied_by(4, 1024, 5))
}

func TestCosAccessors(t *testing.T) {
	cos := Mk_cos(7, "silver")
	assert.Equal(t, 7, cos.Get_id())
	assert.Equal(t, "silver", cos.Get_name())
}
