package linalg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZerosTranspose(t *testing.T) {
	assert := assert.New(t)

	m := Zeros(2, 3)
	m.Set(0, 0, 1)
	m.Set(0, 2, 3)
	m.Set(1, 1, 5)

	tr := Transpose(m)
	assert.Equal(3, tr.Rows)
	assert.Equal(2, tr.Cols)
	assert.Equal(1.0, tr.At(0, 0))
	assert.Equal(3.0, tr.At(2, 0))
	assert.Equal(5.0, tr.At(1, 1))
}

func TestMultiply(t *testing.T) {
	assert := assert.New(t)

	a := Zeros(2, 2)
	a.Set(0, 0, 1)
	a.Set(0, 1, 2)
	a.Set(1, 0, 3)
	a.Set(1, 1, 4)

	b := Zeros(2, 2)
	b.Set(0, 0, 5)
	b.Set(0, 1, 6)
	b.Set(1, 0, 7)
	b.Set(1, 1, 8)

	c := Multiply(a, b)
	assert.Equal(19.0, c.At(0, 0))
	assert.Equal(22.0, c.At(0, 1))
	assert.Equal(43.0, c.At(1, 0))
	assert.Equal(50.0, c.At(1, 1))
}

func TestInvIdentityRoundTrip(t *testing.T) {
	assert := assert.New(t)

	m := Zeros(3, 3)
	m.Set(0, 0, 4)
	m.Set(0, 1, 7)
	m.Set(1, 0, 2)
	m.Set(1, 1, 6)
	m.Set(2, 2, 1)

	inv, err := Inv(m)
	assert.NoError(err)

	identity := Multiply(m, inv)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			assert.InDelta(want, identity.At(i, j), 1e-9)
		}
	}
}

func TestInvSingular(t *testing.T) {
	assert := assert.New(t)

	m := Zeros(2, 2)
	m.Set(0, 0, 1)
	m.Set(0, 1, 2)
	m.Set(1, 0, 2)
	m.Set(1, 1, 4)

	_, err := Inv(m)
	assert.ErrorIs(err, ErrSingular)
}
