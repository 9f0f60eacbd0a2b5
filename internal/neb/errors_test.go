package neb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorRendering(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "invalid input",
			err:  InvalidInputError("band.SetImages", "need at least 2 images, got %d", 1),
			want: "invalid input: band.SetImages: need at least 2 images, got 1",
		},
		{
			name: "evaluation with indices",
			err:  EvaluationError("band.evaluatePES", []int{1, 3}, errors.New("scf did not converge")),
			want: "evaluation: band.evaluatePES: images [1 3]: scf did not converge",
		},
		{
			name: "domain",
			err:  DomainError("Profile.Energy", "reaction coordinate %v outside [0,1]", 1.5),
			want: "domain: Profile.Energy: reaction coordinate 1.5 outside [0,1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := EvaluationError("op", []int{0}, cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Unwrap())

	assert.Nil(t, InvalidInputError("op", "msg").Unwrap())
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, IsInvalidInput(InvalidInputError("op", "msg")))
	assert.True(t, IsEvaluation(EvaluationError("op", nil, errors.New("x"))))
	assert.True(t, IsDomain(DomainError("op", "msg")))

	assert.False(t, IsInvalidInput(DomainError("op", "msg")))
	assert.False(t, IsEvaluation(errors.New("plain")))
	assert.False(t, IsDomain(nil))
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	inner := DomainError("Path.Geometry", "out of range")
	wrapped := fmt.Errorf("query failed: %w", inner)

	assert.True(t, IsDomain(wrapped))

	var e *Error
	require.ErrorAs(t, wrapped, &e)
	assert.Equal(t, "Path.Geometry", e.Op)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "converged", Converged.String())
	assert.Equal(t, "exhausted", Exhausted.String())
	assert.Equal(t, "unknown", Status(99).String())
}
