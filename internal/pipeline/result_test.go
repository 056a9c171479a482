package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	require.NoError(t, Join(Result{Name: "styles"}, Result{Name: "scripts"}))

	cause := errors.New("boom")
	err := Join(Result{Name: "styles", Err: cause}, Result{Name: "scripts"})
	require.ErrorIs(t, err, cause)
	require.EqualError(t, err, "styles: boom")

	require.False(t, Result{Err: cause}.OK())
	require.True(t, Result{}.OK())
}
