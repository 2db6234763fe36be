package wire_errors

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestConvertRoundTrip(t *testing.T) {
	for code, sentinel := range codeToErr {
		wrapped := pkgerrors.Wrapf(sentinel, "shard %d", 7)
		got, des := ConvertToCode(wrapped)
		require.Equal(t, code, got)
		require.Contains(t, des, "shard 7")

		back := FromCode(got, des)
		require.True(t, errors.Is(back, sentinel))
		require.Equal(t, des, back.Error())
	}
}

func TestConvertUnknown(t *testing.T) {
	code, des := ConvertToCode(errors.New("disk on fire"))
	require.Equal(t, Code_ERROR, code)
	require.Equal(t, "disk on fire", des)

	code, des = ConvertToCode(nil)
	require.Equal(t, Code_OK, code)
	require.Equal(t, "", des)
	require.Nil(t, FromCode(Code_OK, ""))
	require.EqualError(t, FromCode(Code_ERROR, "boom"), "boom")
}

func TestFromCodeBareSentinel(t *testing.T) {
	require.Equal(t, DuplicateShare, FromCode(Code_DuplicateShare, ""))
	require.Equal(t, "duplicate share", Code_DuplicateShare.String())
}
