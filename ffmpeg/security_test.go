package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitArgs(t *testing.T) {
	args, err := SplitArgs(`-threads 2 -x264-params "keyint=60:min-keyint=60"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"-threads", "2", "-x264-params", "keyint=60:min-keyint=60"}, args)
}

func TestSanitizeArgs(t *testing.T) {
	t.Run("Valid arguments", func(t *testing.T) {
		args, _ := SplitArgs(`-threads 2 -tune film`)
		assert.NoError(t, SanitizeArgs(args))
	})

	t.Run("Reserved input option", func(t *testing.T) {
		args, _ := SplitArgs(`-i /etc/passwd`)
		err := SanitizeArgs(args)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "argument -i is reserved")
	})

	t.Run("Disallowed character (semicolon)", func(t *testing.T) {
		args, _ := SplitArgs(`-threads 2; ls`)
		err := SanitizeArgs(args)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disallowed character found in argument: 2;")
	})

	t.Run("Disallowed character (dollar)", func(t *testing.T) {
		args, _ := SplitArgs(`-metadata "title=$(whoami)"`)
		err := SanitizeArgs(args)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disallowed character found in argument: title=$(whoami)")
	})
}

func TestParseExtraArgs(t *testing.T) {
	args, err := ParseExtraArgs("   ")
	require.NoError(t, err)
	assert.Nil(t, args)

	args, err = ParseExtraArgs("-threads 4")
	require.NoError(t, err)
	assert.Equal(t, []string{"-threads", "4"}, args)

	_, err = ParseExtraArgs(`-vf "scale=1:1"`)
	assert.Error(t, err)
}
