package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensorq/backend"
)

func TestDefaultResolves(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())

	eng, err := s.ResolveEngine()
	require.NoError(t, err)
	assert.Equal(t, "native", eng.Name())

	dt, err := s.ResolveDType()
	require.NoError(t, err)
	assert.Equal(t, backend.Complex128, dt)
}

func TestSetRejectsUnknownEngine(t *testing.T) {
	s := Default()
	s.Engine = "tpu"
	err := Set(s)
	require.Error(t, err)
	assert.True(t, backend.IsNotSupported(err))
	assert.Equal(t, "native", Current().Engine)
}

func TestSetRejectsUnknownDType(t *testing.T) {
	s := Default()
	s.DType = "float16"
	err := Set(s)
	require.Error(t, err)
	assert.True(t, backend.IsNotSupported(err))
}

func TestScopedRestores(t *testing.T) {
	orig := Current()

	s := orig
	s.DType = "complex64"
	restore := Scoped(s)
	assert.Equal(t, "complex64", Current().DType)

	restore()
	assert.Equal(t, orig, Current())
}

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tensorq.yaml")

	s := Default()
	s.DType = "complex64"
	s.PlanCacheSize = 16
	require.NoError(t, s.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestLoadMissingFieldsFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: native\n"), 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().DType, got.DType)
	assert.Equal(t, Default().PlanCacheSize, got.PlanCacheSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestSetLoggerNilRestoresNop(t *testing.T) {
	require.NoError(t, UseDevelopmentLogger())
	assert.NotNil(t, Logger())
	SetLogger(nil)
	assert.NotNil(t, Logger())
}
