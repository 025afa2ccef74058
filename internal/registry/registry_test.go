package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDelay(t *testing.T) {
	cases := map[string]Delay{
		"":      0,
		"500":   500,
		" 250 ": 250,
		"abc":   0,
		"-10":   0,
		"1.5":   0,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseDelay(in), "input %q", in)
	}
	assert.Equal(t, 1500*time.Millisecond, Delay(1500).Duration())
}

func TestDecodeAcceptsStringsAndNumbers(t *testing.T) {
	fc, err := Decode(`{"CA":"500","BR":0,"US":"oops","JP":250}`)
	require.NoError(t, err)

	want := FailingCountries{"CA": 500, "BR": 0, "US": 0, "JP": 250}
	if diff := cmp.Diff(want, fc); diff != "" {
		t.Errorf("decoded registry mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeNullIsEmpty(t *testing.T) {
	fc, err := Decode("null")
	require.NoError(t, err)
	assert.NotNil(t, fc)
	assert.Empty(t, fc)
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{"", "[]", "not json", `{"CA":{}}`} {
		_, err := Decode(raw)
		assert.True(t, errors.Is(err, ErrMalformed), "input %q: %v", raw, err)
	}
}

func TestEncodeWritesDecimalStrings(t *testing.T) {
	raw, err := Encode(FailingCountries{"CA": 500})
	require.NoError(t, err)
	assert.JSONEq(t, `{"CA":"500"}`, raw)

	raw, err = Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", raw)
}

func TestToggleTwiceRestoresMembership(t *testing.T) {
	fc := FailingCountries{"BR": 100}

	assert.True(t, fc.Toggle("CA", 500))
	assert.Equal(t, Delay(500), fc["CA"])

	assert.False(t, fc.Toggle("CA", 900))
	assert.False(t, fc.Has("CA"))

	if diff := cmp.Diff(FailingCountries{"BR": 100}, fc); diff != "" {
		t.Errorf("registry changed (-want +got):\n%s", diff)
	}
}

func TestCodesSortedAndCloneIndependent(t *testing.T) {
	fc := FailingCountries{"US": 0, "CA": 1, "FR": 2}
	assert.Equal(t, []string{"CA", "FR", "US"}, fc.Codes())

	c := fc.Clone()
	delete(c, "US")
	assert.True(t, fc.Has("US"))

	var nilReg FailingCountries
	assert.NotNil(t, nilReg.Clone())
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := "failing_countries:\n  CA: 500\n  br: \"0\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	fc, err := LoadSeedFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(FailingCountries{"CA": 500, "BR": 0}, fc); diff != "" {
		t.Errorf("seed mismatch (-want +got):\n%s", diff)
	}

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
