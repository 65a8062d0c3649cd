package digest

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func Test_ComputeDigest(t *testing.T) {
	t.Run("empty input hashes to the keccak256 empty hash", func(t *testing.T) {
		assert.Equal(t,
			common.HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"),
			ComputeDigest(nil))
	})

	t.Run("identical bytes produce identical digests", func(t *testing.T) {
		a := ComputeDigest([]byte("%PDF-1.7 document body"))
		b := ComputeDigest([]byte("%PDF-1.7 document body"))
		assert.Equal(t, a, b)
	})

	t.Run("single byte difference changes the digest", func(t *testing.T) {
		base := bytes.Repeat([]byte{0x41}, 4096)
		for _, idx := range []int{0, 1, 2047, 4095} {
			mutated := append([]byte(nil), base...)
			mutated[idx] ^= 0x01
			assert.NotEqual(t, ComputeDigest(base), ComputeDigest(mutated), "index %d", idx)
		}
	})
}

func Test_FromFile(t *testing.T) {
	content := []byte("signed contract v1\n")
	docA := writeFixture(t, "doc.pdf", content)
	docB := writeFixture(t, "copy.pdf", content)
	docC := writeFixture(t, "other.pdf", []byte("signed contract v2\n"))

	a, err := FromFile(docA)
	require.NoError(t, err)
	b, err := FromFile(docB)
	require.NoError(t, err)
	c, err := FromFile(docC)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, crypto.Keccak256Hash(content), a)
	assert.Equal(t, ComputeDigest(content), a)
}

func Test_FromFile_Missing(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func Test_FromReader_Error(t *testing.T) {
	_, err := FromReader(failingReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")

	_, err = FromReader(nil)
	require.Error(t, err)
}

func Test_Parse(t *testing.T) {
	d := ComputeDigest([]byte("x"))

	parsed, err := Parse(d.Hex())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	for _, bad := range []string{"", "abc", d.Hex()[2:], d.Hex() + "00", "0x" + string(bytes.Repeat([]byte("z"), 64))} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}
