package compiler

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const imageTestScript = `<script>
	<step name="s">
		<input-boolean name="x" default="false"/>
	</step>
	<output>
		<file source="hello.txt" target="docs/hello.txt"/>
	</output>
</script>`

func imageTestFS() fstest.MapFS {
	return fstest.MapFS{
		"hello.txt": {Data: []byte("hello\r\nworld\n")},
	}
}

func TestImage_Write(t *testing.T) {
	c := New(parseScript(t, imageTestScript), "", WithFS(imageTestFS()))
	img, err := c.Compile(0)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, img.Write(dir))

	data, err := os.ReadFile(filepath.Join(dir, "main.xml"))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "<script>")
	assert.Contains(t, content, `<step name="s"`)
	assert.Contains(t, content, `input-boolean`)

	for _, id := range img.Blobs.IDs() {
		blobData, err := os.ReadFile(filepath.Join(dir, "blobs", id))
		require.NoError(t, err)
		want, _ := img.Blobs.Get(id)
		assert.Equal(t, want, blobData)
		// Stored content is newline-normalized.
		assert.NotContains(t, string(blobData), "\r")
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestCompile_Deterministic(t *testing.T) {
	write := func(t *testing.T) string {
		c := New(parseScript(t, imageTestScript), "", WithFS(imageTestFS()))
		img, err := c.Compile(0)
		require.NoError(t, err)
		dir := t.TempDir()
		require.NoError(t, img.Write(dir))
		data, err := os.ReadFile(filepath.Join(dir, "main.xml"))
		require.NoError(t, err)
		return string(data)
	}
	assert.Equal(t, write(t), write(t), "two compiles of identical input must be byte-identical")
}

func TestEscaping(t *testing.T) {
	assert.Equal(t, "a &amp;&amp; b &lt;c&gt; &quot;q&quot;", escapeAttr(`a && b <c> "q"`))
	assert.Equal(t, "1 &lt; 2 &amp; 3", escapeText("1 < 2 & 3"))
}
