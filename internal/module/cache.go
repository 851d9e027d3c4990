package module

import (
	"io"
	"os"

	"github.com/dop251/goja"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"
)

// DefaultCacheSize is the number of compiled programs a ScriptHost keeps.
const DefaultCacheSize = 256

type cachedProgram struct {
	program *goja.Program
	inputs  []string
	sum     string
}

// programCache holds compiled module programs by absolute path. An entry
// is only reused while the blake3 fingerprint of its inputs is unchanged.
type programCache struct {
	entries *lru.Cache[string, *cachedProgram]
}

func newProgramCache(size int) (*programCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, *cachedProgram](size)
	if err != nil {
		return nil, err
	}
	return &programCache{entries: entries}, nil
}

// get returns the cached program for abs if its inputs still hash the same.
func (c *programCache) get(abs string) (*goja.Program, bool) {
	entry, ok := c.entries.Get(abs)
	if !ok {
		return nil, false
	}
	sum, err := fingerprint(entry.inputs)
	if err != nil || sum != entry.sum {
		c.entries.Remove(abs)
		return nil, false
	}
	return entry.program, true
}

func (c *programCache) put(abs string, prog *goja.Program, inputs []string, sum string) {
	c.entries.Add(abs, &cachedProgram{program: prog, inputs: inputs, sum: sum})
}

func (c *programCache) remove(abs string) {
	c.entries.Remove(abs)
}

func (c *programCache) len() int {
	return c.entries.Len()
}

// fingerprint hashes the names and contents of files in order.
func fingerprint(files []string) (string, error) {
	h := blake3.New()
	for _, f := range files {
		_, _ = io.WriteString(h, f)
		_, _ = h.Write([]byte{0})
		fh, err := os.Open(f)
		if err != nil {
			return "", err
		}
		_, err = io.Copy(h, fh)
		fh.Close()
		if err != nil {
			return "", err
		}
		_, _ = h.Write([]byte{0})
	}
	return string(h.Sum(nil)), nil
}
