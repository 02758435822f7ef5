package domain

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagnostics(t *testing.T) {
	d := NewDiagnostics(8)

	n, err := d.Write([]byte("abc"))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	d.Line("def")
	assert.Equal(t, "abcdef\n", d.String())

	// Oldest bytes are dropped once the limit is exceeded.
	d.Line("gh\n")
	assert.Equal(t, "cdef\ngh\n", d.String())
	assert.Equal(t, 8, d.Len())

	d.SetLimit(3)
	assert.Equal(t, "gh\n", d.String())

	d.Reset()
	assert.Empty(t, d.String())
	assert.Equal(t, 0, d.Len())
}

func TestDiagnostics_DefaultLimit(t *testing.T) {
	d := NewDiagnostics(0)
	d.Line(strings.Repeat("x", DefaultDiagnosticsLimit+10))
	assert.Equal(t, DefaultDiagnosticsLimit, d.Len())

	d.SetLimit(-1)
	assert.Equal(t, DefaultDiagnosticsLimit, d.Len())
}

func TestDiagnostics_Concurrent(t *testing.T) {
	d := NewDiagnostics(1 << 20)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d.Line(fmt.Sprintf("line %02d", i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, strings.Count(d.String(), "\n"))
	assert.Equal(t, 20*len("line 00\n"), d.Len())
}
