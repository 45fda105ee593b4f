package config

import (
	"sync"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagTracker_Basic(t *testing.T) {
	ft := NewFlagTracker()
	assert.False(t, ft.WasSet("untangle"))

	ft.Set("untangle")
	assert.True(t, ft.WasSet("untangle"))
	assert.Equal(t, 1, ft.Count())

	ft.Clear()
	assert.False(t, ft.WasSet("untangle"))
	assert.Zero(t, ft.Count())
}

func TestFlagTracker_WithInitialFlags(t *testing.T) {
	initial := map[string]bool{"json": true, "sort": false}
	ft := NewFlagTrackerWithFlags(initial)

	initial["dot"] = true
	assert.True(t, ft.WasSet("json"))
	assert.False(t, ft.WasSet("sort"))
	assert.False(t, ft.WasSet("dot"), "the tracker must own a copy of the initial map")

	all := ft.GetAll()
	all["csv"] = true
	assert.False(t, ft.WasSet("csv"))
}

func TestFlagTracker_FromFlagSet(t *testing.T) {
	fs := pflag.NewFlagSet("structure", pflag.ContinueOnError)
	fs.Bool("no-untangle", false, "")
	fs.Int("max-comb-iterations", 0, "")
	fs.String("sort", "location", "")

	require.NoError(t, fs.Parse([]string{"--max-comb-iterations", "12", "--no-untangle"}))

	ft := NewFlagTrackerFromFlagSet(fs)
	assert.True(t, ft.WasSet("no-untangle"))
	assert.True(t, ft.WasSet("max-comb-iterations"))
	assert.False(t, ft.WasSet("sort"))
	assert.True(t, ft.AnyWasSet("json", "no-untangle"))
	assert.False(t, ft.AnyWasSet("json", "yaml"))

	assert.Zero(t, NewFlagTrackerFromFlagSet(nil).Count())
}

func TestFlagTracker_MergeMethods(t *testing.T) {
	ft := NewFlagTracker()
	ft.Set("explicit")

	assert.Equal(t, "override", ft.MergeString("base", "override", "explicit"))
	assert.Equal(t, "base", ft.MergeString("base", "override", "notset"))

	assert.Equal(t, 20, ft.MergeInt(10, 20, "explicit"))
	assert.Equal(t, 10, ft.MergeInt(10, 20, "notset"))

	assert.Equal(t, int64(2048), ft.MergeInt64(1024, 2048, "explicit"))
	assert.Equal(t, int64(1024), ft.MergeInt64(1024, 2048, "notset"))

	assert.False(t, ft.MergeBool(true, false, "explicit"))
	assert.True(t, ft.MergeBool(true, false, "notset"))

	base, override := true, false
	assert.Same(t, &override, ft.MergeBoolPtr(&base, &override, "explicit"))
	assert.Same(t, &base, ft.MergeBoolPtr(&base, &override, "notset"))
	assert.Same(t, &base, ft.MergeBoolPtr(&base, nil, "explicit"))

	assert.Equal(t, []string{"b"}, ft.MergeStringSlice([]string{"a"}, []string{"b"}, "explicit"))
	assert.Equal(t, []string{"a"}, ft.MergeStringSlice([]string{"a"}, []string{"b"}, "notset"))
	assert.Equal(t, []string{"a"}, ft.MergeStringSlice([]string{"a"}, nil, "explicit"))
}

func TestFlagTracker_ConcurrentReadWrite(t *testing.T) {
	ft := NewFlagTracker()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if (id+j)%2 == 0 {
					ft.Set("even")
				} else {
					ft.Set("odd")
				}
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				_ = ft.WasSet("even")
				_ = ft.Count()
				_ = ft.GetAll()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 2, ft.Count())
}
