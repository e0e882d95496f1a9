package pagination

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	page, err := Parse(url.Values{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Page)
	require.Equal(t, DefaultSize, page.Size)
}

func TestParseExplicit(t *testing.T) {
	page, err := Parse(url.Values{"page": {"3"}, "size": {"50"}})
	require.NoError(t, err)
	require.Equal(t, 3, page.Page)
	require.Equal(t, 50, page.Size)
}

func TestParseClampsSize(t *testing.T) {
	page, err := Parse(url.Values{"size": {"500"}})
	require.NoError(t, err)
	require.Equal(t, MaxSize, page.Size)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse(url.Values{"page": {"abc"}})
	require.Error(t, err)

	_, err = Parse(url.Values{"page": {"0"}})
	require.Error(t, err)

	_, err = Parse(url.Values{"size": {"-5"}})
	require.Error(t, err)
}

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	require.Equal(t, []int{1, 2}, Slice(items, Page{Page: 1, Size: 2}))
	require.Equal(t, []int{3, 4}, Slice(items, Page{Page: 2, Size: 2}))
	require.Equal(t, []int{5}, Slice(items, Page{Page: 3, Size: 2}))
	require.Nil(t, Slice(items, Page{Page: 4, Size: 2}))
}
