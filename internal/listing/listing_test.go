package listing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/critic-review-crawler/internal/crawler"
)

const listingHTML = `<html><body>
<span class="pageInfo">Page 1 of 3</span>
<div class="row review_table_row">
  <a class="unstyled bold articleLink" href="/critic/jane-doe">Jane Doe</a>
</div>
<div class="row review_table_row">
  <a class="unstyled bold articleLink">No href</a>
</div>
<div class="row review_table_row">
  <span>No link at all</span>
</div>
<div class="row other_row">
  <a class="unstyled bold articleLink" href="/critic/ignored">Ignored</a>
</div>
</body></html>`

func TestParserReadsRowsAndPageCount(t *testing.T) {
	t.Parallel()

	reader, err := NewParser().Parse(crawler.Page{URL: "http://x/m/a/reviews", Body: []byte(listingHTML)})
	require.NoError(t, err)

	total, err := reader.PageCount()
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	rows := reader.ReviewRows()
	require.Len(t, rows, 3)

	href, ok := rows[0].AuthorLink()
	assert.True(t, ok)
	assert.Equal(t, "/critic/jane-doe", href)

	_, ok = rows[1].AuthorLink()
	assert.False(t, ok)
	_, ok = rows[2].AuthorLink()
	assert.False(t, ok)
}

func TestPageCountMissingIndicator(t *testing.T) {
	t.Parallel()

	reader, err := NewParser().Parse(crawler.Page{Body: []byte(`<div class="row review_table_row"></div>`)})
	require.NoError(t, err)

	_, err = reader.PageCount()
	require.Error(t, err)
	assert.True(t, errors.Is(err, crawler.ErrStructure))
}

func TestPageCountFallbackAndGarbage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		label   string
		want    int
		wantErr bool
	}{
		{name: "standard", label: "Page 1 of 12", want: 12},
		{name: "extra spacing", label: "  Page 1  of  7  ", want: 7},
		{name: "prefix cut", label: "Seite 1 v 4", want: 4},
		{name: "not a number", label: "Page 1 of many", wantErr: true},
		{name: "too short", label: "Page", wantErr: true},
		{name: "zero", label: "Page 1 of 0", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			body := `<span class="pageInfo">` + tc.label + `</span>`
			reader, err := NewParser().Parse(crawler.Page{Body: []byte(body)})
			require.NoError(t, err)
			got, err := reader.PageCount()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseEmptyPage(t *testing.T) {
	t.Parallel()

	reader, err := NewParser().Parse(crawler.Page{})
	require.NoError(t, err)
	assert.Empty(t, reader.ReviewRows())
	_, err = reader.PageCount()
	assert.Error(t, err)
}
