package dataset

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jszwec/csvutil"

	"github.com/JakeFAU/critic-review-crawler/internal/crawler"
)

// WriteTSV writes reviews as tab-separated values with a header row. The
// header is written even when reviews is empty.
func WriteTSV(w io.Writer, reviews []crawler.Review) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(crawler.Review{}); err != nil {
		return fmt.Errorf("encode tsv header: %w", err)
	}
	for i := range reviews {
		if err := enc.Encode(reviews[i]); err != nil {
			return fmt.Errorf("encode tsv row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush tsv: %w", err)
	}
	return nil
}
