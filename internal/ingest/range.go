package ingest

import "fmt"

// BlockRange is an inclusive span of blocks fetched in one log query.
type BlockRange struct {
	From uint64
	To   uint64
}

// SplitRange cuts [from, to] into consecutive spans of at most batchSize
// blocks, so no single log query exceeds the provider's range cap.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block %d is before from block %d", to, from)
	}

	spans := make([]BlockRange, 0, (to-from)/batchSize+1)
	start := from
	for {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		spans = append(spans, BlockRange{From: start, To: end})
		if end == to {
			return spans, nil
		}
		start = end + 1
	}
}
