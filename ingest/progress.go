package ingest

// Percentage bands for each pipeline stage. Extraction interpolates
// between its start and end across the file list; the other stages are
// fixed points. The resulting sequence is non-decreasing by construction.
const (
	pctQueued       = 0
	pctExtractStart = 5
	pctExtractEnd   = 60
	pctChunking     = 65
	pctEmbedding    = 75
	pctStoring      = 90
	pctCompleted    = 100
)

// extractionPercent returns the progress value while extracting file
// index (0-based) out of total files.
func extractionPercent(index, total int) int {
	if total <= 0 {
		return pctExtractStart
	}
	if index < 0 {
		index = 0
	}
	if index >= total {
		return pctExtractEnd
	}
	span := pctExtractEnd - pctExtractStart
	return pctExtractStart + span*index/total
}
