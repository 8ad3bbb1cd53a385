package parser

import (
	"context"
	"encoding/csv"
	"io"
	"runtime"
	"sync"
)

// StreamingParser parses large CSV exports without holding the whole file's
// rows in memory, fanning record parsing out to a worker pool.
type StreamingParser struct {
	config      ParserConfig
	workerCount int
}

// StreamResult is sent through the channel for each row.
type StreamResult struct {
	Transaction *ParsedTransaction
	Error       *ParseError
	RowNum      int
}

// StreamStats summarizes what the reader goroutine saw. Parsed and skipped
// counts come from the results the consumer drains.
type StreamStats struct {
	TotalRows  int64
	ReadErrors int64
}

// NewStreamingParser creates a streaming parser. workers <= 0 uses one
// worker per CPU.
func NewStreamingParser(config ParserConfig, workers int) *StreamingParser {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &StreamingParser{
		config:      config,
		workerCount: workers,
	}
}

// ParseStream reads CSV data and streams per-row results through a channel.
// Both channels close when parsing completes or the context is cancelled;
// the stats channel carries a single value on completion.
func (p *StreamingParser) ParseStream(ctx context.Context, reader io.Reader) (<-chan StreamResult, <-chan StreamStats) {
	results := make(chan StreamResult, p.workerCount*100)
	statsChan := make(chan StreamStats, 1)

	go p.parseAsync(ctx, reader, results, statsChan)

	return results, statsChan
}

func (p *StreamingParser) parseAsync(ctx context.Context, reader io.Reader, results chan<- StreamResult, statsChan chan<- StreamStats) {
	defer close(statsChan)

	stats := StreamStats{}

	if p.config.SkipLines > 0 {
		reader = skipLines(reader, p.config.SkipLines)
	}

	csvReader := csv.NewReader(reader)
	if p.config.Delimiter != 0 {
		csvReader.Comma = p.config.Delimiter
	}
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1
	csvReader.ReuseRecord = true

	if _, err := csvReader.Read(); err != nil {
		results <- StreamResult{
			Error: &ParseError{
				Row:     1,
				Message: "failed to read header: " + err.Error(),
			},
		}
		close(results)
		stats.ReadErrors++
		statsChan <- stats
		return
	}

	jobs := make(chan rowJob, p.workerCount*10)
	var wg sync.WaitGroup

	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go p.worker(ctx, jobs, results, &wg)
	}

	rowNum := p.config.SkipLines + 2 // 1-indexed plus header
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			select {
			case results <- StreamResult{
				RowNum: rowNum,
				Error: &ParseError{
					Row:     rowNum,
					Message: err.Error(),
				},
			}:
			case <-ctx.Done():
				break loop
			}
			stats.ReadErrors++
			rowNum++
			continue
		}

		stats.TotalRows++

		// ReuseRecord is on, workers need their own copy
		recordCopy := make([]string, len(record))
		copy(recordCopy, record)

		select {
		case jobs <- rowJob{record: recordCopy, rowNum: rowNum}:
		case <-ctx.Done():
			break loop
		}
		rowNum++
	}

	close(jobs)
	wg.Wait()
	close(results)

	statsChan <- stats
}

type rowJob struct {
	record []string
	rowNum int
}

func (p *StreamingParser) worker(ctx context.Context, jobs <-chan rowJob, results chan<- StreamResult, wg *sync.WaitGroup) {
	defer wg.Done()

	localParser := NewParser(p.config)

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		tx, err := localParser.processRecord(job.record, job.rowNum)
		select {
		case results <- StreamResult{Transaction: tx, Error: err, RowNum: job.rowNum}:
		case <-ctx.Done():
			return
		}
	}
}

// ChunkReader wraps an io.Reader and counts bytes as they go through, so
// the import service can report how much of an upload it processed.
type ChunkReader struct {
	reader     io.Reader
	bytesRead  int64
	totalSize  int64
	onProgress func(bytesRead, totalSize int64)
}

// NewChunkReader creates a reader that tracks progress. onProgress may be
// nil.
func NewChunkReader(reader io.Reader, totalSize int64, onProgress func(bytesRead, totalSize int64)) *ChunkReader {
	return &ChunkReader{
		reader:     reader,
		totalSize:  totalSize,
		onProgress: onProgress,
	}
}

func (cr *ChunkReader) Read(p []byte) (int, error) {
	n, err := cr.reader.Read(p)
	cr.bytesRead += int64(n)
	if cr.onProgress != nil {
		cr.onProgress(cr.bytesRead, cr.totalSize)
	}
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (cr *ChunkReader) BytesRead() int64 {
	return cr.bytesRead
}
