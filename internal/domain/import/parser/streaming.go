package parser

import (
	"bytes"
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// File is one uploaded statement.
type File struct {
	Name string
	Data []byte
}

// FileResult pairs a file with its parse outcome. Err is set only when the
// file could not be read at all (for example a corrupt workbook).
type FileResult struct {
	Name   string
	Result *ParseResult
	Err    error
}

// ParseFile dispatches on the file format: XLSX workbooks by signature or
// extension, everything else as delimited text.
func (e *Engine) ParseFile(f File) (*ParseResult, error) {
	if IsWorkbook(f.Name, f.Data) {
		return e.ParseXLSX(bytes.NewReader(f.Data))
	}
	return e.ParseBytes(f.Data), nil
}

// IsWorkbook reports whether a file is an Office Open XML workbook.
func IsWorkbook(name string, data []byte) bool {
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".xlsx" || ext == ".xlsm"
}

// ParseFiles parses files concurrently with a bounded worker pool. Results
// keep the input order. Cancellation applies between files: a file already
// being parsed runs to completion, files not yet started are abandoned.
func (e *Engine) ParseFiles(ctx context.Context, files []File, workers int) ([]FileResult, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(files))

	results := make([]FileResult, len(files))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := e.ParseFile(files[i])
				results[i] = FileResult{Name: files[i].Name, Result: res, Err: err}
			}
		}()
	}

	var ctxErr error
dispatch:
	for i := range files {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if ctxErr != nil {
		return nil, ctxErr
	}
	return results, nil
}
