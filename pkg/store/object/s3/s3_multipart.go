package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/linegrid/linegrid/internal/telemetry"
	"github.com/linegrid/linegrid/pkg/store/object"
)

// PutStream uploads body (of unknown total length) under key using S3's
// multipart protocol: parts of at least partSize bytes, bounded concurrency
// so memory use is O(partSize * parallel) regardless of payload size, and
// all uploaded parts aborted if any part fails.
func (s *Store) PutStream(ctx context.Context, key string, body io.Reader, contentType string) (object.PutResult, error) {
	ctx, span := telemetry.StartStoreSpan(ctx, "put_stream", key, telemetry.StoreName("s3"), telemetry.StoreType("object"))
	defer span.End()

	createOut, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return object.PutResult{}, fmt.Errorf("failed to create multipart upload: %w", err)
	}
	uploadID := *createOut.UploadId

	if s.metrics != nil {
		s.metrics.RecordActiveUpload(1)
	}
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordActiveUpload(-1)
		}
	}()

	sem := make(chan struct{}, s.parallel)
	var wg sync.WaitGroup
	resultsMu := sync.Mutex{}
	var results []types.CompletedPart
	var totalBytes int64
	var firstErr error
	var firstErrMu sync.Mutex

	setErr := func(err error) {
		firstErrMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		firstErrMu.Unlock()
	}
	hasErr := func() bool {
		firstErrMu.Lock()
		defer firstErrMu.Unlock()
		return firstErr != nil
	}

	partNumber := int32(0)
	for {
		if hasErr() {
			break
		}

		buf := make([]byte, s.partSize)
		n, readErr := io.ReadFull(body, buf)
		if n == 0 && readErr == io.EOF {
			break
		}
		if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
			setErr(fmt.Errorf("failed to read upload body: %w", readErr))
			break
		}

		partNumber++
		totalBytes += int64(n)
		data := buf[:n]
		pn := partNumber

		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
				Bucket:     aws.String(s.bucket),
				Key:        aws.String(key),
				UploadId:   aws.String(uploadID),
				PartNumber: aws.Int32(pn),
				Body:       bytes.NewReader(data),
			})
			if s.metrics != nil {
				s.metrics.ObserveOperation("UploadPart", time.Since(start), err)
			}
			if err != nil {
				setErr(fmt.Errorf("failed to upload part %d: %w", pn, err))
				return
			}

			resultsMu.Lock()
			results = append(results, types.CompletedPart{
				ETag:       out.ETag,
				PartNumber: aws.Int32(pn),
			})
			resultsMu.Unlock()
		}()

		// Last (short) read: stop after dispatching this part.
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
	}

	wg.Wait()

	if hasErr() || partNumber == 0 {
		_, abortErr := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(s.bucket),
			Key:      aws.String(key),
			UploadId: aws.String(uploadID),
		})
		if firstErr == nil {
			// partNumber == 0: an empty body. S3 multipart uploads require at
			// least one part, so fall back to a trivial single-shot PutObject.
			return s.putEmptyObject(ctx, key, contentType, abortErr)
		}
		telemetry.RecordError(ctx, firstErr)
		return object.PutResult{}, firstErr
	}

	completedParts := results
	sort.Slice(completedParts, func(i, j int) bool {
		return *completedParts[i].PartNumber < *completedParts[j].PartNumber
	})

	completeOut, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completedParts,
		},
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return object.PutResult{}, fmt.Errorf("failed to complete multipart upload: %w", err)
	}

	etag := ""
	if completeOut.ETag != nil {
		etag = *completeOut.ETag
	}

	return object.PutResult{Key: key, ETag: etag, Size: totalBytes}, nil
}

// putEmptyObject handles the zero-byte-body edge case: S3 multipart uploads
// require at least one part, so an empty file is written with a plain
// PutObject instead. abortErr from the now-unnecessary multipart session is
// ignored — AbortMultipartUpload on a no-parts upload may already report it
// gone.
func (s *Store) putEmptyObject(ctx context.Context, key, contentType string, abortErr error) (object.PutResult, error) {
	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(nil),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return object.PutResult{}, fmt.Errorf("failed to put empty object: %w", err)
	}
	etag := ""
	if out.ETag != nil {
		etag = *out.ETag
	}
	return object.PutResult{Key: key, ETag: etag, Size: 0}, nil
}
