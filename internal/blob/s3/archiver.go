package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// multipartThreshold is the payload size above which archives are uploaded
// in parts.
const multipartThreshold = 16 * 1024 * 1024

// OpportunityArchiveStore lists resolved opportunities for archival.
type OpportunityArchiveStore interface {
	ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.ArbOpportunity, error)
}

// VolumeAlertArchiveStore lists volume alerts for archival.
type VolumeAlertArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.VolumeAlert, error)
}

// ArchiveImpl implements domain.Archiver by exporting old records as JSONL.
//
// Rows are copied, not moved: the database keeps them, so a rerun with the
// same cutoff rewrites the same object.
type ArchiveImpl struct {
	writer domain.BlobWriter
	opps   OpportunityArchiveStore
	alerts VolumeAlertArchiveStore
	audit  domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	opps OpportunityArchiveStore,
	alerts VolumeAlertArchiveStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		opps:   opps,
		alerts: alerts,
		audit:  audit,
	}
}

// ArchiveOpportunities exports opportunities resolved before the cutoff to
// archive/opportunities/YYYY-MM.jsonl and returns how many were written.
func (a *ArchiveImpl) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	opps, err := a.opps.ListResolvedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	return archive(ctx, a, "opportunities", before, opps)
}

// ArchiveVolumeAlerts exports alerts raised before the cutoff to
// archive/volume_alerts/YYYY-MM.jsonl and returns how many were written.
func (a *ArchiveImpl) ArchiveVolumeAlerts(ctx context.Context, before time.Time) (int64, error) {
	alerts, err := a.alerts.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive volume alerts query: %w", err)
	}
	return archive(ctx, a, "volume_alerts", before, alerts)
}

func archive[T any](ctx context.Context, a *ArchiveImpl, kind string, before time.Time, records []T) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	path := archivePath(kind, before)
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	count := int64(len(records))
	if err := a.audit.Log(ctx, "archive."+kind, map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive %s audit log: %w", kind, err)
	}
	return count, nil
}

// archivePath partitions archives by the year-month of the cutoff:
//
//	archive/opportunities/2025-01.jsonl
//	archive/volume_alerts/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01"))
}

func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*ArchiveImpl)(nil)
