// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olivere/elastic/v7"
	"go.uber.org/zap"

	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/ingest"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/model"
)

// semconv resource attribute keys that the OTel-to-Jaeger translator
// (go.opentelemetry.io/collector/contrib pkg/translator/jaeger, part of
// the broader jaeger dependency graph) stores as process tags.
const (
	tagServiceNamespace  = "service.namespace"
	tagServiceInstanceID = "service.instance.id"
)

// esDocument is the subset of the Jaeger span document shape
// (plugin/storage/es/spanstore/dbmodel.Span in the teacher) this reader
// needs.
type esDocument struct {
	TraceID         string        `json:"traceID"`
	SpanID          string        `json:"spanID"`
	OperationName   string        `json:"operationName"`
	StartTimeMillis int64         `json:"startTimeMillis"`
	ParentSpanID    string        `json:"parentSpanID,omitempty"`
	Process         esProcess     `json:"process"`
	References      []esReference `json:"references,omitempty"`
}

type esProcess struct {
	ServiceName string `json:"serviceName"`
	Tags        []esTag `json:"tags,omitempty"`
}

type esTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (p esProcess) tag(key string) string {
	for _, t := range p.Tags {
		if t.Key == key {
			return t.Value
		}
	}
	return ""
}

type esReference struct {
	TraceID string `json:"traceID"`
	SpanID  string `json:"spanID"`
	RefType string `json:"refType"`
}

// Source implements ingest.SpanSource by querying daily
// "<prefix>-jaeger-span-yyyy-MM-dd" indices ("jaeger-span-yyyy-MM-dd" when
// the prefix is empty).
type Source struct {
	client      *elastic.Client
	indexPrefix string
	maxDocCount int
	logger      *zap.Logger
}

func NewSource(client *elastic.Client, cfg Config, logger *zap.Logger) *Source {
	maxDocCount := cfg.MaxDocCount
	if maxDocCount <= 0 {
		maxDocCount = 1000
	}
	prefix := cfg.IndexPrefix
	if prefix != "" {
		prefix += "-"
	}
	return &Source{
		client:      client,
		indexPrefix: prefix + spanIndexBaseName,
		maxDocCount: maxDocCount,
		logger:      logger,
	}
}

var _ ingest.SpanSource = (*Source)(nil)

// Query implements ingest.SpanSource. pageCursor, when non-empty, is a
// "<startTimeMillis>|<spanID>" search_after tiebreaker produced by a
// previous call.
func (s *Source) Query(ctx context.Context, startInclusive time.Time, pageCursor string) (ingest.Page, error) {
	indices := indicesForRange(s.indexPrefix, startInclusive, time.Now())

	query := elastic.NewRangeQuery("startTimeMillis").Gte(startInclusive.UnixMilli())
	source := elastic.NewSearchSource().
		Query(query).
		Size(s.maxDocCount).
		Sort("startTimeMillis", true).
		Sort("spanID", true)

	if pageCursor != "" {
		millis, spanID, err := decodeCursor(pageCursor)
		if err != nil {
			return ingest.Page{}, fmt.Errorf("decode page cursor %q: %w", pageCursor, err)
		}
		source = source.SearchAfter(millis, spanID)
	}

	result, err := s.client.Search(indices...).
		IgnoreUnavailable(true).
		SearchSource(source).
		Do(ctx)
	if err != nil {
		return ingest.Page{}, fmt.Errorf("search spans: %w", err)
	}

	page := ingest.Page{Spans: make([]model.Span, 0, len(result.Hits.Hits))}
	var lastMillis int64
	var lastSpanID string
	for _, hit := range result.Hits.Hits {
		var doc esDocument
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			s.logger.Warn("skipping span document that could not be decoded",
				zap.String("doc_id", hit.Id), zap.Error(err))
			continue
		}
		page.Spans = append(page.Spans, convertDoc(doc))
		lastMillis = doc.StartTimeMillis
		lastSpanID = doc.SpanID
	}

	if len(result.Hits.Hits) == s.maxDocCount {
		page.NextPageCursor = encodeCursor(lastMillis, lastSpanID)
	}
	return page, nil
}

func convertDoc(doc esDocument) model.Span {
	span := model.Span{
		TraceId:           model.TraceId(doc.TraceID),
		SpanId:            model.SpanId(doc.SpanID),
		StartTime:         time.UnixMilli(doc.StartTimeMillis).UTC(),
		ParentSpanId:      model.SpanId(doc.ParentSpanID),
		ServiceName:       doc.Process.ServiceName,
		ServiceNamespace:  doc.Process.tag(tagServiceNamespace),
		ServiceInstanceId: doc.Process.tag(tagServiceInstanceID),
		OperationName:     doc.OperationName,
	}
	for _, ref := range doc.References {
		if ref.RefType != "" && ref.RefType != "CHILD_OF" {
			continue
		}
		span.References = append(span.References, model.SpanRef{
			TraceId: model.TraceId(ref.TraceID),
			SpanId:  model.SpanId(ref.SpanID),
		})
	}
	// A parentSpanID with no explicit CHILD_OF reference (the legacy
	// Jaeger thrift shape) is itself a ChildOf reference within the same
	// trace.
	if doc.ParentSpanID != "" && !hasReferenceTo(span.References, model.TraceId(doc.TraceID), model.SpanId(doc.ParentSpanID)) {
		span.References = append(span.References, model.SpanRef{
			TraceId: model.TraceId(doc.TraceID),
			SpanId:  model.SpanId(doc.ParentSpanID),
		})
	}
	return span
}

func hasReferenceTo(refs []model.SpanRef, traceId model.TraceId, spanId model.SpanId) bool {
	for _, r := range refs {
		if r.TraceId == traceId && r.SpanId == spanId {
			return true
		}
	}
	return false
}

func encodeCursor(millis int64, spanID string) string {
	return fmt.Sprintf("%d|%s", millis, spanID)
}

func decodeCursor(cursor string) (int64, string, error) {
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("malformed cursor")
	}
	millis, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", err
	}
	return millis, parts[1], nil
}

// indicesForRange returns the daily indices covering [start, end].
func indicesForRange(prefix string, start, end time.Time) []string {
	start = start.UTC()
	end = end.UTC()
	// Step whole days from midnight of start's day so end's day is included
	// even when end's time of day is earlier than start's.
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	var indices []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		indices = append(indices, prefix+d.Format(indexDateLayout))
	}
	if len(indices) == 0 {
		indices = append(indices, prefix+end.Format(indexDateLayout))
	}
	return indices
}
