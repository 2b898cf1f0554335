// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/model"
)

// SchemaVersion is bumped only for incompatible changes to the persisted
// blob layout; additive fields do not require a bump because encoding/json
// ignores unknown fields and zero-values missing ones, satisfying the
// forward-compatibility requirement of spec.md §4.1.
const SchemaVersion = 1

// docState is the flat, JSON-friendly shape of State. State itself keeps
// its data in maps keyed by structs, which encoding/json cannot serialise
// directly, so Encode/Decode convert to/from this representation.
type docState struct {
	SchemaVersion int            `json:"schema_version"`
	Cursor        *time.Time     `json:"cursor,omitempty"`
	Services      []docService   `json:"services"`
	Traces        []docTrace     `json:"traces"`
}

type docService struct {
	Id                string         `json:"id"`
	ServiceName       string         `json:"service_name"`
	ServiceNamespace  string         `json:"service_namespace"`
	ServiceInstanceId string         `json:"service_instance_id"`
	LastSeen          time.Time      `json:"last_seen"`
	Operations        []docOperation `json:"operations"`
	CallsOut          []string       `json:"calls_out,omitempty"`
}

type docOperation struct {
	Id            string    `json:"id"`
	OperationName string    `json:"operation_name"`
	LastSeen      time.Time `json:"last_seen"`
	Calls         []string  `json:"calls,omitempty"`
}

type docTrace struct {
	TraceId  string    `json:"trace_id"`
	LastSeen time.Time `json:"last_seen"`
	Spans    []docSpan `json:"spans"`
}

type docSpan struct {
	SpanId      string       `json:"span_id"`
	ServiceId   string       `json:"service_id,omitempty"`
	OperationId string       `json:"operation_id,omitempty"`
	ParentOf    []docSpanKey `json:"parent_of,omitempty"`
}

type docSpanKey struct {
	ServiceId   string `json:"service_id"`
	OperationId string `json:"operation_id"`
}

// Encode serialises s into a gzip-compressed, self-describing JSON blob.
func Encode(s *State) ([]byte, error) {
	s.mu.RLock()
	doc := docState{
		SchemaVersion: SchemaVersion,
		Cursor:        s.cursor,
	}
	for _, svc := range s.services {
		ds := docService{
			Id:                string(svc.Id),
			ServiceName:       svc.Key.ServiceName,
			ServiceNamespace:  svc.Key.ServiceNamespace,
			ServiceInstanceId: svc.Key.ServiceInstanceId,
			LastSeen:          svc.LastSeen,
		}
		for callee := range svc.CallsOut {
			ds.CallsOut = append(ds.CallsOut, string(callee))
		}
		for _, op := range svc.Operations {
			do := docOperation{
				Id:            string(op.Id),
				OperationName: string(op.Key),
				LastSeen:      op.LastSeen,
			}
			for callee := range op.Calls {
				do.Calls = append(do.Calls, string(callee))
			}
			ds.Operations = append(ds.Operations, do)
		}
		doc.Services = append(doc.Services, ds)
	}
	for traceId, tr := range s.traces {
		dt := docTrace{
			TraceId:  string(traceId),
			LastSeen: tr.LastSeen,
		}
		for spanId, sp := range tr.Spans {
			dsp := docSpan{SpanId: string(spanId)}
			if sp.Key != nil {
				dsp.ServiceId = string(sp.Key.ServiceId)
				dsp.OperationId = string(sp.Key.OperationId)
			}
			for _, po := range sp.ParentOf {
				dsp.ParentOf = append(dsp.ParentOf, docSpanKey{
					ServiceId:   string(po.ServiceId),
					OperationId: string(po.OperationId),
				})
			}
			dt.Spans = append(dt.Spans, dsp)
		}
		doc.Traces = append(doc.Traces, dt)
	}
	s.mu.RUnlock()

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(raw); err != nil {
		return nil, fmt.Errorf("gzip state: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("gzip state: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reconstructs a State from a blob produced by Encode. Unknown
// fields in the JSON are silently ignored by encoding/json, satisfying the
// forward-compatibility requirement.
func Decode(blob []byte) (*State, error) {
	gr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("open gzip state blob: %w", err)
	}
	defer gr.Close()

	raw, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("read gzip state blob: %w", err)
	}

	var doc docState
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	if doc.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("state blob schema version %d is newer than supported version %d", doc.SchemaVersion, SchemaVersion)
	}

	s := New()
	s.cursor = doc.Cursor
	for _, ds := range doc.Services {
		key := model.ServiceKey{
			ServiceName:       ds.ServiceName,
			ServiceNamespace:  ds.ServiceNamespace,
			ServiceInstanceId: ds.ServiceInstanceId,
		}
		svc := &Service{
			Id:         model.ServiceId(ds.Id),
			Key:        key,
			LastSeen:   ds.LastSeen,
			Operations: make(map[model.OperationKey]*Operation),
			CallsOut:   make(map[model.ServiceId]struct{}),
		}
		for _, callee := range ds.CallsOut {
			svc.CallsOut[model.ServiceId(callee)] = struct{}{}
		}
		for _, do := range ds.Operations {
			op := &Operation{
				Id:       model.OperationId(do.Id),
				Key:      model.OperationKey(do.OperationName),
				LastSeen: do.LastSeen,
				Calls:    make(map[model.OperationId]struct{}),
			}
			for _, callee := range do.Calls {
				op.Calls[model.OperationId(callee)] = struct{}{}
			}
			svc.Operations[op.Key] = op
			s.operationsById[op.Id] = op
		}
		s.services[key] = svc
		s.servicesById[svc.Id] = svc
	}
	for _, dt := range doc.Traces {
		tr := &TraceInfo{
			LastSeen: dt.LastSeen,
			Spans:    make(map[model.SpanId]*SpanInfo),
		}
		for _, dsp := range dt.Spans {
			sp := &SpanInfo{}
			if dsp.ServiceId != "" || dsp.OperationId != "" {
				sp.Key = &SpanKey{
					ServiceId:   model.ServiceId(dsp.ServiceId),
					OperationId: model.OperationId(dsp.OperationId),
				}
			}
			for _, po := range dsp.ParentOf {
				sp.ParentOf = append(sp.ParentOf, SpanKey{
					ServiceId:   model.ServiceId(po.ServiceId),
					OperationId: model.OperationId(po.OperationId),
				})
			}
			tr.Spans[model.SpanId(dsp.SpanId)] = sp
		}
		s.traces[model.TraceId(dt.TraceId)] = tr
	}
	return s, nil
}
