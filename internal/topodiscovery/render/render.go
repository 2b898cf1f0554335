// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

// Package render implements the Topology Renderer of spec.md §4.5: a pure
// function turning the current State into an items-and-relations snapshot
// suitable for the GraphSink. It never mutates State.
package render

import (
	"context"
	"sort"

	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/state"
)

// ItemType and RelationType are the two node kinds and two edge kinds the
// renderer produces.
const (
	ItemTypeService   = "service"
	ItemTypeOperation = "operation"

	RelationTypeCalls = "calls"
	RelationTypeHosts = "hosts"
)

// Item is one node of the rendered topology.
type Item struct {
	Type       string         `json:"type"`
	Id         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
}

// Relation is one directed edge of the rendered topology.
type Relation struct {
	Type string `json:"type"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Topology is the full snapshot submitted to the GraphSink.
type Topology struct {
	Items     []Item     `json:"items"`
	Relations []Relation `json:"relations"`
}

// GraphSink is the external collaborator of spec.md §6: it accepts the
// full snapshot and acknowledges success or failure. Re-submission of the
// same snapshot must be safe.
type GraphSink interface {
	Submit(ctx context.Context, t Topology) error
}

// Render snapshots s into a Topology. Services and operations are emitted
// in id order so the output is deterministic for a given State, which
// keeps idempotent re-submission (spec.md §6) meaningful to compare in
// tests even though map iteration order is not.
func Render(s *state.State) Topology {
	var t Topology

	type svcEntry struct {
		svc *state.Service
	}
	var services []svcEntry
	s.ForEachService(func(svc *state.Service) {
		services = append(services, svcEntry{svc: svc})
	})
	sort.Slice(services, func(i, j int) bool { return services[i].svc.Id < services[j].svc.Id })

	for _, e := range services {
		svc := e.svc
		t.Items = append(t.Items, Item{
			Type: ItemTypeService,
			Id:   string(svc.Id),
			Attributes: map[string]any{
				"service_name":        svc.Key.ServiceName,
				"service_namespace":   svc.Key.ServiceNamespace,
				"service_instance_id": svc.Key.ServiceInstanceId,
				"last_seen":           svc.LastSeen,
			},
		})

		var ops []*state.Operation
		for _, op := range svc.Operations {
			ops = append(ops, op)
		}
		sort.Slice(ops, func(i, j int) bool { return ops[i].Id < ops[j].Id })

		for _, op := range ops {
			t.Items = append(t.Items, Item{
				Type: ItemTypeOperation,
				Id:   string(op.Id),
				Attributes: map[string]any{
					"operation_name": string(op.Key),
					"last_seen":      op.LastSeen,
					"service_id":     string(svc.Id),
				},
			})
			t.Relations = append(t.Relations, Relation{
				Type: RelationTypeHosts,
				From: string(svc.Id),
				To:   string(op.Id),
			})

			var callees []string
			for calleeId := range op.Calls {
				callees = append(callees, string(calleeId))
			}
			sort.Strings(callees)
			for _, calleeId := range callees {
				t.Relations = append(t.Relations, Relation{
					Type: RelationTypeCalls,
					From: string(op.Id),
					To:   calleeId,
				})
			}
		}

		// Service-level edges are a denormalization of the operation-level
		// ones; Open Question (b) of spec.md §9 resolves to emitting both.
		var svcCallees []string
		for calleeId := range svc.CallsOut {
			svcCallees = append(svcCallees, string(calleeId))
		}
		sort.Strings(svcCallees)
		for _, calleeId := range svcCallees {
			t.Relations = append(t.Relations, Relation{
				Type: RelationTypeCalls,
				From: string(svc.Id),
				To:   calleeId,
			})
		}
	}

	return t
}
