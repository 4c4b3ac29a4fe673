package reconcile

import (
	"context"
	"fmt"

	"github.com/oriys/gatewayctl/internal/domain"
	"github.com/oriys/gatewayctl/internal/remote"
)

// PathTree resolves slash-delimited paths to resource ids of one REST
// gateway. Existing resources are listed once; nodes created afterwards
// are added to the same cache so later routes reuse them.
type PathTree struct {
	api   remote.RestAPIs
	apiID string
	root  string
	nodes map[string]remote.Resource // by cumulative path
}

// LoadPathTree lists the gateway's resources and locates the root node.
func LoadPathTree(ctx context.Context, api remote.RestAPIs, apiID string) (*PathTree, error) {
	t := &PathTree{api: api, apiID: apiID}
	if err := t.load(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *PathTree) load(ctx context.Context) error {
	resources, err := t.api.ListResources(ctx, t.apiID)
	if err != nil {
		return fmt.Errorf("list resources: %w", err)
	}
	t.nodes = make(map[string]remote.Resource, len(resources))
	for _, r := range resources {
		t.nodes[r.Path] = r
		if r.Path == "/" {
			t.root = r.ID
		}
	}
	if t.root == "" {
		return remote.NewError("ListResources", remote.KindNotFound, "gateway %s has no root resource", t.apiID)
	}
	return nil
}

// RootID returns the id of the "/" resource.
func (t *PathTree) RootID() string {
	return t.root
}

// Resolve returns the id of the node at path, creating only the missing
// suffix of segments. The outcome is Created when at least one segment
// was created. The empty path resolves to the root without a remote call.
func (t *PathTree) Resolve(ctx context.Context, path string) (Outcome, error) {
	segments, err := domain.SplitPath(path)
	if err != nil {
		return Outcome{}, err
	}
	if len(segments) == 0 {
		return Reused(t.root), nil
	}

	parent := t.root
	created := false
	for i, seg := range segments {
		cumulative := domain.CanonicalPath(segments[:i+1])
		if node, ok := t.nodes[cumulative]; ok {
			parent = node.ID
			continue
		}

		node, err := t.api.CreateResource(ctx, t.apiID, parent, seg)
		if remote.IsConflict(err) {
			// created since the listing; relist and adopt
			if err := t.load(ctx); err != nil {
				return Outcome{}, err
			}
			existing, ok := t.nodes[cumulative]
			if !ok {
				return Outcome{}, fmt.Errorf("create resource %s: %w", cumulative, err)
			}
			parent = existing.ID
			continue
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("create resource %s: %w", cumulative, err)
		}
		if node.Path == "" {
			node.Path = cumulative
		}
		t.nodes[cumulative] = node
		parent = node.ID
		created = true
	}

	if created {
		return Created(parent), nil
	}
	return Reused(parent), nil
}
