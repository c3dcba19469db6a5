/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package tools

import (
	"context"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

// K8sVerifyTool backs gitops.verify: a read-only rollout-health check
// against a live cluster, never a mutation. It intentionally talks to
// the API server directly through clientset/dynamic client rather than
// through a controller-runtime manager, since this process watches
// nothing and reconciles nothing — it only needs a point-in-time read.
type K8sVerifyTool struct {
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
}

// NewK8sVerifyTool constructs the mcp_k8s_verify handler.
func NewK8sVerifyTool(cs kubernetes.Interface, dc dynamic.Interface) *K8sVerifyTool {
	return &K8sVerifyTool{clientset: cs, dynamic: dc}
}

// Handle implements toolexec.Handler.
func (t *K8sVerifyTool) Handle(ctx context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "", "rollout":
		return t.verifyRollout(ctx, args)
	case "resource":
		return t.getResource(ctx, args)
	default:
		return nil, unknownAction("mcp_k8s_verify", action)
	}
}

func (t *K8sVerifyTool) verifyRollout(ctx context.Context, args map[string]any) (any, error) {
	namespace, err := requireString(args, "namespace")
	if err != nil {
		return nil, err
	}
	name, err := requireString(args, "name")
	if err != nil {
		return nil, err
	}
	kind := strings.ToLower(argString(args, "kind"))
	if kind == "" {
		kind = "deployment"
	}

	switch kind {
	case "deployment", "deploy":
		dep, err := t.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeK8sVerifyFailed, "get deployment %s/%s: %v", namespace, name, err)
		}
		return deploymentHealth(dep), nil
	case "statefulset", "sts":
		sts, err := t.clientset.AppsV1().StatefulSets(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeK8sVerifyFailed, "get statefulset %s/%s: %v", namespace, name, err)
		}
		return map[string]any{
			"healthy":         sts.Status.ReadyReplicas == sts.Status.Replicas && sts.Status.Replicas > 0,
			"ready_replicas":  sts.Status.ReadyReplicas,
			"total_replicas":  sts.Status.Replicas,
			"current_version": sts.Status.CurrentRevision,
		}, nil
	default:
		return nil, toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "unsupported rollout kind %q", kind)
	}
}

func deploymentHealth(dep *appsv1.Deployment) map[string]any {
	healthy := dep.Status.UpdatedReplicas == dep.Status.Replicas &&
		dep.Status.AvailableReplicas == dep.Status.Replicas &&
		dep.Status.Replicas > 0
	var progressing, available string
	for _, cond := range dep.Status.Conditions {
		switch cond.Type {
		case appsv1.DeploymentProgressing:
			progressing = string(cond.Status)
		case appsv1.DeploymentAvailable:
			available = string(cond.Status)
		}
	}
	return map[string]any{
		"healthy":            healthy,
		"updated_replicas":   dep.Status.UpdatedReplicas,
		"available_replicas": dep.Status.AvailableReplicas,
		"total_replicas":     dep.Status.Replicas,
		"progressing":        progressing,
		"available":          available,
	}
}

func (t *K8sVerifyTool) getResource(ctx context.Context, args map[string]any) (any, error) {
	resource, err := requireString(args, "resource")
	if err != nil {
		return nil, err
	}
	name, err := requireString(args, "name")
	if err != nil {
		return nil, err
	}
	namespace := argString(args, "namespace")

	gvr := verifyResourceToGVR(resource)
	obj, err := t.dynamic.Resource(gvr).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeK8sVerifyFailed, "get %s/%s in %s: %v", resource, name, namespace, err)
	}
	return obj.Object, nil
}

func verifyResourceToGVR(resource string) schema.GroupVersionResource {
	switch strings.ToLower(resource) {
	case "deployments", "deployment", "deploy":
		return schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "deployments"}
	case "statefulsets", "statefulset", "sts":
		return schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "statefulsets"}
	case "pods", "pod", "po":
		return schema.GroupVersionResource{Version: "v1", Resource: "pods"}
	case "services", "service", "svc":
		return schema.GroupVersionResource{Version: "v1", Resource: "services"}
	case "ingresses", "ingress", "ing":
		return schema.GroupVersionResource{Group: "networking.k8s.io", Version: "v1", Resource: "ingresses"}
	default:
		return schema.GroupVersionResource{Version: "v1", Resource: strings.ToLower(resource)}
	}
}
