/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
	"sigs.k8s.io/yaml"

	goyaml "gopkg.in/yaml.v3"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/profiles"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

const releaseArtifactType = "application/vnd.sentryfrogg.release.v1"
const releaseMediaTypeConfig = "application/vnd.sentryfrogg.release.config.v1+json"
const releaseMediaTypeManifests = "application/vnd.sentryfrogg.release.manifests.v1+tar"

// ReleaseTool backs gitops.release: it pushes a release bundle (rendered
// manifests plus a small metadata blob) to an OCI registry as a tagged
// artifact, the same shape oras-go uses for any content-addressed push —
// just with the release's own config/layer media types instead of an
// image's.
type ReleaseTool struct {
	profiles *profiles.Store
}

// NewReleaseTool constructs the mcp_oci_release handler.
func NewReleaseTool(store *profiles.Store) *ReleaseTool {
	return &ReleaseTool{profiles: store}
}

// Handle implements toolexec.Handler.
func (t *ReleaseTool) Handle(ctx context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "", "push":
		return t.push(ctx, args)
	default:
		return nil, unknownAction("mcp_oci_release", action)
	}
}

func (t *ReleaseTool) push(ctx context.Context, args map[string]any) (any, error) {
	if !argBool(args, "apply") {
		return nil, toolerr.New(toolerr.KindDenied, toolerr.CodeApplyRequired, "push requires apply=true")
	}
	registryProfile, err := requireString(args, "registry_profile")
	if err != nil {
		return nil, err
	}
	repoPath, err := requireString(args, "repo")
	if err != nil {
		return nil, err
	}
	manifestsB64, err := requireString(args, "manifests_base64")
	if err != nil {
		return nil, err
	}
	tag := argString(args, "tag")
	if tag == "" {
		tag = "latest"
	}

	manifests, err := base64.StdEncoding.DecodeString(manifestsB64)
	if err != nil {
		return nil, toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "manifests_base64: %v", err)
	}

	manifestSummaries := summarizeManifests(manifests)

	metadata, err := json.Marshal(map[string]any{
		"project":          argString(args, "project"),
		"target":           argString(args, "target"),
		"trace_id":         argString(args, "trace_id"),
		"manifest_count":   len(manifestSummaries),
		"manifest_summary": manifestSummaries,
	})
	if err != nil {
		return nil, err
	}

	cred, err := t.profiles.Get(registryProfile, "oci_registry")
	if err != nil {
		return nil, err
	}
	registry, _ := cred.Data["registry"].(string)

	store := memory.New()

	configDesc, err := oras.PushBytes(ctx, store, releaseMediaTypeConfig, metadata)
	if err != nil {
		return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeReleasePushFailed, "push config: %v", err)
	}
	layerDesc, err := oras.PushBytes(ctx, store, releaseMediaTypeManifests, manifests)
	if err != nil {
		return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeReleasePushFailed, "push manifests layer: %v", err)
	}

	manifestDesc, err := oras.PackManifest(ctx, store, oras.PackManifestVersion1_1, releaseArtifactType, oras.PackManifestOptions{
		ConfigDescriptor: &configDesc,
		Layers:           []ocispec.Descriptor{layerDesc},
	})
	if err != nil {
		return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeReleasePushFailed, "pack manifest: %v", err)
	}
	if err := store.Tag(ctx, manifestDesc, tag); err != nil {
		return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeReleasePushFailed, "tag manifest: %v", err)
	}

	repo, err := releaseRepository(registry, repoPath, cred)
	if err != nil {
		return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeReleasePushFailed, "connect registry: %v", err)
	}

	copyDesc, err := oras.Copy(ctx, store, tag, repo, tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeReleasePushFailed, "push to registry: %v", err)
	}

	return map[string]any{
		"ref":    fmt.Sprintf("%s/%s:%s", registry, repoPath, tag),
		"digest": copyDesc.Digest.String(),
		"size":   copyDesc.Size,
	}, nil
}

// manifestRef is the apiVersion/kind/name/namespace a release's config blob
// records per rendered document, so a human or an agent reading the
// pushed artifact's config layer knows what's in the manifests layer
// without re-parsing the raw YAML stream.
type manifestRef struct {
	APIVersion string `json:"apiVersion,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Name       string `json:"name,omitempty"`
	Namespace  string `json:"namespace,omitempty"`
}

// summarizeManifests splits a helm-template/kustomize-build style
// multi-document YAML stream and converts each document to JSON to pull
// out its identity fields. A document that fails to parse (e.g. a
// Helm NOTES.txt comment block slipped into the stream) is skipped
// rather than failing the whole push.
func summarizeManifests(manifests []byte) []manifestRef {
	var refs []manifestRef
	dec := goyaml.NewDecoder(bytes.NewReader(manifests))
	for {
		var doc any
		if err := dec.Decode(&doc); err != nil {
			if err == io.EOF {
				break
			}
			continue
		}
		if doc == nil {
			continue
		}
		yamlBytes, err := goyaml.Marshal(doc)
		if err != nil {
			continue
		}
		jsonBytes, err := yaml.YAMLToJSON(yamlBytes)
		if err != nil {
			continue
		}
		var ref struct {
			manifestRef
			Metadata struct {
				Name      string `json:"name"`
				Namespace string `json:"namespace"`
			} `json:"metadata"`
		}
		if err := json.Unmarshal(jsonBytes, &ref); err != nil {
			continue
		}
		if ref.APIVersion == "" && ref.Kind == "" {
			continue
		}
		ref.manifestRef.Name = ref.Metadata.Name
		ref.manifestRef.Namespace = ref.Metadata.Namespace
		refs = append(refs, ref.manifestRef)
	}
	return refs
}

func releaseRepository(registry, repoPath string, cred *profiles.Resolved) (*remote.Repository, error) {
	repo, err := remote.NewRepository(registry + "/" + repoPath)
	if err != nil {
		return nil, err
	}
	if plain, ok := cred.Data["plain_http"].(bool); ok {
		repo.PlainHTTP = plain
	}
	if username, _ := cred.Data["username"].(string); username != "" {
		repo.Client = &auth.Client{
			Client: retry.DefaultClient,
			Credential: auth.StaticCredential(registry, auth.Credential{
				Username: username,
				Password: cred.Secrets["password"],
			}),
		}
	}
	return repo, nil
}
