/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// The sentryfrogg-mcp binary hosts the GitOps control plane as a single
// stdio JSON-RPC server: stdout carries the MCP protocol, stderr carries
// structured logs, and every tool call runs through one Tool Execution
// Envelope regardless of which handler ultimately serves it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/alias"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/artifacts"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/audit"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/capability"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/config"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/detect"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/intent"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/jobs"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/logging"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/mcpserver"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/metrics"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/paths"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/preset"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/profiles"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/project"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/runbook"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/saferunner"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/security"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/state"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/telemetry"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/tools"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolexec"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

var version = "dev"

func main() {
	layout, err := paths.NewLayout()
	if err != nil {
		fmt.Fprintln(os.Stderr, "sentryfrogg-mcp: resolve layout:", err)
		os.Exit(1)
	}
	cfg := config.Load()

	log, syncLog, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sentryfrogg-mcp: init logging:", err)
		os.Exit(1)
	}
	defer syncLog()
	log = log.WithName("sentryfrogg-mcp")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracer, shutdownTracer, err := telemetry.Setup(ctx, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		log.Error(err, "init telemetry")
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Error(err, "shutdown telemetry")
		}
	}()

	app, err := wire(layout, cfg, tracer, log)
	if err != nil {
		log.Error(err, "wire components")
		os.Exit(1)
	}
	defer app.close(log)

	log.Info("starting sentryfrogg-mcp", "version", version, "base_dir", layout.BaseDir)

	if err := app.server.Run(ctx); err != nil {
		log.Error(err, "mcp server exited")
		os.Exit(1)
	}
}

// app holds every long-lived component main needs to flush or close on
// the way out, separate from the ones only the executor needs.
type app struct {
	server   *mcpserver.Server
	auditLog *audit.Log
	jobStore *jobs.Store
}

func (a *app) close(log logr.Logger) {
	if err := a.jobStore.Flush(); err != nil {
		log.Error(err, "flush job store")
	}
	a.auditLog.Close()
}

// stateSnapshot adapts *state.Store to runbook.StateSnapshotter: a
// runbook step template only ever reads the combined (session +
// persistent) view of state, never one scope in isolation.
type stateSnapshot struct{ store *state.Store }

func (s stateSnapshot) Dump() map[string]any { return s.store.Dump(state.ScopeAny) }

func wire(layout *paths.Layout, cfg *config.Config, tracer *telemetry.Provider, log logr.Logger) (*app, error) {
	keyring, err := security.LoadOrCreate(layout.ProfileKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load keyring: %w", err)
	}

	metricsReg := metrics.New()

	auditLog, err := audit.Open(layout.AuditPath)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	artifactStore := artifacts.New(cfg.ContextRepoRoot, cfg.AllowSecretExport)

	vaultTool := tools.NewVaultTool(cfg.VaultAddr, cfg.VaultToken)

	profileStore, err := profiles.Open(layout.ProfilesPath, keyring, vaultTool)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}

	stateStore, err := state.Open(layout.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	projectRegistry, err := project.Open(layout.ProjectsPath)
	if err != nil {
		return nil, fmt.Errorf("open project registry: %w", err)
	}

	detector, err := detect.Open(layout.ContextPath)
	if err != nil {
		return nil, fmt.Errorf("open context detector: %w", err)
	}

	aliasRegistry, err := alias.Open(layout.AliasesPath)
	if err != nil {
		return nil, fmt.Errorf("open alias registry: %w", err)
	}

	presetRegistry, err := preset.Open(layout.PresetsPath)
	if err != nil {
		return nil, fmt.Errorf("open preset registry: %w", err)
	}

	capabilityRegistry, err := capability.Open(layout.CapabilitiesPath)
	if err != nil {
		return nil, fmt.Errorf("open capability registry: %w", err)
	}

	runbookRegistry, err := runbook.Open(layout.RunbooksPath)
	if err != nil {
		return nil, fmt.Errorf("open runbook registry: %w", err)
	}

	jobStore, err := jobs.Open(jobs.Options{Path: layout.JobsPath})
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	repoRunner, err := saferunner.New(saferunner.Options{
		RepoRoot:        cfg.ContextRepoRoot,
		Allowed:         cfg.RepoAllowedCommands,
		MaxCaptureBytes: cfg.RepoExecMaxCaptureBytes,
		MaxInlineBytes:  cfg.RepoExecMaxInlineBytes,
		ToolCallBudgetMs: cfg.ToolCallTimeoutMs,
		Artifacts:       artifactStore,
	})
	if err != nil {
		return nil, fmt.Errorf("init safe runner: %w", err)
	}

	executor := toolexec.New(toolexec.Options{
		Aliases:         aliasRegistry,
		Presets:         presetRegistry,
		State:           stateStore,
		Artifacts:       artifactStore,
		Audit:           auditLog,
		Tracer:          tracer,
		MaxInlineBytes:  cfg.MaxInlineBytes,
		MaxCaptureBytes: cfg.MaxCaptureBytes,
		MaxSpills:       cfg.MaxSpills,
	})

	// The Runbook Engine and Intent Planner both need to call back into
	// the executor (a runbook step IS a tool call), so they're built
	// against it before any handler actually registers — Register only
	// ever populates a map, it never dispatches, so ordering here is
	// safe as long as nothing calls executor.Call before main starts
	// serving below.
	engine := runbook.New(executor, stateSnapshot{store: stateStore})
	planner := intent.New(capabilityRegistry, detector, projectRegistry, runbookRegistry, engine, stateStore, artifactStore, layout.EvidenceDir)

	helpTool := tools.NewHelpTool(executor.Tools, mcpserver.Descriptions, nil, aliasRegistry, capabilityRegistry)

	executor.Register("help", helpTool.HandleHelp)
	executor.Register("legend", helpTool.HandleLegend)
	executor.Register("mcp_context", tools.NewContextTool(detector).Handle)
	executor.Register("mcp_artifacts", tools.NewArtifactsTool(artifactStore).Handle)
	executor.Register("mcp_repo", tools.NewRepoTool(repoRunner, jobStore).Handle)
	executor.Register("mcp_workspace", tools.NewWorkspaceTool(planner).Handle)
	executor.Register("mcp_state", tools.NewStateTool(stateStore).Handle)
	executor.Register("mcp_runbook", tools.NewRunbookTool(runbookRegistry, engine).Handle)
	executor.Register("mcp_alias", tools.NewAliasTool(aliasRegistry).Handle)
	executor.Register("mcp_preset", tools.NewPresetTool(presetRegistry).Handle)
	executor.Register("mcp_audit", tools.NewAuditTool(layout.AuditPath, metricsReg).Handle)
	executor.Register("mcp_capability", tools.NewCapabilityTool(capabilityRegistry).Handle)
	executor.Register("mcp_intent", tools.NewIntentTool(planner).Handle)
	executor.Register("mcp_psql_manager", tools.NewPSQLTool(profileStore).Handle)
	executor.Register("mcp_ssh_manager", tools.NewSSHTool(profileStore).Handle)
	executor.Register("mcp_api_client", tools.NewAPIClientTool().Handle)
	executor.Register("mcp_pipeline", tools.NewPipelineTool(profileStore).Handle)
	executor.Register("mcp_env", tools.NewEnvTool().Handle)
	executor.Register("mcp_vault", vaultTool.Handle)
	executor.Register("mcp_job", tools.NewJobTool(jobStore).Handle)
	executor.Register("mcp_oci_release", tools.NewReleaseTool(profileStore).Handle)
	if cs, dc, kerr := kubernetesClients(); kerr == nil {
		executor.Register("mcp_k8s_verify", tools.NewK8sVerifyTool(cs, dc).Handle)
	} else {
		log.Info("mcp_k8s_verify disabled: no in-cluster or kubeconfig credentials", "reason", kerr.Error())
	}

	for tool, schema := range toolInputSchemas() {
		if err := executor.RegisterSchema(tool, schema); err != nil {
			log.Error(err, "register input schema", "tool", tool)
		}
	}

	server := mcpserver.New("sentryfrogg-mcp", executor, mcpserver.Descriptions)

	return &app{server: server, auditLog: auditLog, jobStore: jobStore}, nil
}

// toolInputSchemas declares the subset of tools whose argument shape is
// worth validating up front, before a handler ever runs: the ones an agent
// is most likely to call with a subtly wrong intent_type or a missing
// required field. Every other registered tool stays schema-free and relies
// on its own requireString/argString checks, same as before this existed.
func toolInputSchemas() map[string]map[string]any {
	return map[string]map[string]any{
		"mcp_workspace": {
			"type":     "object",
			"required": []string{"intent_type"},
			"properties": map[string]any{
				"intent_type": map[string]any{"type": "string"},
				"project":     map[string]any{"type": "string"},
				"target":      map[string]any{"type": "string"},
				"inputs":      map[string]any{"type": "object"},
				"apply":       map[string]any{"type": "boolean"},
			},
		},
		"mcp_intent": {
			"type":     "object",
			"required": []string{"action"},
			"properties": map[string]any{
				"action":      map[string]any{"type": "string"},
				"intent_type": map[string]any{"type": "string"},
			},
		},
	}
}

// kubernetesClients resolves a typed and a dynamic client from whatever
// kubeconfig clientcmd's default loading rules find (KUBECONFIG env var,
// ~/.kube/config, or in-cluster service account token) — the same
// resolution the teacher's own `legator` CLI uses, so mcp_k8s_verify is
// simply absent from the tool catalog rather than hard-failing startup
// when the process isn't running anywhere near a cluster.
func kubernetesClients() (kubernetes.Interface, dynamic.Interface, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	loader := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, nil)
	restCfg, err := loader.ClientConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load kubeconfig: %w", err)
	}
	cs, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("build clientset: %w", err)
	}
	dc, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("build dynamic client: %w", err)
	}
	return cs, dc, nil
}
