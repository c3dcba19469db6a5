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
	"fmt"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/profiles"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

const (
	maxSSHOutput      = 8192
	defaultSSHTimeout = 30 * time.Second
)

// sshProtectedPaths may never be touched by a write operation run over SSH.
var sshProtectedPaths = []string{
	"/etc/shadow", "/etc/gshadow",
	"/boot/", "/dev/",
	"~/.ssh/id_*", "~/.ssh/authorized_keys",
	"/root/.ssh/",
}

// sshBlockedCommands are rejected outright, regardless of apply.
var sshBlockedCommands = []string{
	"dd", "mkfs", "fdisk", "parted", "wipefs",
	"psql", "mysql", "mongo", "mongosh", "redis-cli",
	"shred", "srm",
}

// SSHTool runs commands on remote hosts over SSH, credentialed through
// named profiles rather than a static host table: an agent names a
// profile, never a host or a key directly.
type SSHTool struct {
	profiles *profiles.Store

	mu          sync.Mutex
	connections map[string]*ssh.Client
}

// NewSSHTool constructs the mcp_ssh_manager handler.
func NewSSHTool(store *profiles.Store) *SSHTool {
	return &SSHTool{profiles: store, connections: map[string]*ssh.Client{}}
}

// Handle implements toolexec.Handler.
func (t *SSHTool) Handle(ctx context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "", "exec":
		return t.exec(ctx, args)
	case "close":
		profile, err := requireString(args, "profile")
		if err != nil {
			return nil, err
		}
		t.closeConnection(profile)
		return map[string]any{"ok": true}, nil
	default:
		return nil, unknownAction("mcp_ssh_manager", action)
	}
}

func (t *SSHTool) exec(ctx context.Context, args map[string]any) (any, error) {
	profileName, err := requireString(args, "profile")
	if err != nil {
		return nil, err
	}
	cmd, err := requireString(args, "command")
	if err != nil {
		return nil, err
	}

	cred, err := t.profiles.Get(profileName, "ssh")
	if err != nil {
		return nil, err
	}

	inv := classifySSHInvocation(cmd)
	if inv.Blocked {
		return nil, toolerr.New(toolerr.KindDenied, toolerr.CodeBlockedCommand, inv.BlockReason)
	}
	if reason := touchesProtectedSSHPath(cmd); reason != "" {
		return nil, toolerr.New(toolerr.KindDenied, toolerr.CodeProtectedPathDenied, reason)
	}
	allowSudo, _ := cred.Data["allow_sudo"].(bool)
	if strings.Contains(cmd, "sudo") && !allowSudo {
		return nil, toolerr.New(toolerr.KindDenied, toolerr.CodeCommandNotAllowed, "sudo not permitted for this profile")
	}
	if sshWriteGatedActions[inv.Action] && !argBool(args, "apply") {
		return nil, toolerr.Newf(toolerr.KindDenied, toolerr.CodeApplyRequired, "%s command requires apply=true", inv.Action)
	}

	client, err := t.getConnection(profileName, cred)
	if err != nil {
		return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeConnectionFailed, "ssh connect to profile %s: %v", profileName, err)
	}

	timeout := defaultSSHTimeout
	if ms := argInt(args, "timeout_ms", 0); ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session, err := client.NewSession()
	if err != nil {
		t.closeConnection(profileName)
		client, err = t.getConnection(profileName, cred)
		if err != nil {
			return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeConnectionFailed, "ssh reconnect to profile %s: %v", profileName, err)
		}
		session, err = client.NewSession()
		if err != nil {
			return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeConnectionFailed, "ssh session: %v", err)
		}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case runErr := <-done:
		out := truncateSSHOutput(stdout.String())
		errOut := truncateSSHOutput(stderr.String())
		result := map[string]any{
			"stdout": out,
			"stderr": errOut,
			"action": inv.reportedAction(),
		}
		if runErr != nil {
			result["success"] = false
			result["error"] = runErr.Error()
		} else {
			result["success"] = true
		}
		return result, nil
	case <-runCtx.Done():
		session.Signal(ssh.SIGTERM)
		return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeConnectionFailed, "ssh command timed out after %v", timeout)
	}
}

func (t *SSHTool) getConnection(profileName string, cred *profiles.Resolved) (*ssh.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if client, ok := t.connections[profileName]; ok {
		return client, nil
	}

	user, _ := cred.Data["user"].(string)
	host, _ := cred.Data["host"].(string)
	allowRoot, _ := cred.Data["allow_root"].(bool)
	if user == "root" && !allowRoot {
		return nil, fmt.Errorf("root login not permitted for profile %q", profileName)
	}

	var authMethods []ssh.AuthMethod
	if key := cred.Secrets["private_key"]; key != "" {
		signer, err := ssh.ParsePrivateKey([]byte(key))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}
	if pw := cred.Secrets["password"]; pw != "" {
		authMethods = append(authMethods, ssh.Password(pw))
	}
	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no authentication method configured for profile %q", profileName)
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	addr := host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = addr + ":22"
	}

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, err
	}
	t.connections[profileName] = client
	return client, nil
}

func (t *SSHTool) closeConnection(profileName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if client, ok := t.connections[profileName]; ok {
		client.Close()
		delete(t.connections, profileName)
	}
}

func truncateSSHOutput(s string) string {
	if len(s) > maxSSHOutput {
		return s[:maxSSHOutput] + "\n... [truncated at 8KB]"
	}
	return s
}

// sshWriteGatedActions mirrors saferunner's writeGatedActions table: a
// classified action name maps to whether it requires apply=true, rather
// than deriving the gate from a parallel tier enum kept in lockstep with a
// separate blocklist and command-name map.
var sshWriteGatedActions = map[string]bool{
	"service_control": true,
	"fs_mutation":     true,
}

// sshInvocation is the outcome of classifying one command line: either it's
// outright blocked, or it's assigned a write-impact action ("" for
// read-only) that sshWriteGatedActions gates on.
type sshInvocation struct {
	Action      string
	Blocked     bool
	BlockReason string
}

// reportedAction is the value echoed back in a successful exec result,
// using "read" in place of the empty action string for readability.
func (inv sshInvocation) reportedAction() string {
	if inv.Action == "" {
		return "read"
	}
	return inv.Action
}

// sshReadOnlyCommands never require apply regardless of how they're
// invoked (systemctl's read/mutate split is handled separately, since it
// depends on the subcommand rather than the binary alone).
var sshReadOnlyCommands = map[string]bool{
	"ls": true, "cat": true, "head": true, "tail": true, "less": true, "more": true,
	"grep": true, "find": true, "wc": true, "sort": true, "uniq": true, "diff": true,
	"ps": true, "top": true, "htop": true, "df": true, "du": true, "free": true,
	"uptime": true, "whoami": true, "id": true, "hostname": true, "uname": true,
	"date": true, "which": true, "whereis": true, "file": true, "stat": true,
	"lsof": true, "netstat": true, "ss": true, "ip": true, "ifconfig": true,
	"mount": true, "lsblk": true, "blkid": true, "dmidecode": true,
	"journalctl": true, "dmesg": true,
	"curl": true, "wget": true,
	"echo": true, "printf": true, "test": true,
}

// sshCommandActions classifies every binary outside sshReadOnlyCommands and
// sshBlockedCommands by write impact. A binary in neither set falls back
// to "service_control" in classifyKnownCommand — conservative, since an
// unrecognized command is assumed capable of mutating something.
var sshCommandActions = map[string]string{
	"service": "service_control",
	"kill":    "service_control", "pkill": "service_control", "killall": "service_control",
	"reboot": "service_control", "shutdown": "service_control", "halt": "service_control", "poweroff": "service_control",
	"docker": "service_control", "podman": "service_control", "crictl": "service_control",

	"rm": "fs_mutation", "rmdir": "fs_mutation", "mv": "fs_mutation",
	"chmod": "fs_mutation", "chown": "fs_mutation", "chgrp": "fs_mutation",
	"cp": "fs_mutation", "rsync": "fs_mutation", "scp": "fs_mutation",
	"tar": "fs_mutation", "gzip": "fs_mutation", "bzip2": "fs_mutation", "xz": "fs_mutation", "zip": "fs_mutation", "unzip": "fs_mutation",
	"sed": "fs_mutation", "awk": "fs_mutation", "perl": "fs_mutation", "python": "fs_mutation", "python3": "fs_mutation",
	"tee": "fs_mutation", "truncate": "fs_mutation",
	"useradd": "fs_mutation", "userdel": "fs_mutation", "usermod": "fs_mutation",
	"groupadd": "fs_mutation", "groupdel": "fs_mutation", "groupmod": "fs_mutation",
	"iptables": "fs_mutation", "ufw": "fs_mutation", "firewall-cmd": "fs_mutation",
	"apt-get": "fs_mutation", "yum": "fs_mutation", "dnf": "fs_mutation",
	"pip": "fs_mutation", "npm": "fs_mutation", "gem": "fs_mutation",
	"make": "fs_mutation", "cmake": "fs_mutation",
}

// classifySSHInvocation tokenizes cmd once and decides both whether it's
// blocked outright and, if not, what write-impact action it represents.
// Shell pipeline punctuation and wrapper commands (sudo, env, nice, nohup,
// timeout) are skipped uniformly before either decision is made, so a
// command's blocklist and action classification can never disagree about
// which token is the "real" binary.
func classifySSHInvocation(cmd string) sshInvocation {
	base, rest := commandHead(strings.Fields(cmd))
	if base == "" {
		return sshInvocation{}
	}

	if reason := blockedBinaryReason(base); reason != "" {
		return sshInvocation{Blocked: true, BlockReason: reason}
	}
	if strings.EqualFold(base, "systemctl") {
		return sshInvocation{Action: systemctlAction(rest)}
	}
	return sshInvocation{Action: classifyKnownCommand(strings.ToLower(base))}
}

// commandHead returns the first binary in a tokenized command line — the
// one a login shell would actually resolve and exec — skipping pipeline
// operators and transparent wrapper commands, along with the arguments
// that follow it.
func commandHead(parts []string) (base string, rest []string) {
	for i, part := range parts {
		switch part {
		case "|", "&&", "||", ";", ">", ">>", "<":
			continue
		case "sudo", "env", "nice", "nohup", "timeout":
			continue
		}
		base = part
		if idx := strings.LastIndex(base, "/"); idx >= 0 {
			base = base[idx+1:]
		}
		rest = parts[i+1:]
		return base, rest
	}
	return "", nil
}

func blockedBinaryReason(base string) string {
	baseLower := strings.ToLower(base)
	for _, blocked := range sshBlockedCommands {
		if baseLower == blocked {
			return fmt.Sprintf("blocked command: %s (data-mutation risk)", blocked)
		}
		// mkfs.ext4, mongosh.exe and similar dotted variants of a blocked name.
		if dot := strings.Index(baseLower, "."); dot > 0 && baseLower[:dot] == blocked {
			return fmt.Sprintf("blocked command: %s (data-mutation risk)", blocked)
		}
	}
	return ""
}

// systemctlAction distinguishes systemctl's read subcommands (status, list,
// show, ...) from its service_control ones. rest is everything after the
// systemctl token itself, so rest[0] is always the subcommand.
func systemctlAction(rest []string) string {
	if len(rest) == 0 {
		return ""
	}
	switch strings.ToLower(rest[0]) {
	case "restart", "start", "stop", "reload", "enable", "disable":
		return "service_control"
	default:
		return ""
	}
}

func classifyKnownCommand(baseLower string) string {
	if sshReadOnlyCommands[baseLower] {
		return ""
	}
	if action, ok := sshCommandActions[baseLower]; ok {
		return action
	}
	return "service_control"
}

// sshWriteOpPattern matches a write/delete operator at a token boundary
// (start of command, after a pipeline separator, or after whitespace) so
// e.g. "warm /boot/x" doesn't false-positive on "rm" the way a bare
// substring scan for "rm " would.
var sshWriteOpPattern = regexp.MustCompile(`(?:^|[|;&]\s*|\s)(rm|mv|cp|chmod|chown|truncate|tee)\s|>{1,2}\s`)

func touchesProtectedSSHPath(cmd string) string {
	cmdLower := strings.ToLower(cmd)
	isWrite := sshWriteOpPattern.MatchString(cmdLower)
	for _, path := range sshProtectedPaths {
		pathLower := strings.ToLower(path)
		if strings.Contains(cmdLower, pathLower) {
			if isWrite || pathLower == "/etc/shadow" || pathLower == "/etc/gshadow" {
				return fmt.Sprintf("protected path: %s", path)
			}
		}
	}
	return ""
}
